package model

import (
	"regexp"
	"strings"
	"time"
)

// Plugin configuration scopes.
const (
	ScopeGlobal = "global"
	ScopeVM     = "vm"
)

var (
	pluginNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	semverRe     = regexp.MustCompile(`^[~^><=]*\d+(\.\d+)*(\.\d+)*(-[\w.]+)?(\+[\w.]+)?$`)
)

// PluginConfiguration attaches a Vagrant plugin to a project or a VM.
type PluginConfiguration struct {
	Name    string                 `json:"name" yaml:"name"`
	Version string                 `json:"version,omitempty" yaml:"version,omitempty"`
	Config  map[string]interface{} `json:"config" yaml:"config"`
	Scope   string                 `json:"scope" yaml:"scope"`
}

func (p *PluginConfiguration) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Version = strings.TrimSpace(p.Version)
	if p.Config == nil {
		p.Config = map[string]interface{}{}
	}
	if p.Scope == "" {
		p.Scope = ScopeVM
	}
}

func (p *PluginConfiguration) Validate() error {
	if p.Name == "" {
		return invalid("name", "Plugin name cannot be empty")
	}
	if !pluginNameRe.MatchString(p.Name) {
		return invalid("name", "Plugin name can only contain letters, numbers, underscores, and hyphens")
	}
	if p.Version != "" && !ValidVersionConstraint(p.Version) {
		return invalid("version", "Version must be a valid semantic version constraint")
	}
	switch p.Scope {
	case ScopeGlobal, ScopeVM:
	default:
		return invalid("scope", "must be %q or %q", ScopeGlobal, ScopeVM)
	}
	return validateKeys("config", p.Config)
}

// ValidVersionConstraint accepts constraints like "1.2.3", ">= 1.0" or "~> 0.30.0".
// Whitespace between the operator and the version is ignored.
func ValidVersionConstraint(v string) bool {
	return semverRe.MatchString(strings.Join(strings.Fields(v), ""))
}

// Plugin is a catalog entry describing an installable Vagrant plugin.
type Plugin struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	SourceURL        string    `json:"source_url,omitempty"`
	DocumentationURL string    `json:"documentation_url,omitempty"`
	DefaultVersion   string    `json:"default_version,omitempty"`
	Configuration    string    `json:"configuration,omitempty"`
	IsDeprecated     bool      `json:"is_deprecated"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PluginSummary is the list view of a catalog plugin.
type PluginSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	DefaultVersion string `json:"default_version,omitempty"`
	IsDeprecated   bool   `json:"is_deprecated"`
}

func (p *Plugin) Summary() PluginSummary {
	return PluginSummary{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		DefaultVersion: p.DefaultVersion,
		IsDeprecated:   p.IsDeprecated,
	}
}

func (p *Plugin) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.DefaultVersion = strings.TrimSpace(p.DefaultVersion)
}

func (p *Plugin) Validate() error {
	if p.Name == "" {
		return invalid("name", "Plugin name cannot be empty")
	}
	if len(p.Name) > 100 {
		return invalid("name", "Plugin name must be at most 100 characters")
	}
	if len(p.Description) > 500 {
		return invalid("description", "Description must be at most 500 characters")
	}
	if p.DefaultVersion != "" && !ValidVersionConstraint(p.DefaultVersion) {
		return invalid("default_version", "Version must be a valid semantic version constraint")
	}
	return nil
}
