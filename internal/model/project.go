package model

import (
	"fmt"
	"strings"
	"time"
)

// Deployment statuses. A ready project is locked against edits and deletion.
const (
	StatusDraft = "draft"
	StatusReady = "ready"
)

const ProjectVersion = "1.0.0"

const invalidNameChars = `/\:*?"<>|`

// Project is a named set of VM definitions persisted as one JSON document.
type Project struct {
	ID                 string                `json:"id" yaml:"id"`
	Name               string                `json:"name" yaml:"name"`
	Description        string                `json:"description" yaml:"description"`
	DeploymentStatus   string                `json:"deployment_status" yaml:"deployment_status"`
	Version            string                `json:"version" yaml:"version"`
	CreatedAt          time.Time             `json:"created_at" yaml:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at" yaml:"updated_at"`
	VMs                []VirtualMachine      `json:"vms" yaml:"vms"`
	GlobalPlugins      []PluginConfiguration `json:"global_plugins" yaml:"global_plugins"`
	GlobalProvisioners []string              `json:"global_provisioners" yaml:"global_provisioners"`
	GlobalTriggers     []string              `json:"global_triggers" yaml:"global_triggers"`
}

// ProjectSummary is the list view of a project.
type ProjectSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	VMCount          int       `json:"vm_count"`
	DeploymentStatus string    `json:"deployment_status"`
}

func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		VMCount:          len(p.VMs),
		DeploymentStatus: p.DeploymentStatus,
	}
}

// Normalize trims fields, fills defaults and normalizes every VM.
func (p *Project) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	if p.DeploymentStatus == "" {
		p.DeploymentStatus = StatusDraft
	}
	if p.Version == "" {
		p.Version = ProjectVersion
	}
	if p.VMs == nil {
		p.VMs = []VirtualMachine{}
	}
	if p.GlobalPlugins == nil {
		p.GlobalPlugins = []PluginConfiguration{}
	}
	if p.GlobalProvisioners == nil {
		p.GlobalProvisioners = []string{}
	}
	if p.GlobalTriggers == nil {
		p.GlobalTriggers = []string{}
	}
	for i := range p.VMs {
		p.VMs[i].Normalize()
	}
	for i := range p.GlobalPlugins {
		p.GlobalPlugins[i].Normalize()
		p.GlobalPlugins[i].Scope = ScopeGlobal
	}
}

// IsLocked reports whether the project is in ready status.
func (p *Project) IsLocked() bool {
	return p.DeploymentStatus == StatusReady
}

// Validate checks the project fields and every VM.
func (p *Project) Validate(opts ValidationOptions) error {
	if err := ValidateProjectName(p.Name); err != nil {
		return err
	}
	if len(p.Description) > 500 {
		return invalid("description", "Description must be at most 500 characters")
	}
	if err := ValidateStatus(p.DeploymentStatus); err != nil {
		return err
	}
	seen := make(map[string]bool, len(p.VMs))
	for i := range p.VMs {
		if err := p.VMs[i].Validate(opts); err != nil {
			return prefixed(fmt.Sprintf("vms[%d]", i), err)
		}
		if seen[p.VMs[i].Name] {
			return invalid("vms", "VM names must be unique within the project")
		}
		seen[p.VMs[i].Name] = true
	}
	plugins := make(map[string]bool, len(p.GlobalPlugins))
	for i := range p.GlobalPlugins {
		if err := p.GlobalPlugins[i].Validate(); err != nil {
			return prefixed(fmt.Sprintf("global_plugins[%d]", i), err)
		}
		if plugins[p.GlobalPlugins[i].Name] {
			return invalid("global_plugins", "Plugin '%s' is already configured", p.GlobalPlugins[i].Name)
		}
		plugins[p.GlobalPlugins[i].Name] = true
	}
	return nil
}

// ValidateProjectName applies the project naming rules.
func ValidateProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "Project name cannot be empty")
	}
	if len(name) > 100 {
		return invalid("name", "Project name must be at most 100 characters")
	}
	if strings.ContainsAny(name, invalidNameChars) {
		return invalid("name", "Project name contains invalid characters: %s", invalidNameChars)
	}
	if strings.HasPrefix(name, " ") || strings.HasSuffix(name, " ") ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return invalid("name", "Project name cannot start or end with space or dot")
	}
	return nil
}

// ValidateStatus checks a deployment status value.
func ValidateStatus(s string) error {
	switch s {
	case StatusDraft, StatusReady:
		return nil
	}
	return invalid("deployment_status", "must be %q or %q", StatusDraft, StatusReady)
}

// VMIndex returns the index of the VM named name, or -1.
func (p *Project) VMIndex(name string) int {
	for i := range p.VMs {
		if p.VMs[i].Name == name {
			return i
		}
	}
	return -1
}

// PluginIndex returns the index of the global plugin named name, or -1.
func (p *Project) PluginIndex(name string) int {
	for i := range p.GlobalPlugins {
		if p.GlobalPlugins[i].Name == name {
			return i
		}
	}
	return -1
}

// InterfaceCount returns the number of network interfaces across all VMs.
func (p *Project) InterfaceCount() int {
	n := 0
	for i := range p.VMs {
		n += len(p.VMs[i].NetworkInterfaces)
	}
	return n
}

// Touch stamps UpdatedAt.
func (p *Project) Touch() {
	p.UpdatedAt = Now()
}
