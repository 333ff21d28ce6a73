package model

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Global provisioner run modes.
const (
	RunOnce   = "once"
	RunAlways = "always"
	RunNever  = "never"
)

// Trigger timings and error modes.
const (
	TimingBefore = "before"
	TimingAfter  = "after"

	OnErrorHalt     = "halt"
	OnErrorContinue = "continue"
)

var stageRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ShellConfig is the body of a global shell provisioner.
type ShellConfig struct {
	Script     string `json:"script"`
	Privileged *bool  `json:"privileged"`
	Run        string `json:"run"`
	Path       string `json:"path,omitempty"`
}

// GlobalProvisioner is a reusable shell snippet attached to projects by ID.
type GlobalProvisioner struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        string      `json:"type"`
	Scope       string      `json:"scope"`
	ShellConfig ShellConfig `json:"shell_config"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ProvisionerSummary is the list view of a global provisioner.
type ProvisionerSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Run         string    `json:"run"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (g *GlobalProvisioner) Summary() ProvisionerSummary {
	return ProvisionerSummary{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Type:        g.Type,
		Run:         g.ShellConfig.Run,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func (g *GlobalProvisioner) Normalize() {
	g.Name = strings.TrimSpace(g.Name)
	g.Description = strings.TrimSpace(g.Description)
	g.Type = ProvisionerShell
	g.Scope = ScopeGlobal
	g.ShellConfig.Path = strings.TrimSpace(g.ShellConfig.Path)
	if g.ShellConfig.Privileged == nil {
		g.ShellConfig.Privileged = Bool(true)
	}
	if g.ShellConfig.Run == "" {
		g.ShellConfig.Run = RunOnce
	}
}

func (g *GlobalProvisioner) Validate() error {
	if err := validateGlobalName("Provisioner", g.Name, g.Description); err != nil {
		return err
	}
	if strings.TrimSpace(g.ShellConfig.Script) == "" {
		return invalid("shell_config.script", "Script cannot be empty")
	}
	switch g.ShellConfig.Run {
	case RunOnce, RunAlways, RunNever:
	default:
		return invalid("shell_config.run", "must be %q, %q, or %q", RunOnce, RunAlways, RunNever)
	}
	return nil
}

// IsPrivileged reports the privileged flag, true when unset.
func (g *GlobalProvisioner) IsPrivileged() bool {
	return g.ShellConfig.Privileged == nil || *g.ShellConfig.Privileged
}

// VariableName is the Ruby global holding the script heredoc.
func (g *GlobalProvisioner) VariableName() string {
	var sb strings.Builder
	for _, r := range strings.ToLower(g.Name) {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return "provisioner_" + sb.String() + "_script"
}

// TriggerConfig is the body of a global trigger.
type TriggerConfig struct {
	Timing          string `json:"timing"`
	Stage           string `json:"stage"`
	Name            string `json:"name,omitempty"`
	Info            string `json:"info,omitempty"`
	Warn            string `json:"warn,omitempty"`
	Run             string `json:"run,omitempty"`
	RunRemoteInline string `json:"run_remote_inline,omitempty"`
	OnError         string `json:"on_error"`
}

// GlobalTrigger is a reusable lifecycle hook attached to projects by ID.
type GlobalTrigger struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	TriggerConfig TriggerConfig `json:"trigger_config"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TriggerSummary is the list view of a global trigger.
type TriggerSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Timing      string    `json:"timing"`
	Stage       string    `json:"stage"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (g *GlobalTrigger) Summary() TriggerSummary {
	return TriggerSummary{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Timing:      g.TriggerConfig.Timing,
		Stage:       g.TriggerConfig.Stage,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func (g *GlobalTrigger) Normalize() {
	g.Name = strings.TrimSpace(g.Name)
	g.Description = strings.TrimSpace(g.Description)
	c := &g.TriggerConfig
	c.Stage = strings.TrimPrefix(strings.TrimSpace(c.Stage), ":")
	if strings.TrimSpace(c.Run) == "" {
		c.Run = ""
	}
	if strings.TrimSpace(c.RunRemoteInline) == "" {
		c.RunRemoteInline = ""
	}
	if c.OnError == "" {
		c.OnError = OnErrorContinue
	}
}

func (g *GlobalTrigger) Validate() error {
	if err := validateGlobalName("Trigger", g.Name, g.Description); err != nil {
		return err
	}
	c := g.TriggerConfig
	switch c.Timing {
	case TimingBefore, TimingAfter:
	default:
		return invalid("trigger_config.timing", "must be %q or %q", TimingBefore, TimingAfter)
	}
	if c.Stage == "" {
		return invalid("trigger_config.stage", "Stage cannot be empty")
	}
	if !stageRe.MatchString(c.Stage) {
		return invalid("trigger_config.stage", "Stage must be a Vagrant command name such as up or destroy")
	}
	if c.Run == "" && c.RunRemoteInline == "" {
		return invalid("trigger_config.run", "Either 'run' or 'run_remote_inline' must be specified")
	}
	if c.Run != "" && c.RunRemoteInline != "" {
		return invalid("trigger_config.run", "Cannot specify both 'run' and 'run_remote_inline'")
	}
	switch c.OnError {
	case OnErrorHalt, OnErrorContinue:
	default:
		return invalid("trigger_config.on_error", "must be %q or %q", OnErrorHalt, OnErrorContinue)
	}
	return nil
}

func validateGlobalName(kind, name, description string) error {
	if name == "" {
		return invalid("name", "%s name cannot be empty", kind)
	}
	if len(name) > 100 {
		return invalid("name", "%s name must be at most 100 characters", kind)
	}
	if len(description) > 500 {
		return invalid("description", "Description must be at most 500 characters")
	}
	return nil
}
