package installer

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/battlewithbytes/vagrantgen/internal/config"
)

// Answers holds raw string values from the setup form.
// Numeric fields are strings because huh.Input binds to *string.
type Answers struct {
	// Storage
	DataDir       string
	FooterDir     string
	BackupKeepStr string

	// Service
	BindAddress string
	PortStr     string

	// Auth
	AuthMode        string
	Password        string
	PasswordConfirm string

	// Browser access
	CORSOrigins     string
	TerminalEnabled bool
	AllowPublicIPs  bool

	// Confirmation
	Confirmed bool
}

// DefaultAnswers returns answers prefilled from cfg.
func DefaultAnswers(cfg *config.Config) *Answers {
	return &Answers{
		DataDir:       cfg.Storage.DataDir,
		FooterDir:     cfg.Footer.Dir,
		BackupKeepStr: strconv.Itoa(cfg.Storage.BackupKeep),
		BindAddress:   cfg.Service.BindAddress,
		PortStr:       strconv.Itoa(cfg.Service.Port),
		AuthMode:      config.AuthModePassword,
		CORSOrigins:   strings.Join(cfg.CORS.Origins, ", "),
	}
}

// Apply copies the answers onto cfg, hashing the password when auth is
// enabled.
func (a *Answers) Apply(cfg *config.Config) error {
	port, err := strconv.Atoi(strings.TrimSpace(a.PortStr))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %q", a.PortStr)
	}
	keep, err := strconv.Atoi(strings.TrimSpace(a.BackupKeepStr))
	if err != nil || keep < 0 {
		return fmt.Errorf("backup count must be >= 0, got %q", a.BackupKeepStr)
	}

	cfg.Storage.DataDir = strings.TrimSpace(a.DataDir)
	cfg.Storage.BackupKeep = keep
	cfg.Footer.Dir = strings.TrimSpace(a.FooterDir)
	cfg.Service.BindAddress = strings.TrimSpace(a.BindAddress)
	cfg.Service.Port = port
	cfg.CORS.Origins = config.ParseOrigins(a.CORSOrigins)
	cfg.Terminal.Enabled = a.TerminalEnabled
	cfg.Validation.AllowPublicIPs = a.AllowPublicIPs

	cfg.Auth.Mode = a.AuthMode
	cfg.Auth.PasswordHash = ""
	if a.AuthMode == config.AuthModePassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		cfg.Auth.PasswordHash = string(hash)
	}
	return cfg.Validate()
}

// ValidatePort returns nil if s is a valid port number.
func ValidatePort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("must be 1-65535")
	}
	return nil
}

// ValidateNonNegativeInt returns nil if s is an integer >= 0.
func ValidateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// ValidateOrigins returns nil if every comma-separated entry is * or an
// http(s) origin.
func ValidateOrigins(s string) error {
	for _, o := range config.ParseOrigins(s) {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("%q must start with http:// or https://", o)
		}
	}
	return nil
}

func validateRequired(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}
