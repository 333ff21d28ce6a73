package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the full application configuration written to config.yml.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	CORS       CORSConfig       `yaml:"cors"`
	Validation ValidationConfig `yaml:"validation"`
	Footer     FooterConfig     `yaml:"footer"`
	Terminal   TerminalConfig   `yaml:"terminal"`
	History    HistoryConfig    `yaml:"history"`
	Log        LogConfig        `yaml:"log"`
}

type ServiceConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	BackupKeep int    `yaml:"backup_keep"`
}

type AuthConfig struct {
	Mode         string `yaml:"mode"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// ValidationConfig holds server-wide defaults for model validation.
// AllowPublicIPs can still be enabled per request via X-Allow-Public-IPs.
type ValidationConfig struct {
	AllowPublicIPs bool `yaml:"allow_public_ips"`
}

type FooterConfig struct {
	Dir string `yaml:"dir"`
}

type TerminalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Shell   string `yaml:"shell"`
}

type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
	Keep    int  `yaml:"keep"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a config usable without a config file (dev mode, CLI one-offs).
func Default() *Config {
	return &Config{
		Service:  ServiceConfig{BindAddress: DefaultBindAddress, Port: DefaultPort},
		Storage:  StorageConfig{DataDir: DefaultDataDir, BackupKeep: DefaultBackupKeep},
		Auth:     AuthConfig{Mode: AuthModeNone},
		CORS:     CORSConfig{Origins: []string{DefaultCORSOrigin}},
		Footer:   FooterConfig{Dir: DefaultFooterDir},
		Terminal: TerminalConfig{Shell: DefaultShell},
		History:  HistoryConfig{Enabled: true, Keep: DefaultHistoryKeep},
		Log:      LogConfig{Level: LogLevelInfo, Format: LogFormatJSON},
	}
}

// Load reads and parses a config file from the given path.
// Missing sections fall back to Default() values, and environment
// overrides are applied before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Backward compat: a top-level data_dir key predates the storage section
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err == nil {
		if v, ok := raw["data_dir"].(string); ok && v != "" {
			if _, hasStorage := raw["storage"]; !hasStorage {
				cfg.Storage.DataDir = v
			}
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path if it exists and otherwise returns Default()
// with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.ApplyEnv()
		return cfg, cfg.Validate()
	}
	return Load(path)
}

// ApplyEnv overlays environment variables on top of file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		c.CORS.Origins = ParseOrigins(v)
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv(EnvFooterDir); v != "" {
		c.Footer.Dir = v
	}
}

// Validate checks that all required fields are present and values are in range.
func (c *Config) Validate() error {
	// Service
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port must be between 1 and 65535")
	}
	if c.Service.BindAddress == "" {
		return fmt.Errorf("service.bind_address is required")
	}

	// Storage
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.BackupKeep < 0 {
		return fmt.Errorf("storage.backup_keep must be >= 0")
	}

	// Auth mode
	switch c.Auth.Mode {
	case AuthModeNone:
		// ok
	case AuthModePassword:
		if c.Auth.PasswordHash == "" {
			return fmt.Errorf("auth.password_hash is required when auth.mode is %q", AuthModePassword)
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q", AuthModeNone, AuthModePassword)
	}

	for _, o := range c.CORS.Origins {
		if o == "*" {
			continue
		}
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("cors.origins entry %q must be an http(s) origin or *", o)
		}
	}

	if c.Terminal.Enabled && c.Terminal.Shell == "" {
		return fmt.Errorf("terminal.shell is required when the terminal is enabled")
	}

	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep must be >= 0")
	}

	switch c.Log.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// ok
	default:
		return fmt.Errorf("log.level must be %q, %q, %q, or %q", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError)
	}
	switch c.Log.Format {
	case LogFormatJSON, LogFormatConsole:
		// ok
	default:
		return fmt.Errorf("log.format must be %q or %q", LogFormatJSON, LogFormatConsole)
	}

	return nil
}

// Save writes the config to the given path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
