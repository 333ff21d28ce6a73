package config

import (
	"path/filepath"
	"strings"
)

const (
	// Filesystem paths
	DefaultConfigPath = "/etc/vagrantgen/config.yml"
	DefaultDataDir    = "/var/lib/vagrantgen"
	DefaultFooterDir  = "/var/lib/vagrantgen/footer"

	// Service defaults
	DefaultBindAddress = "0.0.0.0"
	DefaultPort        = 8000

	// Storage defaults
	DefaultBackupKeep = 5

	// History defaults
	DefaultHistoryKeep = 50

	// Terminal defaults
	DefaultShell = "/bin/bash"

	// Frontend dev server
	DefaultCORSOrigin = "http://localhost:5173"

	// Auth modes
	AuthModeNone     = "none"
	AuthModePassword = "password"

	// Log levels
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	// Log formats
	LogFormatJSON    = "json"
	LogFormatConsole = "console"

	// Environment overrides
	EnvCORSOrigins = "CORS_ORIGINS"
	EnvDataDir     = "VAGRANTGEN_DATA_DIR"
	EnvFooterDir   = "VAGRANTGEN_FOOTER_DIR"
)

// ParseOrigins splits a comma-separated origin list, dropping blanks.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}

// HistoryDBPath returns the generation history database location inside dataDir.
func HistoryDBPath(dataDir string) string {
	return filepath.Join(dataDir, "history.db")
}
