// Package logging builds the zap logger shared by the server, store and CLI.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/battlewithbytes/vagrantgen/internal/config"
)

// New returns a logger for the given level and format ("json" or "console").
func New(level, format string) (*zap.Logger, error) {
	var zcfg zap.Config
	switch format {
	case config.LogFormatConsole:
		zcfg = zap.NewDevelopmentConfig()
	case config.LogFormatJSON, "":
		zcfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.DisableStacktrace = lvl > zapcore.DebugLevel

	return zcfg.Build()
}

// FromConfig builds a logger from the log section of cfg.
func FromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.Log.Level, cfg.Log.Format)
}
