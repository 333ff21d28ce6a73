package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/battlewithbytes/vagrantgen/internal/config"
	"github.com/battlewithbytes/vagrantgen/internal/history"
	"github.com/battlewithbytes/vagrantgen/internal/logging"
	"github.com/battlewithbytes/vagrantgen/internal/store"
)

// loadConfig reads --config, falling back to defaults when the file is
// missing so one-off commands work without running init first.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// cliLogger logs warnings and above to the console; command output itself
// goes to stdout.
func cliLogger() *zap.Logger {
	log, err := logging.New(config.LogLevelWarn, config.LogFormatConsole)
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func openStore(cfg *config.Config, log *zap.Logger, opts ...store.Option) (*store.Store, error) {
	opts = append([]store.Option{
		store.WithLogger(log),
		store.WithBackupKeep(cfg.Storage.BackupKeep),
	}, opts...)
	st, err := store.Open(cfg.Storage.DataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening data directory: %w", err)
	}
	return st, nil
}

// openHistory returns nil when history is disabled.
func openHistory(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	h, err := history.NewStore(config.HistoryDBPath(cfg.Storage.DataDir), cfg.History.Keep)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// cliEnv bundles what most subcommands need.
type cliEnv struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
}

func newCLIEnv() (*cliEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := cliLogger()
	st, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	return &cliEnv{cfg: cfg, log: log, store: st}, nil
}
