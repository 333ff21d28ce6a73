package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BindAddress: DefaultBindAddress,
			Port:        DefaultPort,
		},
		Storage: StorageConfig{
			DataDir:    "/tmp/vagrantgen",
			BackupKeep: DefaultBackupKeep,
		},
		Auth: AuthConfig{
			Mode: AuthModeNone,
		},
		CORS: CORSConfig{
			Origins: []string{DefaultCORSOrigin},
		},
		Terminal: TerminalConfig{Shell: DefaultShell},
		History:  HistoryConfig{Enabled: true, Keep: DefaultHistoryKeep},
		Log:      LogConfig{Level: LogLevelInfo, Format: LogFormatJSON},
	}
}

func TestValidateValid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() should validate, got: %v", err)
	}
}

func TestValidatePortRange(t *testing.T) {
	for _, port := range []int{0, -1, 65536} {
		cfg := validConfig()
		cfg.Service.Port = port
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidateMissingDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing storage.data_dir")
	}
}

func TestValidateInvalidAuthMode(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "oauth"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid auth mode")
	}
}

func TestValidatePasswordModeNeedsHash(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = AuthModePassword
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for password mode without hash")
	}
	cfg.Auth.PasswordHash = "$2a$10$abcdefghijklmnopqrstuv"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCORSOrigins(t *testing.T) {
	tests := []struct {
		origins []string
		wantErr bool
	}{
		{[]string{"http://localhost:5173"}, false},
		{[]string{"https://vagrant.example.com", "*"}, false},
		{[]string{"localhost:5173"}, true},
		{[]string{"ftp://example.com"}, true},
	}
	for _, tt := range tests {
		cfg := validConfig()
		cfg.CORS.Origins = tt.origins
		err := cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("origins %v: err = %v, wantErr %v", tt.origins, err, tt.wantErr)
		}
	}
}

func TestValidateTerminalShell(t *testing.T) {
	cfg := validConfig()
	cfg.Terminal.Enabled = true
	cfg.Terminal.Shell = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for enabled terminal without shell")
	}
}

func TestValidateLog(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "trace"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
	cfg = validConfig()
	cfg.Log.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log format")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yml")

	cfg := validConfig()
	cfg.Validation.AllowPublicIPs = true
	cfg.Terminal.Enabled = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("perm = %o, want 640", info.Mode().Perm())
	}

	t.Setenv(EnvCORSOrigins, "")
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvFooterDir, "")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("loaded config mismatch:\n got  %+v\n want %+v", loaded, cfg)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	os.WriteFile(path, []byte("service:\n  bind_address: 127.0.0.1\n  port: 9000\n"), 0644)

	t.Setenv(EnvDataDir, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Service.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Service.Port)
	}
	if cfg.Storage.DataDir != DefaultDataDir {
		t.Errorf("data_dir = %q, want %q", cfg.Storage.DataDir, DefaultDataDir)
	}
	if cfg.Log.Level != LogLevelInfo {
		t.Errorf("log.level = %q, want %q", cfg.Log.Level, LogLevelInfo)
	}
}

func TestLoadLegacyDataDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	os.WriteFile(path, []byte("data_dir: /srv/vagrant\n"), 0644)

	t.Setenv(EnvDataDir, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataDir != "/srv/vagrant" {
		t.Errorf("data_dir = %q, want /srv/vagrant", cfg.Storage.DataDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvCORSOrigins, "http://a.example, https://b.example ,")
	t.Setenv(EnvDataDir, "/data/override")
	t.Setenv(EnvFooterDir, "/data/footer")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	want := []string{"http://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.CORS.Origins, want) {
		t.Errorf("origins = %v, want %v", cfg.CORS.Origins, want)
	}
	if cfg.Storage.DataDir != "/data/override" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Footer.Dir != "/data/footer" {
		t.Errorf("footer.dir = %q", cfg.Footer.Dir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	os.WriteFile(path, []byte("{{invalid yaml"), 0644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
