package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/battlewithbytes/vagrantgen/internal/config"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level, format string
		wantDebug     bool
	}{
		{"debug", "json", true},
		{"info", "json", false},
		{"warn", "console", false},
		{"debug", "console", true},
	}
	for _, tt := range tests {
		l, err := New(tt.level, tt.format)
		if err != nil {
			t.Fatalf("New(%q, %q): %v", tt.level, tt.format, err)
		}
		if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.wantDebug {
			t.Errorf("New(%q, %q) debug enabled = %v, want %v", tt.level, tt.format, got, tt.wantDebug)
		}
	}
}

func TestNewRejectsUnknown(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFromConfig(t *testing.T) {
	if _, err := FromConfig(config.Default()); err != nil {
		t.Fatalf("FromConfig(Default()): %v", err)
	}
}
