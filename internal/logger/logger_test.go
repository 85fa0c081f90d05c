package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fractureapi/internal/config"
)

func TestNewLogger_WritesPerLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l := NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})

	l.Info("artifact %s loaded", "pipeline")
	l.Warning("artifact %s missing", "detector")
	l.Error("inference failed: %v", "shape mismatch")
	l.Debug("not written at info level")

	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tests := []struct {
		file     string
		contains string
		excludes string
	}{
		{"info.log", "artifact pipeline loaded", "detector"},
		{"warning.log", "artifact detector missing", "pipeline loaded"},
		{"error.log", "inference failed: shape mismatch", "artifact"},
	}

	for _, tt := range tests {
		data, err := os.ReadFile(filepath.Join(dir, tt.file))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", tt.file, err)
		}
		content := string(data)
		if !strings.Contains(content, tt.contains) {
			t.Errorf("%s should contain %q, got %q", tt.file, tt.contains, content)
		}
		if strings.Contains(content, tt.excludes) {
			t.Errorf("%s should not contain %q", tt.file, tt.excludes)
		}
		if strings.Contains(content, "not written") {
			t.Errorf("%s should not contain debug output", tt.file)
		}
	}
}

func TestParseLevel_FallsBackToInfo(t *testing.T) {
	if got := parseLevel("chatty"); got.String() != "info" {
		t.Errorf("Expected info level, got %s", got)
	}
	if got := parseLevel("debug"); got.String() != "debug" {
		t.Errorf("Expected debug level, got %s", got)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Info("dropped")
	if err := l.Close(); err != nil {
		t.Errorf("Close on discard logger returned %v", err)
	}
}
