package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"chatty", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesJSONWithSessionFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "wppdeskd.log")

	logger, err := New(logPath, "test", "info")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("router started")
	logger.Debug("filtered out")
	_ = logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"router started"`) {
		t.Errorf("log file missing message: %s", out)
	}
	if !strings.Contains(out, `"session":"test"`) {
		t.Errorf("log file missing session field: %s", out)
	}
	if strings.Contains(out, "filtered out") {
		t.Errorf("debug entry written at info level: %s", out)
	}
}
