package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rover/host/config"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.log")
	logger, err := New(config.LoggingConfig{
		Level: "info", Format: "json", File: path, MaxSizeMB: 1, MaxBackups: 1,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("tick finished", "count", 7)
	logger.Debug("should be suppressed")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"tick finished"`) {
		t.Errorf("Expected JSON record in log file, got %q", out)
	}
	if !strings.Contains(out, `"count":7`) {
		t.Errorf("Expected attribute in log file, got %q", out)
	}
	if strings.Contains(out, "suppressed") {
		t.Errorf("Expected debug record to be filtered, got %q", out)
	}
}

func TestFileSinkWritesText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rover.log")
	logger, err := New(config.LoggingConfig{
		Level: "debug", Format: "text", File: path, MaxSizeMB: 1, MaxBackups: 1,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("probe", "ch", 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "msg=probe") {
		t.Errorf("Expected text record in log file, got %q", string(data))
	}
}

func TestUnknownFormatRejected(t *testing.T) {
	if _, err := New(config.LoggingConfig{Format: "xml"}); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "rover.log")
	logger, err := Setup(config.LoggingConfig{Format: "text", File: path})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if slog.Default() != logger {
		t.Error("Expected Setup to install the returned logger as default")
	}
}
