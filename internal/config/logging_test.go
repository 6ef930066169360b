package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig_LoggerWritesToFile(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	cfg.LogFile = filepath.Join(t.TempDir(), "lsp-boot.log")

	logger, err := cfg.Logger()
	if err != nil {
		t.Fatalf("Logger failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("visible")
	_ = logger.Sync()

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "visible") {
		t.Errorf("Unexpected log contents: %s", data)
	}
}

func TestConfig_LoggerRejectsBadLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	if _, err := cfg.Logger(); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}
