package config

import (
	"strings"
	"testing"
	"time"
)

// setBaseEnv provides the minimum environment for Load to succeed.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123456:test-token")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PollTimeout != 60 {
		t.Errorf("PollTimeout = %d, want 60", cfg.PollTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.DBPath != "bot.db" {
		t.Errorf("DBPath = %q, want bot.db", cfg.DBPath)
	}
	if cfg.DefaultLanguage != "en" {
		t.Errorf("DefaultLanguage = %q, want en", cfg.DefaultLanguage)
	}
	if cfg.TransactionsLimit != 10 {
		t.Errorf("TransactionsLimit = %d, want 10", cfg.TransactionsLimit)
	}
	if cfg.Gateway.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.Gateway.HTTPTimeout)
	}
	if cfg.Ops.Enabled {
		t.Errorf("Ops.Enabled = true, want false")
	}
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "BOT_TOKEN") {
		t.Fatalf("expected BOT_TOKEN error, got %v", err)
	}
}

func TestLoad_NormalizesWarningLevel(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LOG_LEVEL", "warning")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Fatalf("expected LOG_LEVEL error, got %v", err)
	}
}

func TestLoad_RejectsBadLanguage(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEFAULT_LANGUAGE", "not a tag !!")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DEFAULT_LANGUAGE") {
		t.Fatalf("expected DEFAULT_LANGUAGE error, got %v", err)
	}
}

func TestAPIURLs_AppendAPIOnce(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PANEL_BASE_URL", "https://billing.example/")
	t.Setenv("PTERO_BASE_URL", "https://game.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.PanelAPIURL(); got != "https://billing.example/api" {
		t.Errorf("PanelAPIURL = %q", got)
	}
	if got := cfg.PteroAPIURL(); got != "https://game.example/api" {
		t.Errorf("PteroAPIURL = %q", got)
	}
}

func TestLoad_OpsEnabledRequiresAddr(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("OPS_ENABLED", "true")
	t.Setenv("OPS_ADDR", "  ")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "OPS_ADDR") {
		t.Fatalf("expected OPS_ADDR error, got %v", err)
	}
}
