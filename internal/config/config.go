// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as the Telegram token, upstream panel URLs, database path, logging,
// outbound rate limiting, and the ops HTTP listener.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// OpsConfig defines the optional operational HTTP listener exposing
// /healthz and /metrics.
type OpsConfig struct {
	Enabled bool   // OPS_ENABLED
	Addr    string // OPS_ADDR (e.g. ":9090")
}

// GatewayConfig defines outbound behavior toward the two upstream panels.
type GatewayConfig struct {
	PanelBaseURL string        // PANEL_BASE_URL (billing panel root, no /api)
	PteroBaseURL string        // PTERO_BASE_URL (game server panel root, no /api)
	HTTPTimeout  time.Duration // HTTP_TIMEOUT for upstream requests
	RPS          float64       // GATEWAY_RPS outbound token bucket refill
	Burst        int           // GATEWAY_BURST outbound token bucket size
}

// Config holds all configuration values for the application.
type Config struct {
	// Telegram
	BotToken    string // BOT_TOKEN (required)
	PollTimeout int    // POLL_TIMEOUT long-poll seconds

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath            string // SQLite path
	DefaultLanguage   string // BCP 47 tag for new sessions
	TransactionsLimit int    // default history query limit

	// Upstreams
	Gateway GatewayConfig

	// Ops listener
	Ops OpsConfig
}

// PanelAPIURL returns the billing panel API root (base URL + /api).
func (c Config) PanelAPIURL() string { return strings.TrimRight(c.Gateway.PanelBaseURL, "/") + "/api" }

// PteroAPIURL returns the server panel API root (base URL + /api).
func (c Config) PteroAPIURL() string { return strings.TrimRight(c.Gateway.PteroBaseURL, "/") + "/api" }

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		BotToken:    getenv("BOT_TOKEN", ""),
		PollTimeout: getint("POLL_TIMEOUT", 60),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DBPath:            getenv("DB_PATH", "bot.db"),
		DefaultLanguage:   getenv("DEFAULT_LANGUAGE", "en"),
		TransactionsLimit: getint("TRANSACTIONS_LIMIT", 10),

		Gateway: GatewayConfig{
			PanelBaseURL: getenv("PANEL_BASE_URL", "https://panel.nexo.example"),
			PteroBaseURL: getenv("PTERO_BASE_URL", "https://game.nexo.example"),
			HTTPTimeout:  getdur("HTTP_TIMEOUT", 30*time.Second),
			RPS:          getfloat("GATEWAY_RPS", 10.0),
			Burst:        getint("GATEWAY_BURST", 20),
		},

		Ops: OpsConfig{
			Enabled: getbool("OPS_ENABLED", false),
			Addr:    getenv("OPS_ADDR", ":9090"),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.Gateway.PanelBaseURL = strings.TrimRight(cfg.Gateway.PanelBaseURL, "/")
	cfg.Gateway.PteroBaseURL = strings.TrimRight(cfg.Gateway.PteroBaseURL, "/")
	if tag, err := language.Parse(cfg.DefaultLanguage); err == nil {
		cfg.DefaultLanguage = tag.String()
	}

	// --- validation ---
	if strings.TrimSpace(cfg.BotToken) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if cfg.PollTimeout <= 0 {
		return cfg, errors.New("POLL_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if _, err := language.Parse(cfg.DefaultLanguage); err != nil {
		return cfg, errors.New("DEFAULT_LANGUAGE must be a valid BCP 47 tag")
	}
	if cfg.TransactionsLimit < 1 {
		return cfg, errors.New("TRANSACTIONS_LIMIT must be >= 1")
	}
	if strings.TrimSpace(cfg.Gateway.PanelBaseURL) == "" {
		return cfg, errors.New("PANEL_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.Gateway.PteroBaseURL) == "" {
		return cfg, errors.New("PTERO_BASE_URL must not be empty")
	}
	if cfg.Gateway.HTTPTimeout <= 0 {
		return cfg, errors.New("HTTP_TIMEOUT must be a positive duration")
	}
	if cfg.Gateway.RPS < 0 {
		return cfg, errors.New("GATEWAY_RPS must be >= 0")
	}
	if cfg.Gateway.Burst < 1 {
		return cfg, errors.New("GATEWAY_BURST must be >= 1")
	}
	if cfg.Ops.Enabled && strings.TrimSpace(cfg.Ops.Addr) == "" {
		return cfg, errors.New("OPS_ADDR must not be empty when OPS_ENABLED is set")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
