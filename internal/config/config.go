// Package config handles loading and validating configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/novadash/engine/internal/layout"
)

// Config holds all configuration values for the dashboard engine.
type Config struct {
	// Sockets
	WSURL              string        `env:"WS_URL" envDefault:"wss://cluster.novadash.io/ws"`
	NotificationsWSURL string        `env:"NOTIFICATIONS_WS_URL" envDefault:"wss://notifications.novadash.io/ws"`
	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10s"`
	HeartbeatTimeout   time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"30s"`
	BackoffBase        time.Duration `env:"BACKOFF_BASE" envDefault:"1s"`
	BackoffCap         time.Duration `env:"BACKOFF_CAP" envDefault:"30s"`
	UpdateRate         float64       `env:"UPDATE_RATE" envDefault:"4"`

	// REST seed
	APIBaseURL  string        `env:"API_BASE_URL" envDefault:"https://api.novadash.io"`
	SeedTimeout time.Duration `env:"SEED_TIMEOUT" envDefault:"5s"`

	// Session
	SessionToken  string `env:"SESSION_TOKEN"`
	SessionCookie string `env:"SESSION_COOKIE"`

	// Batching
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"250ms"`

	// Wallet signals
	LargeTradeSOL        float64       `env:"LARGE_TRADE_SOL" envDefault:"50"`
	BurstCount           int           `env:"BURST_COUNT" envDefault:"3"`
	BurstWindow          time.Duration `env:"BURST_WINDOW" envDefault:"60s"`
	NotificationCooldown time.Duration `env:"NOTIFICATION_COOLDOWN" envDefault:"30s"`

	// Persistence
	DBPath     string `env:"DB_PATH" envDefault:"./data/dashboard.db"`
	LayoutFile string `env:"LAYOUT_FILE" envDefault:"./layout.yaml"`

	// Metrics
	PrometheusPort int `env:"PROMETHEUS_PORT" envDefault:"9090"`

	// UI
	EnableTUI     bool          `env:"ENABLE_TUI" envDefault:"true"`
	UIRefreshRate time.Duration `env:"UI_REFRESH" envDefault:"500ms"`
	CellWidth     float64       `env:"CELL_WIDTH_PX" envDefault:"8"`
	CellHeight    float64       `env:"CELL_HEIGHT_PX" envDefault:"16"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFile  string `env:"LOG_FILE" envDefault:"./data/dashboard.log"`
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.WSURL == "" {
		return fmt.Errorf("WS_URL is required")
	}

	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}

	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL and HEARTBEAT_TIMEOUT must be positive")
	}

	if c.HeartbeatTimeout < c.HeartbeatInterval {
		return fmt.Errorf("HEARTBEAT_TIMEOUT (%s) must be >= HEARTBEAT_INTERVAL (%s)", c.HeartbeatTimeout, c.HeartbeatInterval)
	}

	if c.BackoffBase <= 0 || c.BackoffCap < c.BackoffBase {
		return fmt.Errorf("BACKOFF_CAP must be >= BACKOFF_BASE > 0")
	}

	if c.FlushInterval <= 0 {
		return fmt.Errorf("FLUSH_INTERVAL must be positive")
	}

	if c.SeedTimeout <= 0 {
		return fmt.Errorf("SEED_TIMEOUT must be positive")
	}

	if c.UpdateRate <= 0 {
		return fmt.Errorf("UPDATE_RATE must be positive")
	}

	if c.PrometheusPort < 0 || c.PrometheusPort > 65535 {
		return fmt.Errorf("PROMETHEUS_PORT must be between 0 and 65535")
	}

	if c.CellWidth <= 0 || c.CellHeight <= 0 {
		return fmt.Errorf("CELL_WIDTH_PX and CELL_HEIGHT_PX must be positive")
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: DEBUG, INFO, WARN, ERROR (got: %s)", c.LogLevel)
	}

	return nil
}

// MaskedSessionToken returns the session token with most characters hidden for logging.
func (c *Config) MaskedSessionToken() string {
	if c.SessionToken == "" && c.SessionCookie != "" {
		return "(from cookie)"
	}
	return maskSecret(c.SessionToken)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// layoutFile is the YAML shape of LAYOUT_FILE.
type layoutFile struct {
	Panels []layout.PanelConfig `yaml:"panels"`
}

// DefaultPanels are the panels used when no layout file exists.
func DefaultPanels() []layout.PanelConfig {
	return []layout.PanelConfig{
		{ID: "wallets", DefaultSize: layout.Size{Width: 480, Height: 520}},
		{ID: "holdings", DefaultSize: layout.Size{Width: 520, Height: 480}},
		{ID: "sniper", DefaultSize: layout.Size{Width: 420, Height: 440}, SnapWidth: 360},
	}
}

// LoadLayout reads panel sizing rules from a YAML file. A missing file yields
// DefaultPanels.
func LoadLayout(path string) ([]layout.PanelConfig, error) {
	if path == "" {
		return DefaultPanels(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultPanels(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}

	var lf layoutFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse layout file: %w", err)
	}
	if len(lf.Panels) == 0 {
		return DefaultPanels(), nil
	}

	seen := make(map[string]bool, len(lf.Panels))
	for _, p := range lf.Panels {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate panel %q in layout file", p.ID)
		}
		seen[p.ID] = true
	}
	return lf.Panels, nil
}
