// Package config loads service configuration from environment variables and
// role catalog definitions from YAML.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/p-blackswan/pam-core/internal/pam"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// API auth: "api-key", "jwt", or "none" (development only)
	AuthMode  string `envconfig:"AUTH_MODE" default:"api-key"`
	APIKey    string `envconfig:"API_KEY"`
	JWTSecret string `envconfig:"JWT_SECRET"`

	// PAM policy
	MinJustificationLength  int           `envconfig:"MIN_JUSTIFICATION_LENGTH" default:"10"`
	DefaultMaxDuration      int           `envconfig:"DEFAULT_MAX_DURATION_MIN" default:"480"`
	EmergencyDuration       int           `envconfig:"EMERGENCY_DURATION_MIN" default:"60"`
	SessionWarningThreshold time.Duration `envconfig:"SESSION_WARNING_THRESHOLD" default:"15m"`
	SweepInterval           time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	AutoRevokeOnSuspicious  bool          `envconfig:"AUTO_REVOKE_ON_SUSPICIOUS" default:"true"`
	BreakGlassEnabled       bool          `envconfig:"BREAK_GLASS_ENABLED" default:"true"`

	// Role catalog: YAML file; built-in defaults when empty
	RoleCatalogPath string `envconfig:"ROLE_CATALOG_PATH"`

	// Audit
	AuditQueueSize int `envconfig:"AUDIT_QUEUE_SIZE" default:"1024"`
	AuditRetention int `envconfig:"AUDIT_RETENTION" default:"10000"`

	// Approval notifications (optional — falls back to log-only)
	SlackBotToken    string `envconfig:"PAM_SLACK_BOT_TOKEN"`
	ApprovalsChannel string `envconfig:"APPROVALS_CHANNEL" default:"#privileged-access-approvals"`
}

// SlackEnabled returns true if Slack notification credentials are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != ""
}

// PAMConfig converts the service configuration into core policy knobs.
func (c *Config) PAMConfig() pam.Config {
	return pam.Config{
		MinJustificationLength: c.MinJustificationLength,
		DefaultMaxDuration:     c.DefaultMaxDuration,
		EmergencyDuration:      c.EmergencyDuration,
		WarningThreshold:       c.SessionWarningThreshold,
		SweepInterval:          c.SweepInterval,
		AutoRevokeOnSuspicious: c.AutoRevokeOnSuspicious,
		BreakGlassEnabled:      c.BreakGlassEnabled,
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case "api-key":
		if c.APIKey == "" {
			return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("AUTH_MODE=jwt requires JWT_SECRET")
		}
	case "none":
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.DefaultMaxDuration <= 0 {
		return fmt.Errorf("DEFAULT_MAX_DURATION_MIN must be positive")
	}
	if c.EmergencyDuration <= 0 {
		return fmt.Errorf("EMERGENCY_DURATION_MIN must be positive")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
