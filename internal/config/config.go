// Package config provides configuration loading for membank.
//
// Configuration is assembled from a YAML file, MEMBANK_ environment variables
// and hardcoded defaults, in that order of increasing precedence for env.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the complete membank configuration.
type Config struct {
	State     StateConfig     `koanf:"state"`
	Vault     VaultConfig     `koanf:"vault"`
	Notes     NotesConfig     `koanf:"notes"`
	Audit     AuditConfig     `koanf:"audit"`
	Hooks     HooksConfig     `koanf:"hooks"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// StateConfig locates the persisted state document.
type StateConfig struct {
	Path string `koanf:"path"`
}

// VaultConfig configures the external note program.
type VaultConfig struct {
	Program string        `koanf:"program"`
	Timeout time.Duration `koanf:"timeout"`
	DryRun  bool          `koanf:"dry_run"`
}

// NotesConfig controls where and how notes are written.
type NotesConfig struct {
	ProjectRoot  string `koanf:"project_root"`
	ScrubSecrets bool   `koanf:"scrub_secrets"`
	// Gitleaks adds the gitleaks rule set to the built-in scrubber rules.
	Gitleaks bool `koanf:"gitleaks"`
}

// AuditConfig holds the fallback audit frequency used until one is persisted.
type AuditConfig struct {
	DefaultFrequency int `koanf:"default_frequency"`
}

// HooksConfig holds webhook verification settings.
type HooksConfig struct {
	WebhookSecret Secret   `koanf:"webhook_secret"`
	SignatureEnv  []string `koanf:"signature_env"`
}

// ServerConfig holds the webhook receiver configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimit       float64       `koanf:"rate_limit"`
	RateBurst       int           `koanf:"rate_burst"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	Protocol string `koanf:"protocol"`
	Insecure bool   `koanf:"insecure"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		Notes: NotesConfig{ScrubSecrets: true},
		Audit: AuditConfig{DefaultFrequency: DefaultAuditFrequency},
	}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.State.Path == "" {
		return errors.New("state path is required")
	}
	if strings.TrimSpace(c.Vault.Program) == "" {
		return errors.New("vault program is required")
	}
	if c.Vault.Timeout <= 0 {
		return errors.New("vault timeout must be positive")
	}
	if c.Audit.DefaultFrequency < 0 {
		return fmt.Errorf("invalid audit default_frequency: %d (must be >= 0)", c.Audit.DefaultFrequency)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		return errors.New("server rate_limit and rate_burst must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry endpoint required when telemetry is enabled")
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
