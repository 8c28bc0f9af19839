package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MEMBANK_"

	// WebhookSecretEnv carries the shared webhook secret.
	WebhookSecretEnv = "MEMBANK_WEBHOOK_SECRET"

	// DefaultAuditFrequency audits every N recorded runs until a value is persisted.
	DefaultAuditFrequency = 10

	// DefaultProjectRoot is the vault folder holding every project memory bank.
	DefaultProjectRoot = "Project Memory"
)

// DefaultSignatureEnv lists environment variables that may carry a webhook
// signature header value, in lookup order.
var DefaultSignatureEnv = []string{
	"MEMBANK_WEBHOOK_SIGNATURE",
	"HTTP_X_HUB_SIGNATURE_256",
	"HTTP_X_SIGNATURE_256",
}

// LoadWithFile loads configuration from YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MEMBANK_VAULT_PROGRAM, MEMBANK_AUDIT_DEFAULT_FREQUENCY, etc.)
//  2. YAML config file (~/.config/membank/config.yaml)
//  3. Hardcoded defaults
//
// # Security Considerations
//
// The configuration file must have 0600 or 0400 permissions, must be smaller
// than 1MB, and must live under ~/.config/membank/ or /etc/membank/.
//
// # Environment Variable Mapping
//
// The MEMBANK_ prefix is stripped and the remainder is split on the first
// underscore:
//
//	MEMBANK_VAULT_PROGRAM          -> vault.program
//	MEMBANK_AUDIT_DEFAULT_FREQUENCY -> audit.default_frequency
//	MEMBANK_SERVER_HTTP_PORT       -> server.http_port
//
// MEMBANK_WEBHOOK_SECRET is accepted as an alias for hooks.webhook_secret.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Values whose zero value is meaningful cannot be defaulted after
	// unmarshaling, so seed them before any provider runs.
	for key, val := range seededDefaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to seed default %s: %w", key, err)
		}
	}

	if configPath == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate through the descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if secret := os.Getenv(WebhookSecretEnv); secret != "" && !cfg.Hooks.WebhookSecret.IsSet() {
		cfg.Hooks.WebhookSecret = Secret(secret)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps MEMBANK_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// ConfigDir returns ~/.config/membank.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "membank"), nil
}

// validateConfigPath checks that path is inside an allowed directory.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Paths that don't exist yet are validated as given.
		resolvedPath = absPath
	}

	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	for _, allowed := range []string{dir, "/etc/membank"} {
		if resolvedPath == allowed || strings.HasPrefix(resolvedPath, allowed+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/membank/ or /etc/membank/")
}

// validateConfigFileProperties checks file permissions and size of an opened file.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.State.Path == "" {
		cfg.State.Path = "~/.config/membank/state.json"
	}

	if cfg.Vault.Program == "" {
		cfg.Vault.Program = "obsidian"
	}
	if cfg.Vault.Timeout == 0 {
		cfg.Vault.Timeout = 30 * time.Second
	}

	if cfg.Notes.ProjectRoot == "" {
		cfg.Notes.ProjectRoot = DefaultProjectRoot
	}

	if len(cfg.Hooks.SignatureEnv) == 0 {
		cfg.Hooks.SignatureEnv = append([]string(nil), DefaultSignatureEnv...)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 1
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}

// seededDefaults returns defaults whose zero value is a valid setting.
// A zero audit frequency disables auto-audit; scrubbing is on unless disabled.
func seededDefaults() map[string]interface{} {
	return map[string]interface{}{
		"notes.scrub_secrets":     true,
		"audit.default_frequency": DefaultAuditFrequency,
	}
}
