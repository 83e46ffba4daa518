// Package config loads settings from a YAML file with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvDataDir      = "KEYWARDEN_DATA_DIR"
	EnvIssuer       = "KEYWARDEN_ISSUER"
	EnvSealKey      = "KEYWARDEN_SEAL_KEY"
)

// Storage backend identifiers.
const (
	BackendFile     = "file"
	BackendDatabase = "database"
)

// Defaults applied when the config file omits values.
const (
	DefaultDataDir         = "./data"
	DefaultIssuer          = "keywarden"
	DefaultFailureDelay    = time.Second
	DefaultRateAttempts    = 5
	DefaultRateWindow      = time.Minute
	DefaultRateRedisPrefix = "keywarden:rl"
	DefaultShutdownTimeout = 10 * time.Second
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// StorageConfig selects the credential store backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data-dir"`
	DSN     string `yaml:"-"`
}

// LoadStorageConfig reads storage settings from the YAML config file.
func LoadStorageConfig(configPath string) (StorageConfig, error) {
	// fileConfig maps the YAML fields needed for storage resolution.
	type fileConfig struct {
		Storage struct {
			Backend  string `yaml:"backend"`
			DataDir  string `yaml:"data-dir"`
			Database struct {
				DSN string `yaml:"dsn"`
			} `yaml:"database"`
		} `yaml:"storage"`
	}

	result := StorageConfig{Backend: BackendFile, DataDir: DefaultDataDir}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return StorageConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		if backend := strings.TrimSpace(cfg.Storage.Backend); backend != "" {
			result.Backend = backend
		}
		if dir := strings.TrimSpace(cfg.Storage.DataDir); dir != "" {
			result.DataDir = dir
		}
		result.DSN = strings.TrimSpace(cfg.Storage.Database.DSN)
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		result.DSN = dsn
		result.Backend = BackendDatabase
	}
	if dir := strings.TrimSpace(os.Getenv(EnvDataDir)); dir != "" {
		result.DataDir = dir
	}

	switch result.Backend {
	case BackendFile, BackendDatabase:
	default:
		return StorageConfig{}, fmt.Errorf("unknown storage backend: %q", result.Backend)
	}
	if result.Backend == BackendDatabase && result.DSN == "" {
		return StorageConfig{}, fmt.Errorf("storage backend %q requires a database dsn", BackendDatabase)
	}
	return result, nil
}

// TOTPConfig holds provisioning settings for the TOTP issuer.
type TOTPConfig struct {
	Issuer string `yaml:"issuer"`
}

// LoadTOTPConfig reads TOTP settings from the YAML config file.
func LoadTOTPConfig(configPath string) (TOTPConfig, error) {
	// fileConfig maps the YAML fields needed for TOTP settings.
	type fileConfig struct {
		TOTP TOTPConfig `yaml:"totp"`
	}

	result := TOTPConfig{Issuer: DefaultIssuer}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			if issuer := strings.TrimSpace(cfg.TOTP.Issuer); issuer != "" {
				result.Issuer = issuer
			}
		}
	}

	if issuer := strings.TrimSpace(os.Getenv(EnvIssuer)); issuer != "" {
		result.Issuer = issuer
	}
	return result, nil
}

// RedisConfig holds the optional Redis backend settings for the limiter.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig holds attempt-limiting settings for authentication.
type RateLimitConfig struct {
	Attempts int           `yaml:"attempts"`
	Window   time.Duration `yaml:"window"`
	Redis    RedisConfig   `yaml:"redis"`
}

// AuthConfig holds authentication behavior settings.
type AuthConfig struct {
	FailureDelay time.Duration   `yaml:"failure-delay"`
	RateLimit    RateLimitConfig `yaml:"rate-limit"`
}

// LoadAuthConfig reads authentication settings from the YAML config file.
func LoadAuthConfig(configPath string) (AuthConfig, error) {
	// fileConfig maps the YAML fields needed for auth settings. Durations
	// are strings in Go syntax ("1s", "500ms").
	type fileConfig struct {
		Auth struct {
			FailureDelay string `yaml:"failure-delay"`
			RateLimit    struct {
				Attempts int         `yaml:"attempts"`
				Window   string      `yaml:"window"`
				Redis    RedisConfig `yaml:"redis"`
			} `yaml:"rate-limit"`
		} `yaml:"auth"`
	}

	result := AuthConfig{FailureDelay: DefaultFailureDelay}
	result.RateLimit.Attempts = DefaultRateAttempts
	result.RateLimit.Window = DefaultRateWindow
	result.RateLimit.Redis.Prefix = DefaultRateRedisPrefix

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return AuthConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		if raw := strings.TrimSpace(cfg.Auth.FailureDelay); raw != "" {
			if delay, errParse := time.ParseDuration(raw); errParse == nil && delay >= 0 {
				result.FailureDelay = delay
			}
		}
		if cfg.Auth.RateLimit.Attempts > 0 {
			result.RateLimit.Attempts = cfg.Auth.RateLimit.Attempts
		}
		if raw := strings.TrimSpace(cfg.Auth.RateLimit.Window); raw != "" {
			if window, errParse := time.ParseDuration(raw); errParse == nil && window > 0 {
				result.RateLimit.Window = window
			}
		}
		result.RateLimit.Redis.Enabled = cfg.Auth.RateLimit.Redis.Enabled
		if addr := strings.TrimSpace(cfg.Auth.RateLimit.Redis.Addr); addr != "" {
			result.RateLimit.Redis.Addr = addr
		}
		result.RateLimit.Redis.Password = strings.TrimSpace(cfg.Auth.RateLimit.Redis.Password)
		if cfg.Auth.RateLimit.Redis.DB > 0 {
			result.RateLimit.Redis.DB = cfg.Auth.RateLimit.Redis.DB
		}
		if prefix := strings.TrimSpace(cfg.Auth.RateLimit.Redis.Prefix); prefix != "" {
			result.RateLimit.Redis.Prefix = prefix
		}
	}
	return result, nil
}

// LoadSealKey reads the base64 at-rest sealing key; empty means sealing is
// disabled.
func LoadSealKey(configPath string) (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvSealKey)); key != "" {
		return key, nil
	}

	// fileConfig maps the YAML field holding the sealing key.
	type fileConfig struct {
		SealKey string `yaml:"seal-key"`
	}

	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		return "", nil
	}
	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return strings.TrimSpace(cfg.SealKey), nil
}
