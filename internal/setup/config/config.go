package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion of the config file.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Platform   Platform   `koanf:"platform"`
	Sentry     Sentry     `koanf:"sentry"`
	Worker     Worker     `koanf:"worker"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Platform contains external social platform API configuration.
type Platform struct {
	// Base URL of the platform API.
	BaseURL string `koanf:"base_url"`
	// Access token used for API calls.
	Token string `koanf:"token"`
	// ID of the main community group.
	MainGroupID uint64 `koanf:"main_group_id"`
	// ID of the test community group.
	TestGroupID uint64 `koanf:"test_group_id"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
}

// Sentry contains error reporting configuration.
type Sentry struct {
	// Sentry DSN; empty disables reporting.
	DSN string `koanf:"dsn"`
	// Deployment environment tag.
	Environment string `koanf:"environment"`
}

// Worker contains background worker configuration.
type Worker struct {
	// Hour of day (UTC) at which the trust sweep starts.
	TrustSweepHour int `koanf:"trust_sweep_hour"`
	// Trust values older than this many days are recomputed by the sweep.
	TrustOutdatedDays int `koanf:"trust_outdated_days"`
	// Group snapshot refresh interval in minutes.
	GroupRefreshMinutes int `koanf:"group_refresh_minutes"`
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".warden",
		homeDir + "/.warden/config",
		"/etc/warden/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/config.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: config.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Version == 0 {
		return nil, "", fmt.Errorf("%w: config.toml", ErrConfigVersionMissing)
	}

	if config.Version != CurrentVersion {
		return nil, "", fmt.Errorf("%w: config.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, config.Version, CurrentVersion)
	}

	return &config, usedConfigPath, nil
}
