// Package daemon manages the Stride daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // gamification.timezone must resolve without system zoneinfo

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/stride-habits/stride/internal/app/engagement"
	"github.com/stride-habits/stride/internal/domain"
)

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig          `toml:"api"`
	Database      DatabaseConfig     `toml:"database"`
	Gamification  GamificationConfig `toml:"gamification"`
	Notifications NotificationConfig `toml:"notifications"`
	Integrity     IntegrityConfig    `toml:"integrity"`
	Telemetry     TelemetryConfig    `toml:"telemetry"`
	Logging       LoggingConfig      `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	ServiceToken   string `toml:"service_token"`
	RequestTimeout string `toml:"request_timeout"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Dir string `toml:"dir"`
}

// GamificationConfig tunes the award pipeline.
type GamificationConfig struct {
	AutoCreateProfiles bool   `toml:"auto_create_profiles"`
	MaxAwardChain      int    `toml:"max_award_chain"`
	Timezone           string `toml:"timezone"`
}

// NotificationConfig controls unlock and level-up notifications.
type NotificationConfig struct {
	Enabled    bool   `toml:"enabled"`
	MaxPerDay  int    `toml:"max_per_day"`
	QuietStart string `toml:"quiet_start"`
	QuietEnd   string `toml:"quiet_end"`
}

// IntegrityConfig controls the periodic ledger check.
type IntegrityConfig struct {
	Enabled    bool   `toml:"enabled"`
	Interval   string `toml:"interval"`
	AutoRepair bool   `toml:"auto_repair"`
}

// TelemetryConfig controls metrics export.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	policy := domain.DefaultNotificationPolicy()
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8420,
			RequestTimeout: "30s",
		},
		Database: DatabaseConfig{
			Dir: strideHome(),
		},
		Gamification: GamificationConfig{
			AutoCreateProfiles: true,
			MaxAwardChain:      engagement.DefaultMaxAwardChain,
			Timezone:           "UTC",
		},
		Notifications: NotificationConfig{
			Enabled:    true,
			MaxPerDay:  policy.MaxPerDay,
			QuietStart: policy.QuietStart,
			QuietEnd:   policy.QuietEnd,
		},
		Integrity: IntegrityConfig{
			Enabled:    true,
			Interval:   "15m",
			AutoRepair: true,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads $STRIDE_HOME/config.toml, falling back to defaults, then
// applies STRIDE_* environment overrides. A .env file in the working
// directory is loaded first; it never overrides variables already set.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays STRIDE_* variables onto cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("STRIDE_HOME"); v != "" {
		cfg.Database.Dir = v
	}
	if v := os.Getenv("STRIDE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STRIDE_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &domain.ValidationError{Field: "STRIDE_API_PORT", Message: fmt.Sprintf("not a number: %q", v)}
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("STRIDE_SERVICE_TOKEN"); v != "" {
		cfg.API.ServiceToken = v
	}
	if v := os.Getenv("STRIDE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STRIDE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("STRIDE_TIMEZONE"); v != "" {
		cfg.Gamification.Timezone = v
	}
	return nil
}

// Validate checks every field that would otherwise fail at startup.
func (c Config) Validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return &domain.ValidationError{Field: "api.port", Message: fmt.Sprintf("must be 1-65535, got %d", c.API.Port)}
	}
	if c.API.RequestTimeout != "" {
		if d, err := time.ParseDuration(c.API.RequestTimeout); err != nil || d <= 0 {
			return &domain.ValidationError{Field: "api.request_timeout", Message: fmt.Sprintf("invalid duration %q", c.API.RequestTimeout)}
		}
	}
	if c.Gamification.MaxAwardChain < 1 {
		return &domain.ValidationError{Field: "gamification.max_award_chain", Message: "must be positive"}
	}
	if _, err := time.LoadLocation(c.Gamification.Timezone); err != nil {
		return &domain.ValidationError{Field: "gamification.timezone", Message: err.Error()}
	}
	if c.Notifications.MaxPerDay < 0 {
		return &domain.ValidationError{Field: "notifications.max_per_day", Message: "must not be negative"}
	}
	for field, v := range map[string]string{
		"notifications.quiet_start": c.Notifications.QuietStart,
		"notifications.quiet_end":   c.Notifications.QuietEnd,
	} {
		if v != "" && !engagement.ValidHHMM(v) {
			return &domain.ValidationError{Field: field, Message: fmt.Sprintf("want HH:MM, got %q", v)}
		}
	}
	if c.Integrity.Enabled {
		if d, err := time.ParseDuration(c.Integrity.Interval); err != nil || d <= 0 {
			return &domain.ValidationError{Field: "integrity.interval", Message: fmt.Sprintf("invalid duration %q", c.Integrity.Interval)}
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return &domain.ValidationError{Field: "logging.format", Message: fmt.Sprintf("want text or json, got %q", c.Logging.Format)}
	}
	return nil
}

// Location returns the configured streak timezone, UTC if unset.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Gamification.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Policy returns the notification policy.
func (c Config) Policy() domain.NotificationPolicy {
	return domain.NotificationPolicy{
		MaxPerDay:  c.Notifications.MaxPerDay,
		QuietStart: c.Notifications.QuietStart,
		QuietEnd:   c.Notifications.QuietEnd,
	}
}

// SaveConfig writes the config to $STRIDE_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(strideHome(), "config.toml")
}

// strideHome returns the Stride data directory.
func strideHome() string {
	if env := os.Getenv("STRIDE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stride")
}

// StrideHome is exported for use by other packages.
func StrideHome() string {
	return strideHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
