//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-stock-ingest.
// Configuration is loaded from an optional config file, a .env file and
// environment variables. Environment variables take precedence over the
// config file; CLI flags are applied on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultFeedURL is the upstream daily stock summary endpoint.
const DefaultFeedURL = "https://getidx.geo-circle.workers.dev/"

// DefaultUserAgent is sent to the feed; the upstream rejects non-browser agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// ErrMissingSetting is returned by Validate when a required setting is empty.
var ErrMissingSetting = errors.New("missing required setting")

// envBindings maps config keys to the environment variables that feed them.
var envBindings = map[string]string{
	"database.host":     "DB_HOST",
	"database.port":     "DB_PORT",
	"database.name":     "DB_NAME",
	"database.user":     "DB_USER",
	"database.password": "DB_PASSWORD",
	"database.sslmode":  "DB_SSLMODE",
	"feed.url":          "FEED_URL",
	"log_level":         "LOG_LEVEL",
	"log_file":          "LOG_FILE",
}

// Config holds all configuration for pgedge-stock-ingest.
type Config struct {
	// Database holds the PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`

	// Feed holds the upstream HTTP feed settings.
	Feed FeedConfig `mapstructure:"feed"`

	// Schedule holds configuration for the schedule subcommand.
	Schedule ScheduleConfig `mapstructure:"schedule"`

	// Mock holds configuration for the mock-feed subcommand.
	Mock MockConfig `mapstructure:"mock"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogFile, when set, writes rotated JSON logs to this path.
	LogFile string `mapstructure:"log_file"`
}

// DatabaseConfig holds the settings used to open the shared connection.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`

	// SSLMode is passed through to libpq-style sslmode (disable, prefer, require...).
	SSLMode string `mapstructure:"sslmode"`

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// KeepAliveIdle is the idle time before the first TCP keepalive probe.
	KeepAliveIdle time.Duration `mapstructure:"keepalive_idle"`

	// KeepAliveInterval is the time between keepalive probes.
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`

	// KeepAliveCount is the number of unanswered probes before the peer is
	// considered dead.
	KeepAliveCount int `mapstructure:"keepalive_count"`
}

// FeedConfig holds the upstream feed settings.
type FeedConfig struct {
	URL       string        `mapstructure:"url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ScheduleConfig holds configuration for recurring ingestion.
type ScheduleConfig struct {
	// Cron is a standard five-field cron expression.
	Cron string `mapstructure:"cron"`

	// Timezone is the IANA zone the cron expression is evaluated in.
	Timezone string `mapstructure:"timezone"`

	// RunOnStart triggers one invocation immediately on startup.
	RunOnStart bool `mapstructure:"run_on_start"`
}

// MockConfig holds configuration for the local synthetic feed server.
type MockConfig struct {
	Addr  string `mapstructure:"addr"`
	Items int    `mapstructure:"items"`

	// Seed makes the generated feed reproducible per date. Zero means random.
	Seed uint64 `mapstructure:"seed"`

	// Malformed is the fraction of items that fail normalization.
	Malformed float64 `mapstructure:"malformed"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Database: DatabaseConfig{
			Port:              5432,
			SSLMode:           "prefer",
			ConnectTimeout:    10 * time.Second,
			KeepAliveIdle:     30 * time.Second,
			KeepAliveInterval: 10 * time.Second,
			KeepAliveCount:    5,
		},
		Feed: FeedConfig{
			URL:       DefaultFeedURL,
			UserAgent: DefaultUserAgent,
			Timeout:   30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Cron:     "30 17 * * 1-5", // after the IDX close
			Timezone: "Asia/Jakarta",
		},
		Mock: MockConfig{
			Addr:  "127.0.0.1:8089",
			Items: 900,
		},
	}
}

// LoadDotEnv loads variables from a .env file in the working directory.
// A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

// Load reads configuration from config files and the environment.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-stock-ingest.yaml
// 3. ~/.config/pgedge-stock-ingest/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set config name and type
	v.SetConfigName("pgedge-stock-ingest")
	v.SetConfigType("yaml")

	// Add config paths
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-stock-ingest"))
	}

	// Use specific config file if provided
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", env, err)
		}
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Start with defaults
	cfg := DefaultConfig()

	// Unmarshal config file and environment values
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the database settings needed to connect are present.
func (c *DatabaseConfig) Validate() error {
	required := []struct {
		env, value string
	}{
		{"DB_HOST", c.Host},
		{"DB_NAME", c.Name},
		{"DB_USER", c.User},
		{"DB_PASSWORD", c.Password},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingSetting, r.env)
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid DB_PORT %d", c.Port)
	}
	return nil
}

// Validate checks configuration required for an ingest run.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	return c.ValidateFeed()
}

// ValidateFeed checks the feed settings.
func (c *Config) ValidateFeed() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("%w: feed url", ErrMissingSetting)
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed timeout must be positive")
	}
	return nil
}

// ValidateSchedule checks configuration required for the schedule command.
func (c *Config) ValidateSchedule() error {
	if err := c.ValidateFeed(); err != nil {
		return err
	}
	if c.Schedule.Cron == "" {
		return fmt.Errorf("%w: schedule cron", ErrMissingSetting)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}
	return nil
}
