// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	DB      DBConfig      `mapstructure:"db"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Pacing  PacingConfig  `mapstructure:"pacing"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Seed    SeedConfig    `mapstructure:"seed"`
	Backup  BackupConfig  `mapstructure:"backup"`
	Events  EventsConfig  `mapstructure:"events"`
	Ops     OpsConfig     `mapstructure:"ops"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// FetchConfig configures the upstream platform API client.
type FetchConfig struct {
	BaseURL          string  `mapstructure:"base_url"`
	APIKey           string  `mapstructure:"api_key"`
	UserAgent        string  `mapstructure:"user_agent"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	RequestsPerSec   float64 `mapstructure:"requests_per_sec"`
}

// PacingConfig governs the idle delay between successful crawl
// iterations and the backoff applied after failures.
type PacingConfig struct {
	MinSeconds        int `mapstructure:"min_seconds"`
	MaxSeconds        int `mapstructure:"max_seconds"`
	BackoffFloorSec   int `mapstructure:"backoff_floor_seconds"`
	BackoffCeilingSec int `mapstructure:"backoff_ceiling_seconds"`
}

// FilterConfig points at the word files driving admission and text
// cleaning, and fixes the coverage epoch.
type FilterConfig struct {
	LocationsFile string   `mapstructure:"locations_file"`
	StopwordFiles []string `mapstructure:"stopword_files"`
	RelevanceFile string   `mapstructure:"relevance_file"`
	EpochDate     string   `mapstructure:"epoch_date"`
}

// SeedConfig locates the public directory used to bootstrap the
// population.
type SeedConfig struct {
	DirectoryURL string `mapstructure:"directory_url"`
	UserAgent    string `mapstructure:"user_agent"`
}

// BackupConfig selects where raw API payloads are archived.
type BackupConfig struct {
	Provider string `mapstructure:"provider"` // gcs, local, or noop
	Bucket   string `mapstructure:"bucket"`
	Dir      string `mapstructure:"dir"`
	Prefix   string `mapstructure:"prefix"`
}

// EventsConfig selects where ingestion events are published.
type EventsConfig struct {
	Provider  string `mapstructure:"provider"` // pubsub or noop
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// OpsConfig controls the operational HTTP server.
type OpsConfig struct {
	Port int `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("fetch.user_agent", "geopop-harvester/1.0")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_initial_ms", 500)
	v.SetDefault("fetch.backoff_max_ms", 10000)
	v.SetDefault("fetch.requests_per_sec", 1.0)
	v.SetDefault("pacing.min_seconds", 15)
	v.SetDefault("pacing.max_seconds", 30)
	v.SetDefault("pacing.backoff_floor_seconds", 60)
	v.SetDefault("pacing.backoff_ceiling_seconds", 900)
	v.SetDefault("filter.epoch_date", "2012-01-01")
	v.SetDefault("backup.provider", "noop")
	v.SetDefault("backup.prefix", "harvest")
	v.SetDefault("events.provider", "noop")
	v.SetDefault("events.topic", "harvest-events")
	v.SetDefault("ops.port", 8080)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required")
	}
	if c.Fetch.BaseURL == "" {
		return fmt.Errorf("fetch.base_url is required")
	}
	if c.Pacing.MinSeconds <= 0 || c.Pacing.MaxSeconds < c.Pacing.MinSeconds {
		return fmt.Errorf("pacing.min_seconds must be > 0 and <= pacing.max_seconds")
	}
	if c.Pacing.BackoffFloorSec <= 0 || c.Pacing.BackoffCeilingSec < c.Pacing.BackoffFloorSec {
		return fmt.Errorf("pacing.backoff_floor_seconds must be > 0 and <= pacing.backoff_ceiling_seconds")
	}
	if _, err := c.Epoch(); err != nil {
		return err
	}
	switch c.Backup.Provider {
	case "gcs":
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backup.bucket is required when backup.provider is gcs")
		}
	case "local":
		if c.Backup.Dir == "" {
			return fmt.Errorf("backup.dir is required when backup.provider is local")
		}
	case "noop":
	default:
		return fmt.Errorf("backup.provider must be gcs, local, or noop")
	}
	switch c.Events.Provider {
	case "pubsub":
		if c.Events.ProjectID == "" || c.Events.Topic == "" {
			return fmt.Errorf("events.project_id and events.topic are required when events.provider is pubsub")
		}
	case "noop":
	default:
		return fmt.Errorf("events.provider must be pubsub or noop")
	}
	if c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0")
	}
	return nil
}

// Epoch parses filter.epoch_date into the coverage range start.
func (c Config) Epoch() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Filter.EpochDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("filter.epoch_date must be YYYY-MM-DD: %w", err)
	}
	return t.UTC(), nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
