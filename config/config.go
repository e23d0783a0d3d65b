package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Sweep       SweepConfig       `yaml:"sweep"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
	Narrative   NarrativeConfig   `yaml:"narrative"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds"`
	CacheTTL        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	Seed                   bool   `yaml:"seed"`
}

// PersistenceConfig tunes the asynchronous write queue. QueueSize is the
// backlog length above which a warning is logged.
type PersistenceConfig struct {
	QueueSize      int           `yaml:"queue_size"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// SweepConfig controls the periodic health sweep.
type SweepConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// NarrativeConfig configures the generative maintenance report client.
type NarrativeConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// ArchiveConfig configures the S3 bucket backups are archived to. Empty
// credentials fall back to the default AWS credential chain.
type ArchiveConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // optional, e.g. MinIO
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in unset values.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "file:partlife.db?cache=shared"
	}

	if cfg.Persistence.QueueSize <= 0 {
		cfg.Persistence.QueueSize = 256
	}
	if cfg.Persistence.TimeoutSeconds <= 0 {
		cfg.Persistence.TimeoutSeconds = 10
	}
	cfg.Persistence.Timeout = time.Duration(cfg.Persistence.TimeoutSeconds) * time.Second

	if cfg.Sweep.IntervalSeconds <= 0 {
		cfg.Sweep.IntervalSeconds = 3600
	}
	cfg.Sweep.Interval = time.Duration(cfg.Sweep.IntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Narrative.BaseURL == "" {
		cfg.Narrative.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Narrative.Model == "" {
		cfg.Narrative.Model = "gemini-2.5-flash"
	}
	if cfg.Narrative.TimeoutSeconds <= 0 {
		cfg.Narrative.TimeoutSeconds = 30
	}
	cfg.Narrative.Timeout = time.Duration(cfg.Narrative.TimeoutSeconds) * time.Second

	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "backups/"
	}
}
