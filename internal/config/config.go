// Package config loads and validates capturesink configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Docstore  DocstoreConfig  `mapstructure:"docstore"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Hooks     HooksConfig     `mapstructure:"hooks"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	CORSOrigin            string `mapstructure:"cors_origin"`
}

// AuthConfig defines API authentication toggles. The key guards the admin
// and hooks surfaces only; webhook delivery is always unauthenticated.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// IngestConfig governs the webhook merge pipeline.
type IngestConfig struct {
	// MaxMergeAttempts caps the conditional-write retry loop.
	MaxMergeAttempts int `mapstructure:"max_merge_attempts"`
	// EventSites extends the built-in event-site markers that switch on
	// date enrichment.
	EventSites []string `mapstructure:"event_sites"`
}

// DocstoreConfig selects the document store backend.
type DocstoreConfig struct {
	// Backend is one of memory, postgres, firestore.
	Backend string `mapstructure:"backend"`
}

// DatabaseConfig controls access to Postgres when it backs the docstore.
type DatabaseConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int    `mapstructure:"max_conns"`
	MinConns               int    `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	EnsureSchema           bool   `mapstructure:"ensure_schema"`
}

// FirestoreConfig identifies the Firestore database when it backs the
// docstore.
type FirestoreConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Database  string `mapstructure:"database"`
}

// ArchiveConfig sets the raw-payload archive backend and layout.
type ArchiveConfig struct {
	// Backend is one of gcs, local, memory, none.
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// HooksConfig tunes outbound webhook delivery.
type HooksConfig struct {
	DeliveryTimeoutSeconds int     `mapstructure:"delivery_timeout_seconds"`
	MaxAttempts            int     `mapstructure:"max_attempts"`
	RatePerHost            float64 `mapstructure:"rate_per_host"`
	RateBurst              int     `mapstructure:"rate_burst"`
}

// NotifyConfig tunes the event hub buffering.
type NotifyConfig struct {
	BufferSize      int `mapstructure:"buffer_size"`
	BatchSize       int `mapstructure:"batch_size"`
	FlushIntervalMs int `mapstructure:"flush_interval_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls tracing export.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ProjectID   string `mapstructure:"project_id"`
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CAPTURESINK")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("ingest.max_merge_attempts", 5)
	v.SetDefault("docstore.backend", "memory")
	v.SetDefault("database.table", "capture_documents")
	v.SetDefault("database.ensure_schema", true)
	v.SetDefault("archive.backend", "none")
	v.SetDefault("archive.prefix", "captures")
	v.SetDefault("hooks.delivery_timeout_seconds", 10)
	v.SetDefault("hooks.max_attempts", 3)
	v.SetDefault("hooks.rate_per_host", 5)
	v.SetDefault("hooks.rate_burst", 10)
	v.SetDefault("notify.buffer_size", 256)
	v.SetDefault("notify.batch_size", 32)
	v.SetDefault("notify.flush_interval_ms", 500)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.service_name", "capturesink")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Ingest.MaxMergeAttempts <= 0 {
		return fmt.Errorf("ingest.max_merge_attempts must be > 0")
	}
	switch c.Docstore.Backend {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the postgres docstore")
		}
	case "firestore":
		if c.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore.project_id must be set for the firestore docstore")
		}
	default:
		return fmt.Errorf("docstore.backend must be one of memory, postgres, firestore")
	}
	switch c.Archive.Backend {
	case "none", "memory":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs archive")
		}
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set for the local archive")
		}
	default:
		return fmt.Errorf("archive.backend must be one of gcs, local, memory, none")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Hooks.DeliveryTimeoutSeconds <= 0 {
		return fmt.Errorf("hooks.delivery_timeout_seconds must be > 0")
	}
	if c.Hooks.RatePerHost <= 0 {
		return fmt.Errorf("hooks.rate_per_host must be > 0")
	}
	if c.Telemetry.Enabled && c.Telemetry.ProjectID == "" {
		return fmt.Errorf("telemetry.project_id must be set when telemetry is enabled")
	}
	return nil
}

// RequestTimeout converts the configured request timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// HookDeliveryTimeout converts the configured delivery timeout into a
// duration.
func (c Config) HookDeliveryTimeout() time.Duration {
	return time.Duration(c.Hooks.DeliveryTimeoutSeconds) * time.Second
}

// NotifyFlushInterval converts the configured flush interval into a
// duration.
func (c Config) NotifyFlushInterval() time.Duration {
	return time.Duration(c.Notify.FlushIntervalMs) * time.Millisecond
}

// DatabaseConnLifetime converts the configured connection lifetime into a
// duration.
func (c Config) DatabaseConnLifetime() time.Duration {
	return time.Duration(c.Database.MaxConnLifetimeSeconds) * time.Second
}
