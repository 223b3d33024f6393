// Package config provides configuration loading for menucart.
//
// Configuration is read from an optional YAML file and overridden by
// MENUCART_* environment variables. Missing values get defaults and the
// result is validated before use.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/menucart/internal/storage"
)

// Sync drivers.
const (
	SyncLocal = "local"
	SyncNATS  = "nats"
)

// Config holds the complete menucart configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Sync      SyncConfig      `koanf:"sync"`
	Checkout  CheckoutConfig  `koanf:"checkout"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host              string        `koanf:"http_host"`
	Port              int           `koanf:"http_port"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// RateLimit is requests per second per client on the JSON API. Zero
	// disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig selects where carts are persisted.
type StorageConfig struct {
	Backend    string `koanf:"backend"` // memory, file or sqlite
	Path       string `koanf:"path"`
	QuotaBytes int    `koanf:"quota_bytes"`

	CanonicalKey string `koanf:"canonical_key"`
	MirrorKey    string `koanf:"mirror_key"`

	// Watch reports changes written by other processes. File backend only.
	Watch bool `koanf:"watch"`
}

// SyncConfig selects how change events travel between views.
type SyncConfig struct {
	Driver        string `koanf:"driver"`
	NATSURL       Secret `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// CheckoutConfig holds checkout behavior.
type CheckoutConfig struct {
	RedirectTarget string `koanf:"redirect_target"`
}

// LoggingConfig is decoded into logging.Config by the binaries.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig controls OTLP export of the HTTP metrics. Disabled by
// default; /metrics works without a collector.
type TelemetryConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Endpoint       string        `koanf:"endpoint"`
	Protocol       string        `koanf:"protocol"` // grpc or http/protobuf
	Insecure       bool          `koanf:"insecure"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.HeartbeatInterval == 0 {
		cfg.Server.HeartbeatInterval = 15 * time.Second
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = int(cfg.Server.RateLimit) * 2
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = storage.BackendMemory
	}
	if cfg.Storage.CanonicalKey == "" {
		cfg.Storage.CanonicalKey = "cart"
	}
	if cfg.Storage.MirrorKey == "" {
		cfg.Storage.MirrorKey = "pedido"
	}

	// Sync defaults
	if cfg.Sync.Driver == "" {
		cfg.Sync.Driver = SyncLocal
	}
	if cfg.Sync.SubjectPrefix == "" {
		cfg.Sync.SubjectPrefix = "menucart.changes"
	}

	if cfg.Checkout.RedirectTarget == "" {
		cfg.Checkout.RedirectTarget = "/"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 15 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	if c.Server.RateLimit < 0 {
		return errors.New("rate limit cannot be negative")
	}

	switch c.Storage.Backend {
	case storage.BackendMemory:
		if c.Storage.Watch {
			return errors.New("storage.watch requires the file backend")
		}
	case storage.BackendFile, storage.BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
		if c.Storage.Watch && c.Storage.Backend != storage.BackendFile {
			return errors.New("storage.watch requires the file backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.QuotaBytes < 0 {
		return errors.New("storage quota cannot be negative")
	}
	if err := storage.ValidateKey(c.Storage.CanonicalKey); err != nil {
		return fmt.Errorf("storage.canonical_key: %w", err)
	}
	if err := storage.ValidateKey(c.Storage.MirrorKey); err != nil {
		return fmt.Errorf("storage.mirror_key: %w", err)
	}
	if c.Storage.MirrorKey == c.Storage.CanonicalKey {
		return errors.New("storage.mirror_key must differ from storage.canonical_key")
	}

	switch c.Sync.Driver {
	case SyncLocal:
	case SyncNATS:
		if !c.Sync.NATSURL.IsSet() {
			return errors.New("sync.nats_url is required for the nats driver")
		}
		if strings.ContainsAny(c.Sync.SubjectPrefix, " *>") {
			return fmt.Errorf("invalid sync.subject_prefix %q", c.Sync.SubjectPrefix)
		}
	default:
		return fmt.Errorf("unknown sync driver %q", c.Sync.Driver)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			return fmt.Errorf("unknown telemetry protocol %q (want grpc or http/protobuf)", c.Telemetry.Protocol)
		}
		if c.Telemetry.ExportInterval <= 0 {
			return errors.New("telemetry.export_interval must be positive")
		}
	}

	return nil
}
