// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Storage backend ("local", "s3" or "memory")
	StorageBackend   string        `envconfig:"STORAGE_BACKEND" default:"local"`
	LocalStoragePath string        `envconfig:"LOCAL_STORAGE_PATH" default:"/data/explorer"`
	StoreTimeout     time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	// S3 storage
	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:"http://localhost:9000"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"explorer"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:"minioadmin"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:"minioadmin"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Explorer
	HomeDir         string `envconfig:"HOME_DIR" default:"/home"`
	ShareLinkPrefix string `envconfig:"SHARE_LINK_PREFIX"`
	MaxUploadSize   int64  `envconfig:"MAX_UPLOAD_SIZE" default:"104857600"`

	// Auth (empty secret leaves the owner API open)
	JWTSecret string `envconfig:"JWT_SECRET"`

	// Rate limit on /shared/ per client IP (0 rps disables)
	ShareRateLimitRPS   float64 `envconfig:"SHARE_RATE_LIMIT_RPS" default:"10"`
	ShareRateLimitBurst int     `envconfig:"SHARE_RATE_LIMIT_BURST" default:"20"`

	// TLS (optional, if both set the server uses HTTPS)
	TLSCertFile string `envconfig:"TLS_CERT_FILE"`
	TLSKeyFile  string `envconfig:"TLS_KEY_FILE"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(cfg.StorageBackend)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "local":
		if c.LocalStoragePath == "" {
			return fmt.Errorf("LOCAL_STORAGE_PATH is required for the local backend")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want local, s3 or memory)", c.StorageBackend)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if c.ShareRateLimitRPS < 0 || c.ShareRateLimitBurst < 0 {
		return fmt.Errorf("share rate limit must not be negative")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// TLSEnabled reports whether both TLS files are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
