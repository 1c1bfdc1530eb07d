package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.MetricsAddr != ":9090" {
		t.Errorf("addrs = %q %q", cfg.ListenAddr, cfg.MetricsAddr)
	}
	if cfg.StorageBackend != "local" {
		t.Errorf("StorageBackend = %q, want local", cfg.StorageBackend)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("StoreTimeout = %s, want 5s", cfg.StoreTimeout)
	}
	if cfg.HomeDir != "/home" {
		t.Errorf("HomeDir = %q, want /home", cfg.HomeDir)
	}
	if cfg.MaxUploadSize != 100*1024*1024 {
		t.Errorf("MaxUploadSize = %d", cfg.MaxUploadSize)
	}
	if cfg.ShareLinkPrefix != "" || cfg.JWTSecret != "" {
		t.Errorf("expected empty link prefix and secret, got %q %q", cfg.ShareLinkPrefix, cfg.JWTSecret)
	}
	if cfg.TLSEnabled() {
		t.Error("TLS enabled without files")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "MEMORY")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("SHARE_LINK_PREFIX", "https://files.example.com")
	t.Setenv("SHARE_RATE_LIMIT_RPS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StorageBackend != "memory" {
		t.Errorf("StorageBackend = %q, want memory", cfg.StorageBackend)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Errorf("StoreTimeout = %s", cfg.StoreTimeout)
	}
	if cfg.ShareLinkPrefix != "https://files.example.com" {
		t.Errorf("ShareLinkPrefix = %q", cfg.ShareLinkPrefix)
	}
	if cfg.ShareRateLimitRPS != 0 {
		t.Errorf("ShareRateLimitRPS = %v, want 0", cfg.ShareRateLimitRPS)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			StorageBackend:   "local",
			LocalStoragePath: "/data",
			StoreTimeout:     time.Second,
			MaxUploadSize:    1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.StorageBackend = "smb" }, true},
		{"local without path", func(c *Config) { c.LocalStoragePath = "" }, true},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = "s3" }, true},
		{"memory", func(c *Config) { c.StorageBackend = "memory"; c.LocalStoragePath = "" }, false},
		{"zero timeout", func(c *Config) { c.StoreTimeout = 0 }, true},
		{"zero upload", func(c *Config) { c.MaxUploadSize = 0 }, true},
		{"negative burst", func(c *Config) { c.ShareRateLimitBurst = -1 }, true},
		{"cert without key", func(c *Config) { c.TLSCertFile = "cert.pem" }, true},
		{"cert and key", func(c *Config) { c.TLSCertFile = "cert.pem"; c.TLSKeyFile = "key.pem" }, false},
	}
	for _, tt := range tests {
		cfg := base()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
