// Package backends builds the configured storage.Backend. It lives apart
// from package storage because every implementation imports storage.
package backends

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/config"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/storage"
	"github.com/fruitsalade/explorer/internal/storage/local"
	"github.com/fruitsalade/explorer/internal/storage/memory"
	s3backend "github.com/fruitsalade/explorer/internal/storage/s3"
)

// NewBackendFromConfig creates the backend named by cfg.StorageBackend and
// wraps it with the per-call store timeout.
func NewBackendFromConfig(ctx context.Context, cfg *config.Config) (*storage.Timed, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.StorageBackend {
	case "s3":
		b, err = s3backend.NewBackend(ctx, s3backend.BackendConfig{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	case "local":
		b, err = local.New(local.Config{
			RootPath:   cfg.LocalStoragePath,
			CreateDirs: true,
		})
	case "memory":
		b = memory.New()
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.StorageBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s backend: %w", cfg.StorageBackend, err)
	}

	logging.Info("storage backend ready",
		zap.String("type", b.Type()),
		zap.Duration("timeout", cfg.StoreTimeout))
	return storage.NewTimed(b, cfg.StoreTimeout), nil
}
