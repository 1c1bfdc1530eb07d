package explorer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/storage"
)

// Cwd is the browser's current directory. It is a UI hint only: nothing
// resolves paths against it and it is not persisted.
type Cwd struct {
	mu   sync.RWMutex
	path string
}

// NewCwd returns a Cwd set to p.
func NewCwd(p string) *Cwd {
	return &Cwd{path: p}
}

// Get returns the current directory.
func (c *Cwd) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Set stores p verbatim and returns it.
func (c *Cwd) Set(p string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = p
	return p
}

// InitHome creates home in the store and returns a Cwd pointing at it. If
// the directory cannot be created the Cwd falls back to "/".
func InitHome(ctx context.Context, store storage.Backend, home string) *Cwd {
	clean, err := storage.Clean(home)
	if err == nil {
		err = store.MakeDir(ctx, clean)
	}
	if err != nil {
		logging.Error("failed to create home directory",
			zap.String("path", home), zap.Error(err))
		return NewCwd("/")
	}
	logging.Info("home directory ready", zap.String("path", clean))
	return NewCwd(clean)
}
