// Package memory provides an in-process storage backend. Contents live for
// the lifetime of the process; useful for tests and throwaway deployments.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fruitsalade/explorer/internal/storage"
)

type node struct {
	isDir    bool
	data     []byte
	created  time.Time
	modified time.Time
}

// Backend implements storage.Backend on a map keyed by absolute path.
type Backend struct {
	mu    sync.RWMutex
	nodes map[string]*node
	now   func() time.Time
}

// New creates an empty store containing only the root directory.
func New() *Backend {
	b := &Backend{
		nodes: make(map[string]*node),
		now:   time.Now,
	}
	t := b.now()
	b.nodes["/"] = &node{isDir: true, created: t, modified: t}
	return b
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// ReadDir lists immediate children sorted by name.
func (b *Backend) ReadDir(_ context.Context, p string) ([]storage.Entry, error) {
	p = clean(p)
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[p]
	if !ok {
		return nil, fmt.Errorf("read dir %s: %w", p, storage.ErrNotFound)
	}
	if !n.isDir {
		return nil, fmt.Errorf("read dir %s: %w", p, storage.ErrNotDirectory)
	}

	entries := []storage.Entry{}
	for key, child := range b.nodes {
		if key == p || path.Dir(key) != p {
			continue
		}
		entries = append(entries, storage.Entry{
			Name:  path.Base(key),
			Path:  key,
			IsDir: child.isDir,
			Size:  int64(len(child.data)),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat reports metadata for a path.
func (b *Backend) Stat(_ context.Context, p string) (*storage.Metadata, error) {
	p = clean(p)
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[p]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", p, storage.ErrNotFound)
	}
	return &storage.Metadata{
		Size:     int64(len(n.data)),
		Created:  n.created,
		Modified: n.modified,
		IsDir:    n.isDir,
	}, nil
}

// PutFile creates or replaces a file. The parent directory must exist.
func (b *Backend) PutFile(_ context.Context, p string, body io.Reader, _ int64) error {
	p = clean(p)
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body for %s: %w", p, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	parent, ok := b.nodes[path.Dir(p)]
	if !ok {
		return fmt.Errorf("put %s: parent: %w", p, storage.ErrNotFound)
	}
	if !parent.isDir {
		return fmt.Errorf("put %s: parent: %w", p, storage.ErrNotDirectory)
	}

	now := b.now()
	if existing, ok := b.nodes[p]; ok {
		if existing.isDir {
			return fmt.Errorf("put %s: %w", p, storage.ErrIsDirectory)
		}
		existing.data = data
		existing.modified = now
		return nil
	}
	b.nodes[p] = &node{data: data, created: now, modified: now}
	return nil
}

// GetFile returns a reader over a copy of the file contents.
func (b *Backend) GetFile(_ context.Context, p string) (io.ReadCloser, int64, error) {
	p = clean(p)
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.nodes[p]
	if !ok {
		return nil, 0, fmt.Errorf("open %s: %w", p, storage.ErrNotFound)
	}
	if n.isDir {
		return nil, 0, fmt.Errorf("open %s: %w", p, storage.ErrIsDirectory)
	}
	data := bytes.Clone(n.data)
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// RemoveFile deletes a single file.
func (b *Backend) RemoveFile(_ context.Context, p string) error {
	p = clean(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[p]
	if !ok {
		return fmt.Errorf("remove %s: %w", p, storage.ErrNotFound)
	}
	if n.isDir {
		return fmt.Errorf("remove %s: %w", p, storage.ErrIsDirectory)
	}
	delete(b.nodes, p)
	return nil
}

// MakeDir creates p and any missing parents.
func (b *Backend) MakeDir(_ context.Context, p string) error {
	p = clean(p)
	b.mu.Lock()
	defer b.mu.Unlock()

	var missing []string
	for cur := p; ; cur = path.Dir(cur) {
		n, ok := b.nodes[cur]
		if ok {
			if !n.isDir {
				return fmt.Errorf("mkdir %s: %s: %w", p, cur, storage.ErrNotDirectory)
			}
			break
		}
		missing = append(missing, cur)
	}

	now := b.now()
	for _, dir := range missing {
		b.nodes[dir] = &node{isDir: true, created: now, modified: now}
	}
	return nil
}

// RemoveAll deletes the directory p and every path below it.
func (b *Backend) RemoveAll(_ context.Context, p string) error {
	p = clean(p)
	if p == "/" {
		return fmt.Errorf("remove all %s: %w", p, storage.ErrInvalidPath)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[p]
	if !ok {
		return fmt.Errorf("remove all %s: %w", p, storage.ErrNotFound)
	}
	if !n.isDir {
		return fmt.Errorf("remove all %s: %w", p, storage.ErrNotDirectory)
	}
	prefix := p + "/"
	for key := range b.nodes {
		if key == p || strings.HasPrefix(key, prefix) {
			delete(b.nodes, key)
		}
	}
	return nil
}

// Type returns "memory".
func (b *Backend) Type() string { return "memory" }

// Close is a no-op.
func (b *Backend) Close() error { return nil }
