// Package local provides a local filesystem storage backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fruitsalade/explorer/internal/storage"
)

const tempPattern = ".explorer-*.tmp"

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string
	CreateDirs bool
}

// LocalBackend implements storage.Backend using a directory on disk as the
// store root.
type LocalBackend struct {
	rootPath   string
	createDirs bool
}

// New creates a new local filesystem backend.
func New(cfg Config) (*LocalBackend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &LocalBackend{
		rootPath:   cfg.RootPath,
		createDirs: cfg.CreateDirs,
	}, nil
}

// fullPath maps a store path onto disk. path.Clean on the rooted key keeps
// ".." from climbing out of rootPath.
func (b *LocalBackend) fullPath(key string) string {
	return filepath.Join(b.rootPath, filepath.FromSlash(path.Clean("/"+key)))
}

func wrap(op, key string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s %s: %w", op, key, storage.ErrNotFound)
	case errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%s %s: %w", op, key, storage.ErrNotDirectory)
	default:
		return fmt.Errorf("%s %s: %w", op, key, err)
	}
}

func isTemp(name string) bool {
	return strings.HasPrefix(name, ".explorer-") && strings.HasSuffix(name, ".tmp")
}

// ReadDir lists the immediate children of a directory in name order.
func (b *LocalBackend) ReadDir(_ context.Context, key string) ([]storage.Entry, error) {
	dirents, err := os.ReadDir(b.fullPath(key))
	if err != nil {
		return nil, wrap("read dir", key, err)
	}

	entries := make([]storage.Entry, 0, len(dirents))
	for _, d := range dirents {
		if isTemp(d.Name()) {
			continue
		}
		entry := storage.Entry{
			Name:  d.Name(),
			Path:  storage.Join(path.Clean("/"+key), d.Name()),
			IsDir: d.IsDir(),
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stat reports size, birth/modification time and type.
func (b *LocalBackend) Stat(_ context.Context, key string) (*storage.Metadata, error) {
	full := b.fullPath(key)
	info, err := os.Stat(full)
	if err != nil {
		return nil, wrap("stat", key, err)
	}
	return &storage.Metadata{
		Size:     sizeOf(info),
		Created:  birthTime(full, info),
		Modified: info.ModTime(),
		IsDir:    info.IsDir(),
	}, nil
}

func sizeOf(info fs.FileInfo) int64 {
	if info.IsDir() {
		return 0
	}
	return info.Size()
}

// PutFile writes content atomically via temp file and rename.
func (b *LocalBackend) PutFile(_ context.Context, key string, body io.Reader, _ int64) error {
	full := b.fullPath(key)
	dir := filepath.Dir(full)

	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return fmt.Errorf("put %s: %w", key, storage.ErrIsDirectory)
	}

	if b.createDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dirs for %s: %w", key, err)
		}
	}

	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return wrap("create temp for", key, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", key, err)
	}

	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", key, err)
	}
	return nil
}

// GetFile opens an existing file. Directories are refused.
func (b *LocalBackend) GetFile(_ context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := os.Open(b.fullPath(key))
	if err != nil {
		return nil, 0, wrap("open", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, wrap("stat", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("open %s: %w", key, storage.ErrIsDirectory)
	}
	return f, info.Size(), nil
}

// RemoveFile removes a single file.
func (b *LocalBackend) RemoveFile(_ context.Context, key string) error {
	full := b.fullPath(key)
	info, err := os.Lstat(full)
	if err != nil {
		return wrap("delete", key, err)
	}
	if info.IsDir() {
		return fmt.Errorf("delete %s: %w", key, storage.ErrIsDirectory)
	}
	if err := os.Remove(full); err != nil {
		return wrap("delete", key, err)
	}
	return nil
}

// MakeDir creates the directory and any missing parents.
func (b *LocalBackend) MakeDir(_ context.Context, key string) error {
	if err := os.MkdirAll(b.fullPath(key), 0755); err != nil {
		return wrap("mkdir", key, err)
	}
	return nil
}

// RemoveAll removes a directory tree. Files and the store root are refused.
func (b *LocalBackend) RemoveAll(_ context.Context, key string) error {
	if path.Clean("/"+key) == "/" {
		return fmt.Errorf("remove all %s: %w", key, storage.ErrInvalidPath)
	}
	full := b.fullPath(key)
	info, err := os.Lstat(full)
	if err != nil {
		return wrap("remove all", key, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("remove all %s: %w", key, storage.ErrNotDirectory)
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("remove all %s: %w", key, err)
	}
	return nil
}

// Type returns "local".
func (b *LocalBackend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *LocalBackend) Close() error { return nil }
