// Package storage defines the Backend interface the explorer reads and
// writes through, plus the helpers shared by every implementation.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("is a directory")
	// ErrNotDirectory is returned when a directory operation targets a file.
	ErrNotDirectory = errors.New("not a directory")
	// ErrInvalidPath is returned for paths that escape the store root.
	ErrInvalidPath = errors.New("invalid path")
)

// Entry is one immediate child returned by ReadDir.
type Entry struct {
	Name  string
	Path  string // absolute store path
	IsDir bool
	Size  int64
}

// Metadata is what Stat reports about a single path.
type Metadata struct {
	Size     int64
	Created  time.Time
	Modified time.Time
	IsDir    bool
}

// Backend is the hierarchical store the explorer is built on.
// Paths are absolute and slash separated ("/home/docs/a.txt").
// Implementations wrap ErrNotFound / ErrIsDirectory so callers can match
// them with errors.Is.
type Backend interface {
	// ReadDir returns the immediate children of a directory.
	ReadDir(ctx context.Context, path string) ([]Entry, error)

	// Stat returns size, timestamps and type for a path.
	Stat(ctx context.Context, path string) (*Metadata, error)

	// PutFile creates or overwrites a file with the full body in one write.
	PutFile(ctx context.Context, path string, body io.Reader, size int64) error

	// GetFile opens an existing file for reading.
	GetFile(ctx context.Context, path string) (io.ReadCloser, int64, error)

	// RemoveFile removes a single file. Directories are refused.
	RemoveFile(ctx context.Context, path string) error

	// MakeDir creates a directory and any missing parents. Idempotent.
	MakeDir(ctx context.Context, path string) error

	// RemoveAll removes a directory and everything below it. A file at path
	// fails with ErrNotDirectory.
	RemoveAll(ctx context.Context, path string) error

	// Type returns the backend type identifier ("local", "s3", "memory").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// Clean normalizes a client supplied path into an absolute store path.
// An empty path means the root. Paths that climb above the root are rejected.
func Clean(p string) (string, error) {
	if p == "" {
		return "/", nil
	}
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return path.Clean("/" + p), nil
}

// Join appends a single name to a directory path.
func Join(dir, name string) string {
	if dir == "" || dir == "/" {
		return "/" + name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}

// ReadAll reads a whole file through b.
func ReadAll(ctx context.Context, b Backend, p string) ([]byte, error) {
	rc, _, err := b.GetFile(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
