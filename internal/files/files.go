// Package files implements file and directory CRUD on top of a storage
// backend. Move and copy are composed from read, create and delete and are
// not atomic.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/events"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
	"github.com/fruitsalade/explorer/internal/models"
	"github.com/fruitsalade/explorer/internal/storage"
)

// ErrInvalidName is returned for upload names that are not a single path
// element.
var ErrInvalidName = errors.New("invalid file name")

// Service performs file operations against a backend and publishes a
// change event for every successful mutation.
type Service struct {
	store  storage.Backend
	events events.Publisher
}

// New creates a Service. A nil publisher discards events.
func New(store storage.Backend, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard
	}
	return &Service{store: store, events: pub}
}

func (s *Service) publish(typ, p string, size int64) {
	s.events.Publish(events.Event{
		Type:      typ,
		Path:      p,
		Size:      size,
		Timestamp: time.Now().Unix(),
	})
}

// entry stats p for timestamps. A failed stat leaves them at 0.
func (s *Service) entry(ctx context.Context, p string, size int64) models.FileEntry {
	var created, modified int64
	if meta, err := s.store.Stat(ctx, p); err == nil {
		created, modified = unix(meta.Created), unix(meta.Modified)
	}
	return models.NewFileEntry(p, size, created, modified)
}

// Create writes data to a new file, replacing any existing file at p.
func (s *Service) Create(ctx context.Context, p string, data []byte) (models.FileEntry, error) {
	p, err := storage.Clean(p)
	if err != nil {
		return models.FileEntry{}, err
	}
	if err := s.store.PutFile(ctx, p, bytes.NewReader(data), int64(len(data))); err != nil {
		return models.FileEntry{}, fmt.Errorf("failed to create file: %w", err)
	}
	metrics.RecordContentUpload(int64(len(data)))
	s.publish(events.EventCreate, p, int64(len(data)))
	logging.WithContext(ctx).Info("file created", zap.String("path", p), zap.Int("size", len(data)))
	return s.entry(ctx, p, int64(len(data))), nil
}

// Read returns the full content of the file at p.
func (s *Service) Read(ctx context.Context, p string) ([]byte, error) {
	p, err := storage.Clean(p)
	if err != nil {
		return nil, err
	}
	data, err := storage.ReadAll(ctx, s.store, p)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	metrics.RecordContentDownload(int64(len(data)))
	return data, nil
}

// Update overwrites an existing file. It fails if p is absent or a
// directory.
func (s *Service) Update(ctx context.Context, p string, data []byte) (models.FileEntry, error) {
	p, err := storage.Clean(p)
	if err != nil {
		return models.FileEntry{}, err
	}
	meta, err := s.store.Stat(ctx, p)
	if err != nil {
		return models.FileEntry{}, fmt.Errorf("failed to open file: %w", err)
	}
	if meta.IsDir {
		return models.FileEntry{}, fmt.Errorf("failed to open file: %s: %w", p, storage.ErrIsDirectory)
	}
	if err := s.store.PutFile(ctx, p, bytes.NewReader(data), int64(len(data))); err != nil {
		return models.FileEntry{}, fmt.Errorf("failed to write file: %w", err)
	}
	metrics.RecordContentUpload(int64(len(data)))
	s.publish(events.EventModify, p, int64(len(data)))
	logging.WithContext(ctx).Info("file updated", zap.String("path", p), zap.Int("size", len(data)))
	return s.entry(ctx, p, int64(len(data))), nil
}

// Delete removes a single file. Directories are refused.
func (s *Service) Delete(ctx context.Context, p string) (bool, error) {
	p, err := storage.Clean(p)
	if err != nil {
		return false, err
	}
	if err := s.store.RemoveFile(ctx, p); err != nil {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}
	s.publish(events.EventDelete, p, 0)
	logging.WithContext(ctx).Info("file deleted", zap.String("path", p))
	return true, nil
}

// CreateDirectory creates p and any missing parents. Creating an existing
// directory succeeds.
func (s *Service) CreateDirectory(ctx context.Context, p string) (models.FileEntry, error) {
	p, err := storage.Clean(p)
	if err != nil {
		return models.FileEntry{}, err
	}
	if err := s.store.MakeDir(ctx, p); err != nil {
		return models.FileEntry{}, fmt.Errorf("failed to create directory: %w", err)
	}
	s.publish(events.EventMkdir, p, 0)
	return models.NewDirEntry(p, 0), nil
}

// DeleteDirectory removes p and everything below it in one backend call.
// A file at p is refused with storage.ErrNotDirectory.
func (s *Service) DeleteDirectory(ctx context.Context, p string) (bool, error) {
	p, err := storage.Clean(p)
	if err != nil {
		return false, err
	}
	if err := s.store.RemoveAll(ctx, p); err != nil {
		return false, fmt.Errorf("failed to remove directory: %w", err)
	}
	s.publish(events.EventRmdir, p, 0)
	logging.WithContext(ctx).Info("directory deleted", zap.String("path", p))
	return true, nil
}

// Upload creates name inside dir.
func (s *Service) Upload(ctx context.Context, dir, name string, data []byte) (models.FileEntry, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return models.FileEntry{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir, err := storage.Clean(dir)
	if err != nil {
		return models.FileEntry{}, err
	}
	return s.Create(ctx, storage.Join(dir, name), data)
}

// transferPaths cleans src and dst and refuses a transfer onto itself.
func transferPaths(src, dst string) (string, string, error) {
	src, err := storage.Clean(src)
	if err != nil {
		return "", "", err
	}
	dst, err = storage.Clean(dst)
	if err != nil {
		return "", "", err
	}
	if src == dst {
		return "", "", fmt.Errorf("%w: source and destination are both %s", storage.ErrInvalidPath, src)
	}
	return src, dst, nil
}

// Copy reads src and writes it to dst.
func (s *Service) Copy(ctx context.Context, src, dst string) (models.FileEntry, error) {
	src, dst, err := transferPaths(src, dst)
	if err != nil {
		return models.FileEntry{}, err
	}
	data, err := s.Read(ctx, src)
	if err != nil {
		return models.FileEntry{}, fmt.Errorf("failed to read source: %w", err)
	}
	entry, err := s.Create(ctx, dst, data)
	if err != nil {
		return models.FileEntry{}, fmt.Errorf("failed to write destination: %w", err)
	}
	return entry, nil
}

// Move copies src to dst and then deletes src. If the delete fails the
// destination has already been written and both paths hold the content.
func (s *Service) Move(ctx context.Context, src, dst string) (models.FileEntry, error) {
	src, dst, err := transferPaths(src, dst)
	if err != nil {
		return models.FileEntry{}, err
	}
	entry, err := s.Copy(ctx, src, dst)
	if err != nil {
		return models.FileEntry{}, err
	}
	if _, err := s.Delete(ctx, src); err != nil {
		logging.WithContext(ctx).Warn("move left source in place",
			zap.String("source", src),
			zap.String("destination", entry.Path),
			zap.Error(err))
		return models.FileEntry{}, fmt.Errorf("copied to %s but failed to remove source: %w", entry.Path, err)
	}
	return entry, nil
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
