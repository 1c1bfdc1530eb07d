package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fruitsalade/explorer/internal/metrics"
)

// DefaultTimeout bounds every backend call unless configured otherwise.
const DefaultTimeout = 5 * time.Second

// Timed wraps a Backend so that every call runs under a fixed deadline and
// is recorded in the store metrics.
//
// The deadline is derived from a context that ignores the caller's
// cancellation: once a call is issued it runs until it completes or times
// out, even if the client went away. A timed out call is reported as an
// error wrapping context.DeadlineExceeded; the backend work itself is not
// rolled back.
type Timed struct {
	next    Backend
	timeout time.Duration
}

// NewTimed returns b wrapped with the given per-call timeout.
func NewTimed(b Backend, timeout time.Duration) *Timed {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Timed{next: b, timeout: timeout}
}

type result[T any] struct {
	val T
	err error
}

// call runs fn under the deadline. fn keeps running in the background if the
// deadline fires first and its result is dropped.
func call[T any](t *Timed, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	var r result[T]
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = fmt.Errorf("store %s timed out after %s: %w", op, t.timeout, ctx.Err())
	}
	metrics.RecordStoreOperation(t.next.Type(), op, time.Since(start), r.err == nil)
	return r.val, r.err
}

func (t *Timed) ReadDir(ctx context.Context, path string) ([]Entry, error) {
	return call(t, ctx, "read_dir", func(ctx context.Context) ([]Entry, error) {
		return t.next.ReadDir(ctx, path)
	})
}

func (t *Timed) Stat(ctx context.Context, path string) (*Metadata, error) {
	return call(t, ctx, "stat", func(ctx context.Context) (*Metadata, error) {
		return t.next.Stat(ctx, path)
	})
}

func (t *Timed) PutFile(ctx context.Context, path string, body io.Reader, size int64) error {
	_, err := call(t, ctx, "put_file", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.PutFile(ctx, path, body, size)
	})
	return err
}

// GetFile reads the whole object inside the deadline, so the returned
// reader never depends on a context that has already been released.
func (t *Timed) GetFile(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	data, err := call(t, ctx, "get_file", func(ctx context.Context) ([]byte, error) {
		rc, _, err := t.next.GetFile(ctx, path)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (t *Timed) RemoveFile(ctx context.Context, path string) error {
	_, err := call(t, ctx, "remove_file", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.RemoveFile(ctx, path)
	})
	return err
}

func (t *Timed) MakeDir(ctx context.Context, path string) error {
	_, err := call(t, ctx, "make_dir", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.MakeDir(ctx, path)
	})
	return err
}

func (t *Timed) RemoveAll(ctx context.Context, path string) error {
	_, err := call(t, ctx, "remove_all", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.next.RemoveAll(ctx, path)
	})
	return err
}

func (t *Timed) Type() string { return t.next.Type() }

func (t *Timed) Close() error { return t.next.Close() }
