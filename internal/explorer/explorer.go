// Package explorer produces the flattened two-level directory listings
// shown by the file browser.
package explorer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
	"github.com/fruitsalade/explorer/internal/models"
	"github.com/fruitsalade/explorer/internal/storage"
)

// maxDepth is how far below the listing root entries are emitted. Only
// directories at depth 1 are expanded.
const maxDepth = 2

// Explorer lists directories from a storage backend.
type Explorer struct {
	store storage.Backend
}

// New creates an Explorer over store.
func New(store storage.Backend) *Explorer {
	return &Explorer{store: store}
}

type pending struct {
	entry storage.Entry
	depth int
}

// List returns the children of root and, for each child directory, that
// directory's children, flattened in read order with every grandchild
// following its parent.
//
// Sizes depend on depth: files always carry their exact size, a depth-1
// directory carries its child count (0 if it cannot be read), and a depth-2
// directory carries 0. Nothing below depth 2 is visited.
//
// A failure to read root or to stat a depth-1 file fails the listing. A
// depth-2 file that cannot be stat'ed is left out.
func (e *Explorer) List(ctx context.Context, root string) ([]models.FileEntry, error) {
	root, err := storage.Clean(root)
	if err != nil {
		return nil, err
	}
	log := logging.WithContext(ctx)

	children, err := e.store.ReadDir(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory '%s': %w", root, err)
	}

	result := []models.FileEntry{}
	stack := pushAll(nil, children, 1)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		p := cur.entry.Path

		if !cur.entry.IsDir {
			meta, err := e.store.Stat(ctx, p)
			if err != nil {
				if cur.depth == 1 {
					return nil, fmt.Errorf("failed to get metadata for '%s': %w", p, err)
				}
				log.Warn("skipping unreadable entry", zap.String("path", p), zap.Error(err))
				continue
			}
			result = append(result, models.NewFileEntry(p, meta.Size, unix(meta.Created), unix(meta.Modified)))
			continue
		}

		if cur.depth >= maxDepth {
			result = append(result, models.NewDirEntry(p, 0))
			continue
		}

		sub, err := e.store.ReadDir(ctx, p)
		if err != nil {
			log.Warn("failed to read subdirectory", zap.String("path", p), zap.Error(err))
			metrics.RecordListingDegraded()
			result = append(result, models.NewDirEntry(p, 0))
			continue
		}
		result = append(result, models.NewDirEntry(p, int64(len(sub))))
		stack = pushAll(stack, sub, cur.depth+1)
	}

	metrics.RecordListing(len(result))
	log.Debug("listed directory", zap.String("path", root), zap.Int("entries", len(result)))
	return result, nil
}

// pushAll pushes entries so that the first one is popped first.
func pushAll(stack []pending, entries []storage.Entry, depth int) []pending {
	for _, e := range slices.Backward(entries) {
		stack = append(stack, pending{entry: e, depth: depth})
	}
	return stack
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
