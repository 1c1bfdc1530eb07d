package sharing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/events"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
	"github.com/fruitsalade/explorer/internal/storage"
)

// SharedPrefix is the route under which share links are served.
const SharedPrefix = "/shared/"

// Share is a registered share as reported to the owner.
type Share struct {
	Path   string `json:"path"`
	ID     string `json:"id"`
	Policy Policy `json:"policy"`
	Link   string `json:"link"`
}

// Service issues and revokes share links. Sharing does not check that the
// path exists; a link to a missing file fails when it is served.
type Service struct {
	registry   Registry
	linkPrefix string
	events     events.Publisher
}

// NewService creates a Service. linkPrefix is prepended to every link
// (for example an external base URL); a nil publisher discards events.
func NewService(registry Registry, linkPrefix string, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Discard
	}
	return &Service{registry: registry, linkPrefix: linkPrefix, events: pub}
}

// LinkFor returns the share link for a path without consulting the
// registry.
func (s *Service) LinkFor(path string) string {
	return s.linkPrefix + SharedPrefix + ShareID(path)
}

// Share registers path with policy, overwriting any previous policy, and
// returns its link.
func (s *Service) Share(ctx context.Context, path string, policy Policy) (string, error) {
	path, err := storage.Clean(path)
	if err != nil {
		return "", err
	}
	s.registry.Put(path, policy)
	metrics.SetSharesActive(s.registry.Len())
	s.events.Publish(events.Event{
		Type:      events.EventShare,
		Path:      path,
		Policy:    policy.String(),
		Timestamp: time.Now().Unix(),
	})
	logging.WithContext(ctx).Info("path shared",
		zap.String("path", path),
		zap.String("id", ShareID(path)),
		zap.Stringer("policy", policy))
	return s.LinkFor(path), nil
}

// Unshare removes the share for path and reports whether one existed.
func (s *Service) Unshare(ctx context.Context, path string) (bool, error) {
	path, err := storage.Clean(path)
	if err != nil {
		return false, err
	}
	if !s.registry.Delete(path) {
		return false, nil
	}
	metrics.SetSharesActive(s.registry.Len())
	s.events.Publish(events.Event{
		Type:      events.EventUnshare,
		Path:      path,
		Timestamp: time.Now().Unix(),
	})
	logging.WithContext(ctx).Info("path unshared", zap.String("path", path))
	return true, nil
}

// Link returns the link for path if it is currently shared.
func (s *Service) Link(path string) (string, bool, error) {
	path, err := storage.Clean(path)
	if err != nil {
		return "", false, err
	}
	if _, ok := s.registry.Get(path); !ok {
		return "", false, nil
	}
	return s.LinkFor(path), true, nil
}

// List returns every share sorted by path.
func (s *Service) List() []Share {
	entries := s.registry.List()
	shares := make([]Share, 0, len(entries))
	for _, e := range entries {
		shares = append(shares, Share{
			Path:   e.Path,
			ID:     e.ID,
			Policy: e.Policy,
			Link:   s.linkPrefix + SharedPrefix + e.ID,
		})
	}
	return shares
}
