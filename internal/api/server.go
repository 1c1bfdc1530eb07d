// Package api provides the HTTP server and handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/auth"
	"github.com/fruitsalade/explorer/internal/events"
	"github.com/fruitsalade/explorer/internal/explorer"
	"github.com/fruitsalade/explorer/internal/files"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
	"github.com/fruitsalade/explorer/internal/sharing"
	"github.com/fruitsalade/explorer/internal/storage"
)

// Server is the HTTP server.
type Server struct {
	explorer      *explorer.Explorer
	files         *files.Service
	shares        *sharing.Service
	gateway       *sharing.Gateway
	cwd           *explorer.Cwd
	auth          *auth.Auth
	broadcaster   *events.Broadcaster
	rateLimiter   *RateLimiter
	maxUploadSize int64
	backendType   string
}

// Deps bundles the services the server routes to.
type Deps struct {
	Explorer      *explorer.Explorer
	Files         *files.Service
	Shares        *sharing.Service
	Gateway       *sharing.Gateway
	Cwd           *explorer.Cwd
	Auth          *auth.Auth
	Broadcaster   *events.Broadcaster
	RateLimiter   *RateLimiter
	MaxUploadSize int64
	BackendType   string
}

// NewServer creates a new server.
func NewServer(d Deps) *Server {
	if d.Auth == nil {
		d.Auth = auth.New("")
	}
	if d.Broadcaster == nil {
		d.Broadcaster = events.NewBroadcaster()
	}
	if d.Cwd == nil {
		d.Cwd = explorer.NewCwd("/")
	}
	return &Server{
		explorer:      d.Explorer,
		files:         d.Files,
		shares:        d.Shares,
		gateway:       d.Gateway,
		cwd:           d.Cwd,
		auth:          d.Auth,
		broadcaster:   d.Broadcaster,
		rateLimiter:   d.RateLimiter,
		maxUploadSize: d.MaxUploadSize,
		backendType:   d.BackendType,
	}
}

// Handler returns the HTTP handler with auth, logging and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Anonymous share links, rate limited per client IP
	shared := s.rateLimiter.Middleware(http.HandlerFunc(s.handleShared))
	mux.Handle("GET /shared/{id}", shared)
	mux.Handle("GET /shared/", shared)

	// Owner endpoints. Each route is wrapped on its own so the mux pattern
	// stays visible to the metrics middleware.
	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.auth.Middleware(withUser(h)))
	}

	// Listing
	protect("GET /api/v1/list", s.handleList)
	protect("GET /api/v1/list/{path...}", s.handleList)

	// Files
	protect("POST /api/v1/files/{path...}", s.handleCreateFile)
	protect("GET /api/v1/files/{path...}", s.handleReadFile)
	protect("PUT /api/v1/files/{path...}", s.handleUpdateFile)
	protect("DELETE /api/v1/files/{path...}", s.handleDeleteFile)
	protect("POST /api/v1/upload/{path...}", s.handleUpload)
	protect("POST /api/v1/move", s.handleMove)
	protect("POST /api/v1/copy", s.handleCopy)

	// Directories
	protect("POST /api/v1/dirs/{path...}", s.handleCreateDir)
	protect("DELETE /api/v1/dirs/{path...}", s.handleDeleteDir)

	// Shares
	protect("GET /api/v1/shares", s.handleListShares)
	protect("POST /api/v1/shares/{path...}", s.handleShare)
	protect("DELETE /api/v1/shares/{path...}", s.handleUnshare)
	protect("GET /api/v1/shares/{path...}", s.handleGetShareLink)

	// Current directory
	protect("GET /api/v1/cwd", s.handleGetCwd)
	protect("PUT /api/v1/cwd", s.handleSetCwd)

	// Runtime log level
	protect("GET /api/v1/log-level", s.handleGetLogLevel)
	protect("PUT /api/v1/log-level", s.handleSetLogLevel)

	// Change notifications
	protect("GET /api/v1/events", s.handleEvents)
	protect("GET /ws", s.handleWebSocket)

	// Logging is outermost: it replaces the request, and metrics needs the
	// one the mux annotated with its pattern.
	return logging.Middleware(metrics.Middleware(mux))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"backend":     s.backendType,
		"shares":      len(s.shares.List()),
		"subscribers": s.broadcaster.Count(),
	})
}

// ─── Log level ──────────────────────────────────────────────────────────────

type logLevelBody struct {
	Level string `json:"level"`
}

func (s *Server) handleGetLogLevel(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, logLevelBody{Level: logging.Level()})
}

func (s *Server) handleSetLogLevel(w http.ResponseWriter, r *http.Request) {
	var req logLevelBody
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := logging.SetLevel(req.Level); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", sharing.ErrMalformedRequest, err))
		return
	}
	logging.WithContext(r.Context()).Info("log level changed", zap.String("level", logging.Level()))
	sendJSON(w, http.StatusOK, logLevelBody{Level: logging.Level()})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// withUser tags the request logger with the token subject.
func withUser(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := auth.GetClaims(r.Context()); claims != nil && claims.Subject != "" {
			r = r.WithContext(logging.WithFields(r.Context(), zap.String("user", claims.Subject)))
		}
		next(w, r)
	})
}

// statusFor maps an operation error onto an HTTP status.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, sharing.ErrShareNotFound):
		return http.StatusNotFound
	case errors.Is(err, sharing.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, sharing.ErrMalformedRequest),
		errors.Is(err, storage.ErrInvalidPath),
		errors.Is(err, files.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrIsDirectory), errors.Is(err, storage.ErrNotDirectory):
		return http.StatusConflict
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes it as a JSON error with the mapped status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	log := logging.WithContext(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	}
	sendError(w, code, err.Error())
}

// readBody reads the whole request body, capped at maxUploadSize.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadSize))
}

// decodeJSON decodes a small JSON request body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: invalid request body: %v", sharing.ErrMalformedRequest, err)
	}
	return nil
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, code int, message string) {
	sendJSON(w, code, map[string]string{"error": message})
}
