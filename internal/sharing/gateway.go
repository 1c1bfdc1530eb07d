package sharing

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
)

// FileReader reads whole files. *files.Service satisfies it.
type FileReader interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// SharedFile is a resolved public share ready to be written to a client.
type SharedFile struct {
	Name               string
	Content            []byte
	ContentType        string
	ContentDisposition string
}

// Gateway resolves /shared/<id> requests to file content.
type Gateway struct {
	registry Registry
	files    FileReader
}

// NewGateway creates a Gateway.
func NewGateway(registry Registry, files FileReader) *Gateway {
	return &Gateway{registry: registry, files: files}
}

var contentTypes = map[string]string{
	"txt":  "text/plain",
	"html": "text/html",
	"htm":  "text/html",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"pdf":  "application/pdf",
	"zip":  "application/zip",
}

// ContentType maps a file name's extension to a MIME type, defaulting to
// application/octet-stream.
func ContentType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "")

// ContentDisposition returns the attachment header for name, with name
// escaped as a quoted string.
func ContentDisposition(name string) string {
	return `attachment; filename="` + quoteEscaper.Replace(name) + `"`
}

// ParseRequestPath extracts the share id from "/shared/<id>".
func ParseRequestPath(requestPath string) (string, error) {
	id, ok := strings.CutPrefix(requestPath, SharedPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: %q", ErrMalformedRequest, requestPath)
	}
	return id, nil
}

// Serve resolves requestPath and returns the file if its share is public.
// Private shares are always refused.
func (g *Gateway) Serve(ctx context.Context, requestPath string) (*SharedFile, error) {
	log := logging.WithContext(ctx)

	id, err := ParseRequestPath(requestPath)
	if err != nil {
		metrics.RecordShareRequest("malformed")
		return nil, err
	}

	p, policy, ok := g.registry.Resolve(id)
	if !ok {
		metrics.RecordShareRequest("not_found")
		log.Debug("unknown share id", zap.String("id", id))
		return nil, fmt.Errorf("%w: %s", ErrShareNotFound, id)
	}
	if policy != Public {
		metrics.RecordShareRequest("denied")
		log.Info("private share requested", zap.String("id", id))
		return nil, ErrAccessDenied
	}

	content, err := g.files.Read(ctx, p)
	if err != nil {
		metrics.RecordShareRequest("error")
		return nil, fmt.Errorf("read shared file: %w", err)
	}

	name := path.Base(p)
	if name == "/" || name == "." {
		name = "download"
	}
	metrics.RecordShareRequest("served")
	log.Info("served shared file",
		zap.String("id", id),
		zap.String("path", p),
		zap.Int("size", len(content)))

	return &SharedFile{
		Name:               name,
		Content:            content,
		ContentType:        ContentType(name),
		ContentDisposition: ContentDisposition(name),
	}, nil
}

// IsClientError reports whether err is caused by the request rather than
// the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedRequest) ||
		errors.Is(err, ErrShareNotFound) ||
		errors.Is(err, ErrAccessDenied)
}
