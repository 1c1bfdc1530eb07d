package sharing

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
	"sync"
	"testing"

	"github.com/fruitsalade/explorer/internal/events"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/storage"
)

func init() {
	logging.InitNop()
}

// mapReader serves file content from a map.
type mapReader map[string]string

func (m mapReader) Read(_ context.Context, p string) ([]byte, error) {
	data, ok := m[p]
	if !ok {
		return nil, fmt.Errorf("failed to open file: %w", storage.ErrNotFound)
	}
	return []byte(data), nil
}

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.got = append(r.got, e)
	r.mu.Unlock()
}

func TestShareIDIsHexMD5(t *testing.T) {
	p := "/home/docs/report.pdf"
	sum := md5.Sum([]byte(p))
	if got, want := ShareID(p), hex.EncodeToString(sum[:]); got != want {
		t.Errorf("ShareID(%q) = %s, want %s", p, got, want)
	}
	if got := ShareID("/a"); got != ShareID("/a") || len(got) != 32 {
		t.Errorf("ShareID not deterministic 32-char hex: %s", got)
	}
}

func TestShareIDsDistinctOverCorpus(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 5000; i++ {
		p := fmt.Sprintf("/home/user%d/file-%d.txt", i%50, i)
		id := ShareID(p)
		if prev, ok := seen[id]; ok {
			t.Fatalf("ShareID collision between %q and %q", prev, p)
		}
		seen[id] = p
	}
}

func TestShareUnshareLink(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	svc := NewService(NewMemoryRegistry(), "", rec)

	link, err := svc.Share(ctx, "/home/a.txt", Public)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if want := "/shared/" + ShareID("/home/a.txt"); link != want {
		t.Errorf("Share link = %q, want %q", link, want)
	}

	got, ok, err := svc.Link("/home/a.txt")
	if err != nil || !ok || got != link {
		t.Errorf("Link = %q, %v, %v; want %q", got, ok, err, link)
	}

	removed, err := svc.Unshare(ctx, "/home/a.txt")
	if err != nil || !removed {
		t.Fatalf("Unshare = %v, %v", removed, err)
	}
	if _, ok, _ := svc.Link("/home/a.txt"); ok {
		t.Error("Link still present after Unshare")
	}
	if removed, _ := svc.Unshare(ctx, "/home/a.txt"); removed {
		t.Error("second Unshare reported removal")
	}

	if len(rec.got) != 2 || rec.got[0].Type != events.EventShare || rec.got[1].Type != events.EventUnshare {
		t.Errorf("events = %+v", rec.got)
	}
}

func TestShareLinkPrefixAndNormalization(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRegistry(), "https://files.example.com", nil)

	link, _ := svc.Share(ctx, "home/a.txt", Private)
	if want := "https://files.example.com/shared/" + ShareID("/home/a.txt"); link != want {
		t.Errorf("Share link = %q, want %q", link, want)
	}
	if _, ok, _ := svc.Link("/home/a.txt"); !ok {
		t.Error("normalized path not found")
	}
	if _, err := svc.Share(ctx, "/../etc/passwd", Public); !errors.Is(err, storage.ErrInvalidPath) {
		t.Errorf("Share(escape) = %v, want ErrInvalidPath", err)
	}
}

func TestReshareOverwritesPolicy(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	svc := NewService(reg, "", nil)

	svc.Share(ctx, "/a", Public)
	svc.Share(ctx, "/a", Private)
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
	if p, _ := reg.Get("/a"); p != Private {
		t.Errorf("policy = %s, want private", p)
	}

	shares := svc.List()
	if len(shares) != 1 || shares[0].Policy != Private || shares[0].ID != ShareID("/a") {
		t.Errorf("List = %+v", shares)
	}
}

func TestListSortedByPath(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRegistry(), "", nil)
	for _, p := range []string{"/c", "/a", "/b"} {
		svc.Share(ctx, p, Public)
	}
	var paths []string
	for _, s := range svc.List() {
		paths = append(paths, s.Path)
	}
	if got := strings.Join(paths, ","); got != "/a,/b,/c" {
		t.Errorf("List paths = %s", got)
	}
}

func TestRegistryCollisionLastWriterWins(t *testing.T) {
	reg := NewMemoryRegistry()
	// Force both paths into one bucket to exercise the collision path.
	reg.Put("/first", Public)
	id := ShareID("/first")
	reg.mu.Lock()
	reg.byPath["/second"] = Private
	reg.byID[id] = append(reg.byID[id], "/second")
	reg.mu.Unlock()

	if p, policy, _ := reg.Resolve(id); p != "/second" || policy != Private {
		t.Errorf("Resolve = %s %s, want /second private", p, policy)
	}
	reg.Delete("/second")
	if p, _, ok := reg.Resolve(id); !ok || p != "/first" {
		t.Errorf("Resolve after delete = %s %v, want /first", p, ok)
	}
}

func TestPolicyText(t *testing.T) {
	var body struct {
		Policy Policy `json:"policy"`
	}
	if err := json.Unmarshal([]byte(`{"policy":"PUBLIC"}`), &body); err != nil || body.Policy != Public {
		t.Errorf("unmarshal PUBLIC = %v, %v", body.Policy, err)
	}
	if err := json.Unmarshal([]byte(`{"policy":"private"}`), &body); err != nil || body.Policy != Private {
		t.Errorf("unmarshal private = %v, %v", body.Policy, err)
	}
	if err := json.Unmarshal([]byte(`{"policy":"friends"}`), &body); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("unmarshal friends = %v, want ErrMalformedRequest", err)
	}

	out, _ := json.Marshal(Share{Path: "/a", ID: "x", Policy: Private, Link: "/shared/x"})
	if !strings.Contains(string(out), `"policy":"private"`) {
		t.Errorf("marshal = %s", out)
	}
}

func TestContentDisposition(t *testing.T) {
	if got := ContentDisposition("report.pdf"); got != `attachment; filename="report.pdf"` {
		t.Errorf("ContentDisposition(report.pdf) = %q", got)
	}
	for _, name := range []string{"report.pdf", `say "hi".txt`, `back\slash.txt`, "semi; colon.txt"} {
		header := ContentDisposition(name)
		disposition, params, err := mime.ParseMediaType(header)
		if err != nil {
			t.Errorf("ParseMediaType(%q): %v", header, err)
			continue
		}
		if disposition != "attachment" || params["filename"] != name {
			t.Errorf("ContentDisposition(%q) = %q, parsed filename %q", name, header, params["filename"])
		}
	}
	if got := ContentDisposition("a\r\nSet-Cookie: x"); strings.ContainsAny(got, "\r\n") {
		t.Errorf("ContentDisposition kept line breaks: %q", got)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"a.txt", "text/plain"},
		{"index.HTML", "text/html"},
		{"page.htm", "text/html"},
		{"style.css", "text/css"},
		{"app.js", "application/javascript"},
		{"data.json", "application/json"},
		{"img.png", "image/png"},
		{"photo.JPG", "image/jpeg"},
		{"photo.jpeg", "image/jpeg"},
		{"anim.gif", "image/gif"},
		{"doc.pdf", "application/pdf"},
		{"bundle.zip", "application/zip"},
		{"archive.tar.gz", "application/octet-stream"},
		{"README", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := ContentType(tt.name); got != tt.want {
			t.Errorf("ContentType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestGatewayServe(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	svc := NewService(reg, "", nil)
	gw := NewGateway(reg, mapReader{"/home/report.pdf": "%PDF", "/home/secret.txt": "s"})

	link, _ := svc.Share(ctx, "/home/report.pdf", Public)
	f, err := gw.Serve(ctx, link)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if string(f.Content) != "%PDF" || f.Name != "report.pdf" {
		t.Errorf("Serve = %+v", f)
	}
	if f.ContentType != "application/pdf" {
		t.Errorf("ContentType = %q", f.ContentType)
	}
	if f.ContentDisposition != `attachment; filename="report.pdf"` {
		t.Errorf("ContentDisposition = %q", f.ContentDisposition)
	}
}

func TestGatewayPrivateAlwaysDenied(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	svc := NewService(reg, "", nil)
	gw := NewGateway(reg, mapReader{"/home/secret.txt": "s"})

	link, _ := svc.Share(ctx, "/home/secret.txt", Private)
	for i := 0; i < 3; i++ {
		if _, err := gw.Serve(ctx, link); !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("Serve(private) = %v, want ErrAccessDenied", err)
		}
	}
}

func TestGatewayErrors(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	gw := NewGateway(reg, mapReader{})
	NewService(reg, "", nil).Share(ctx, "/gone.txt", Public)

	tests := []struct {
		path string
		want error
	}{
		{"/shared/", ErrMalformedRequest},
		{"/other/abc", ErrMalformedRequest},
		{"/shared/abc/def", ErrMalformedRequest},
		{"/shared/" + ShareID("/never-shared"), ErrShareNotFound},
		{"/shared/" + ShareID("/gone.txt"), storage.ErrNotFound},
	}
	for _, tt := range tests {
		_, err := gw.Serve(ctx, tt.path)
		if !errors.Is(err, tt.want) {
			t.Errorf("Serve(%q) = %v, want %v", tt.path, err, tt.want)
		}
	}
	if !IsClientError(ErrAccessDenied) || IsClientError(storage.ErrNotFound) {
		t.Error("IsClientError misclassifies")
	}
}
