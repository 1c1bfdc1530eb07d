package explorer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/models"
	"github.com/fruitsalade/explorer/internal/storage"
	"github.com/fruitsalade/explorer/internal/storage/memory"
)

func init() {
	logging.InitNop()
}

var errInjected = errors.New("injected failure")

// faultyBackend fails ReadDir or Stat for chosen paths.
type faultyBackend struct {
	storage.Backend
	failReadDir map[string]bool
	failStat    map[string]bool
	readDirs    map[string]int
}

func newFaulty(b storage.Backend) *faultyBackend {
	return &faultyBackend{
		Backend:     b,
		failReadDir: map[string]bool{},
		failStat:    map[string]bool{},
		readDirs:    map[string]int{},
	}
}

func (f *faultyBackend) ReadDir(ctx context.Context, p string) ([]storage.Entry, error) {
	f.readDirs[p]++
	if f.failReadDir[p] {
		return nil, errInjected
	}
	return f.Backend.ReadDir(ctx, p)
}

func (f *faultyBackend) Stat(ctx context.Context, p string) (*storage.Metadata, error) {
	if f.failStat[p] {
		return nil, errInjected
	}
	return f.Backend.Stat(ctx, p)
}

func put(t *testing.T, b storage.Backend, p, content string) {
	t.Helper()
	if err := b.PutFile(context.Background(), p, strings.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutFile(%q): %v", p, err)
	}
}

// tree builds R/{D/{S/{deep/}, G}, F}.
func tree(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New()
	ctx := context.Background()
	b.MakeDir(ctx, "/R/D/S/deep")
	put(t, b, "/R/D/G", "grandchild")
	put(t, b, "/R/F", "12345")
	put(t, b, "/R/D/S/deep/ignored", "x")
	return b
}

func byPath(entries []models.FileEntry) map[string]models.FileEntry {
	m := make(map[string]models.FileEntry, len(entries))
	for _, e := range entries {
		m[e.Path] = e
	}
	return m
}

func TestListEmptyDirectory(t *testing.T) {
	b := memory.New()
	b.MakeDir(context.Background(), "/empty")

	entries, err := New(b).List(context.Background(), "/empty")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List(empty) = %#v, want empty non-nil slice", entries)
	}
}

func TestListDepthDependentSizes(t *testing.T) {
	entries, err := New(tree(t)).List(context.Background(), "/R")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	want := "/R/D,/R/D/G,/R/D/S,/R/F"
	if got := strings.Join(paths, ","); got != want {
		t.Fatalf("List order = %s, want %s", got, want)
	}

	m := byPath(entries)
	tests := []struct {
		path  string
		size  int64
		isDir bool
	}{
		{"/R/D", 2, true},     // child count
		{"/R/D/G", 10, false}, // exact bytes
		{"/R/D/S", 0, true},   // not expanded
		{"/R/F", 5, false},
	}
	for _, tt := range tests {
		e := m[tt.path]
		if e.Size != tt.size || e.IsDirectory != tt.isDir {
			t.Errorf("%s = size %d dir %v, want size %d dir %v", tt.path, e.Size, e.IsDirectory, tt.size, tt.isDir)
		}
		if e.Permissions != "rw" {
			t.Errorf("%s permissions = %q, want rw", tt.path, e.Permissions)
		}
	}
	if _, ok := m["/R/D/S/deep"]; ok {
		t.Error("listing descended below depth 2")
	}
}

func TestListRootAliases(t *testing.T) {
	b := memory.New()
	put(t, b, "/top.txt", "x")

	for _, root := range []string{"", "/"} {
		entries, err := New(b).List(context.Background(), root)
		if err != nil {
			t.Fatalf("List(%q): %v", root, err)
		}
		if len(entries) != 1 || entries[0].Path != "/top.txt" {
			t.Errorf("List(%q) = %+v", root, entries)
		}
	}
}

func TestListSubdirectoryReadFailureDegrades(t *testing.T) {
	f := newFaulty(tree(t))
	f.failReadDir["/R/D"] = true

	entries, err := New(f).List(context.Background(), "/R")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	m := byPath(entries)
	if d := m["/R/D"]; !d.IsDirectory || d.Size != 0 {
		t.Errorf("/R/D = %+v, want directory with size 0", d)
	}
	if _, ok := m["/R/D/G"]; ok {
		t.Error("children of unreadable directory were listed")
	}
	if len(entries) != 2 {
		t.Errorf("List returned %d entries, want 2", len(entries))
	}
}

func TestListReadsEachSubdirectoryOnce(t *testing.T) {
	f := newFaulty(tree(t))
	if _, err := New(f).List(context.Background(), "/R"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if n := f.readDirs["/R/D"]; n != 1 {
		t.Errorf("ReadDir(/R/D) called %d times, want 1", n)
	}
	if n := f.readDirs["/R/D/S"]; n != 0 {
		t.Errorf("ReadDir(/R/D/S) called %d times, want 0", n)
	}
}

func TestListStatFailures(t *testing.T) {
	f := newFaulty(tree(t))
	f.failStat["/R/D/G"] = true

	entries, err := New(f).List(context.Background(), "/R")
	if err != nil {
		t.Fatalf("List with failing grandchild: %v", err)
	}
	if _, ok := byPath(entries)["/R/D/G"]; ok {
		t.Error("grandchild with failing stat was listed")
	}

	f.failStat["/R/F"] = true
	if _, err := New(f).List(context.Background(), "/R"); !errors.Is(err, errInjected) {
		t.Errorf("List with failing level-1 stat = %v, want injected error", err)
	}
}

func TestListMissingRoot(t *testing.T) {
	_, err := New(memory.New()).List(context.Background(), "/missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("List(missing) = %v, want ErrNotFound", err)
	}
	_, err = New(memory.New()).List(context.Background(), "/a/../..")
	if !errors.Is(err, storage.ErrInvalidPath) {
		t.Errorf("List(escape) = %v, want ErrInvalidPath", err)
	}
}
