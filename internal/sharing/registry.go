package sharing

import (
	"crypto/md5"
	"encoding/hex"
	"slices"
	"sort"
	"sync"
)

// ShareID is the public handle for a path: the lowercase hex MD5 of its
// bytes. It is deterministic and unkeyed, so anyone who knows a path can
// compute its id; the policy is the only gate.
func ShareID(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Entry is one registered share.
type Entry struct {
	Path   string
	ID     string
	Policy Policy
}

// Registry maps shared paths to their policy and resolves share ids back to
// paths. Implementations must be safe for concurrent use; sequences of
// calls are not atomic.
type Registry interface {
	// Put registers or overwrites the policy for path.
	Put(path string, policy Policy)
	// Delete removes path and reports whether it was registered.
	Delete(path string) bool
	// Get returns the policy for path.
	Get(path string) (Policy, bool)
	// Resolve finds the path registered under id.
	Resolve(id string) (string, Policy, bool)
	// List returns every share sorted by path.
	List() []Entry
	// Len returns the number of shares.
	Len() int
}

// MemoryRegistry is a process-local Registry. Nothing survives a restart.
//
// Ids are indexed so Resolve does not scan. If two paths ever hash to the
// same id, the most recently put one owns it until it is deleted, after
// which the id falls back to the earlier path.
type MemoryRegistry struct {
	mu     sync.RWMutex
	byPath map[string]Policy
	byID   map[string][]string
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byPath: make(map[string]Policy),
		byID:   make(map[string][]string),
	}
}

func (r *MemoryRegistry) Put(path string, policy Policy) {
	id := ShareID(path)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPath[path]; ok {
		r.unindex(id, path)
	}
	r.byPath[path] = policy
	r.byID[id] = append(r.byID[id], path)
}

func (r *MemoryRegistry) Delete(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPath[path]; !ok {
		return false
	}
	delete(r.byPath, path)
	r.unindex(ShareID(path), path)
	return true
}

// unindex drops path from the id index. Callers hold mu.
func (r *MemoryRegistry) unindex(id, path string) {
	paths := slices.DeleteFunc(r.byID[id], func(p string) bool { return p == path })
	if len(paths) == 0 {
		delete(r.byID, id)
		return
	}
	r.byID[id] = paths
}

func (r *MemoryRegistry) Get(path string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byPath[path]
	return p, ok
}

func (r *MemoryRegistry) Resolve(id string) (string, Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := r.byID[id]
	if len(paths) == 0 {
		return "", 0, false
	}
	path := paths[len(paths)-1]
	return path, r.byPath[path], true
}

func (r *MemoryRegistry) List() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.byPath))
	for path, policy := range r.byPath {
		entries = append(entries, Entry{Path: path, Policy: policy})
	}
	r.mu.RUnlock()

	for i := range entries {
		entries[i].ID = ShareID(entries[i].Path)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPath)
}
