package explorer

import (
	"context"
	"sync"
	"testing"

	"github.com/fruitsalade/explorer/internal/storage/memory"
)

func TestCwdGetSet(t *testing.T) {
	c := NewCwd("/home")
	if got := c.Get(); got != "/home" {
		t.Errorf("Get() = %q, want /home", got)
	}
	if got := c.Set("/home/docs"); got != "/home/docs" {
		t.Errorf("Set() = %q, want /home/docs", got)
	}
	if got := c.Get(); got != "/home/docs" {
		t.Errorf("Get() after Set = %q", got)
	}
}

func TestCwdConcurrentAccess(t *testing.T) {
	c := NewCwd("/")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); c.Set("/a") }()
		go func() { defer wg.Done(); c.Get() }()
	}
	wg.Wait()
	if got := c.Get(); got != "/a" {
		t.Errorf("Get() = %q, want /a", got)
	}
}

func TestInitHome(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	c := InitHome(ctx, b, "/home/user")
	if got := c.Get(); got != "/home/user" {
		t.Errorf("cwd = %q, want /home/user", got)
	}
	if meta, err := b.Stat(ctx, "/home/user"); err != nil || !meta.IsDir {
		t.Errorf("home not created: %+v, %v", meta, err)
	}

	// A file in the way forces the fallback.
	put(t, b, "/blocked", "x")
	if got := InitHome(ctx, b, "/blocked/home").Get(); got != "/" {
		t.Errorf("fallback cwd = %q, want /", got)
	}
}
