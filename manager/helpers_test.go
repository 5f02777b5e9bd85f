package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/treelock/treelock/token"
	"github.com/treelock/treelock/tree"
	"github.com/treelock/treelock/types"
)

// mockClock provides a controllable clock for deterministic expiry tests.
type mockClock struct {
	mu          sync.Mutex
	currentTime time.Time
}

func newMockClock() *mockClock {
	return &mockClock{currentTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentTime
}

func (c *mockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *mockClock) NewTicker(d time.Duration) token.Ticker {
	return &mockTicker{ch: make(chan time.Time)}
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentTime = c.currentTime.Add(d)
}

type mockTicker struct {
	ch chan time.Time
}

func (t *mockTicker) Chan() <-chan time.Time { return t.ch }
func (t *mockTicker) Stop()                  {}

// newTestManager builds a manager on a mock clock, exposing the concrete
// type and the registry for state assertions.
func newTestManager(t *testing.T, opts ...Option) (*lockManager, *mockClock) {
	t.Helper()
	clock := newMockClock()
	reg := token.NewRegistry(token.WithClock(clock))
	all := append([]Option{WithClock(clock), WithRegistry(reg)}, opts...)
	m := NewLockManager(all...).(*lockManager)
	t.Cleanup(func() { _ = m.Close() })
	return m, clock
}

// newDocsTree builds the fixture hierarchy:
//
//	/docs
//	/docs/readme.txt
//	/docs/sub
//	/docs/sub/img.png
func newDocsTree(t *testing.T) (tr *tree.Tree, docs *tree.Folder, readme *tree.File, sub *tree.Folder, img *tree.File) {
	t.Helper()
	tr = tree.NewTree()
	var err error
	if docs, err = tr.AddFolder(tr.Root(), "docs"); err != nil {
		t.Fatalf("add docs: %v", err)
	}
	if readme, err = tr.AddFile(docs, "readme.txt"); err != nil {
		t.Fatalf("add readme: %v", err)
	}
	if sub, err = tr.AddFolder(docs, "sub"); err != nil {
		t.Fatalf("add sub: %v", err)
	}
	if img, err = tr.AddFile(sub, "img.png"); err != nil {
		t.Fatalf("add img: %v", err)
	}
	return tr, docs, readme, sub, img
}

func mustLock(t *testing.T, m *lockManager, res tree.Resource, req LockRequest) types.LockToken {
	t.Helper()
	handle, err := m.Lock(context.Background(), res, req)
	if err != nil {
		t.Fatalf("lock %s: %v", res.ID(), err)
	}
	return handle
}
