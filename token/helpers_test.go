package token

import (
	"testing"
	"time"

	"github.com/treelock/treelock/testutil"
	"github.com/treelock/treelock/types"
)

type mockClock struct {
	currentTime time.Time
}

// newMockClock starts from a fixed wall time so timestamps survive a JSON
// round trip unchanged; time.Now would carry a monotonic reading that
// serialization strips.
func newMockClock() *mockClock {
	return &mockClock{currentTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockClock) Now() time.Time                  { return m.currentTime }
func (m *mockClock) Since(t time.Time) time.Duration { return m.currentTime.Sub(t) }
func (m *mockClock) NewTicker(d time.Duration) Ticker {
	return &mockTicker{ch: make(chan time.Time, 1)}
}
func (m *mockClock) Advance(d time.Duration) {
	m.currentTime = m.currentTime.Add(d)
}

type mockTicker struct {
	ch chan time.Time
}

func (t *mockTicker) Chan() <-chan time.Time { return t.ch }
func (t *mockTicker) Stop()                  {}

func newTestRegistry(t *testing.T) (*registry, *mockClock) {
	t.Helper()
	clock := newMockClock()
	reg := NewRegistry(WithClock(clock)).(*registry)
	return reg, clock
}

func mustRegister(t *testing.T, reg Registry, tok Token) Token {
	t.Helper()
	res, err := reg.Register(tok)
	testutil.RequireNoError(t, err)
	return res
}

func mustIndirect(t *testing.T, res types.ResourceID, root Token) *IndirectToken {
	t.Helper()
	indirect, err := NewIndirectToken(res, root)
	testutil.RequireNoError(t, err)
	return indirect
}
