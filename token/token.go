package token

import (
	"slices"
	"sync"
	"time"

	"github.com/treelock/treelock/types"
)

// rootToken is the canonical token implementation: it owns the principal set,
// timing state and annotation mapping that indirect tokens proxy to.
type rootToken struct {
	mu sync.Mutex

	resource   types.ResourceID
	scope      types.LockScope
	principals map[types.PrincipalID]struct{}

	// started and expiration are assigned at registration time; before a
	// token is registered both are zero. A zero expiration means the token
	// never times out on its own.
	started    time.Time
	expiration time.Time
	ended      time.Time

	// initialDuration is the lease length requested at construction. It is
	// turned into an absolute expiration when the token is registered.
	initialDuration time.Duration
	hasDuration     bool

	annotations *Annotations

	// registry and clock are set exactly once, at registration.
	registry *registry
	clock    Clock
}

// NewExclusiveLock creates an unregistered exclusive lock token for a
// resource, held by a single principal. A non-positive duration means the
// lease never times out.
func NewExclusiveLock(res types.ResourceID, principal types.PrincipalID, duration time.Duration) Token {
	return newRootToken(res, types.ScopeExclusive, []types.PrincipalID{principal}, duration)
}

// NewSharedLock creates an unregistered shared lock token for a resource,
// held jointly by the given principals. A non-positive duration means the
// lease never times out.
func NewSharedLock(res types.ResourceID, principals []types.PrincipalID, duration time.Duration) Token {
	return newRootToken(res, types.ScopeShared, principals, duration)
}

func newRootToken(res types.ResourceID, scope types.LockScope, principals []types.PrincipalID, duration time.Duration) *rootToken {
	set := make(map[types.PrincipalID]struct{}, len(principals))
	for _, p := range principals {
		set[p] = struct{}{}
	}
	return &rootToken{
		resource:        res,
		scope:           scope,
		principals:      set,
		initialDuration: duration,
		hasDuration:     duration > 0,
		annotations:     NewAnnotations(),
	}
}

func (t *rootToken) Resource() types.ResourceID { return t.resource }

func (t *rootToken) Scope() types.LockScope { return t.scope }

func (t *rootToken) Principals() []types.PrincipalID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.PrincipalID, 0, len(t.principals))
	for p := range t.principals {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (t *rootToken) Started() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

func (t *rootToken) Ended() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endedLocked()
}

// endedLocked evaluates the end state lazily: a token past its expiration is
// observed as ended even before a sweep has finalized it.
func (t *rootToken) endedLocked() time.Time {
	if !t.ended.IsZero() {
		return t.ended
	}
	if t.clock != nil && !t.expiration.IsZero() && !t.clock.Now().Before(t.expiration) {
		return t.expiration
	}
	return time.Time{}
}

func (t *rootToken) Expiration() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiration
}

func (t *rootToken) SetExpiration(e time.Time) error {
	t.mu.Lock()
	if !t.endedLocked().IsZero() {
		t.mu.Unlock()
		return ErrTokenEnded
	}
	t.expiration = e
	t.hasDuration = !e.IsZero()
	reg := t.registry
	t.mu.Unlock()

	if reg != nil {
		reg.reindex(t)
	}
	return nil
}

func (t *rootToken) Duration() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started.IsZero() {
		// Not yet registered: report the requested lease length.
		return t.initialDuration, t.hasDuration
	}
	if t.expiration.IsZero() {
		return 0, false
	}
	d := t.expiration.Sub(t.started)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (t *rootToken) SetDuration(d time.Duration) error {
	t.mu.Lock()
	if !t.endedLocked().IsZero() {
		t.mu.Unlock()
		return ErrTokenEnded
	}
	if t.clock == nil {
		// Not yet registered: adjust the requested lease length.
		t.initialDuration = d
		t.hasDuration = d > 0
		t.mu.Unlock()
		return nil
	}
	if d > 0 {
		t.expiration = t.clock.Now().Add(d)
		t.hasDuration = true
	} else {
		t.expiration = time.Time{}
		t.hasDuration = false
	}
	reg := t.registry
	t.mu.Unlock()

	if reg != nil {
		reg.reindex(t)
	}
	return nil
}

func (t *rootToken) Remaining() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expiration.IsZero() || t.clock == nil {
		return 0, false
	}
	if !t.endedLocked().IsZero() {
		return 0, true
	}
	d := t.expiration.Sub(t.clock.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

func (t *rootToken) Annotations() *Annotations { return t.annotations }

func (t *rootToken) Add(principals ...types.PrincipalID) error {
	if t.scope != types.ScopeShared {
		return ErrNotShared
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.endedLocked().IsZero() {
		return ErrTokenEnded
	}
	for _, p := range principals {
		t.principals[p] = struct{}{}
	}
	return nil
}

func (t *rootToken) Remove(principals ...types.PrincipalID) error {
	if t.scope != types.ScopeShared {
		return ErrNotShared
	}
	t.mu.Lock()
	if !t.endedLocked().IsZero() {
		t.mu.Unlock()
		return ErrTokenEnded
	}
	for _, p := range principals {
		delete(t.principals, p)
	}
	if len(t.principals) > 0 {
		t.mu.Unlock()
		return nil
	}

	// Removing the last principal ends the token.
	if t.clock != nil {
		t.ended = t.clock.Now()
	} else {
		t.ended = time.Now()
	}
	reg := t.registry
	t.mu.Unlock()

	if reg != nil {
		reg.notifyEnded(t)
	}
	return nil
}

func (t *rootToken) End() error {
	t.mu.Lock()
	if !t.endedLocked().IsZero() {
		t.mu.Unlock()
		return ErrTokenEnded
	}
	if t.registry == nil {
		t.mu.Unlock()
		return ErrNotRegistered
	}
	t.ended = t.clock.Now()
	reg := t.registry
	t.mu.Unlock()

	reg.notifyEnded(t)
	return nil
}

func (t *rootToken) Root() Token { return t }

func (t *rootToken) Registry() Registry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.registry == nil {
		return nil
	}
	return t.registry
}

// expirationSnapshot returns the current absolute expiry for expiry-heap
// staleness checks.
func (t *rootToken) expirationSnapshot() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiration
}

// finalizeExpired marks a silently expired token as ended, stamping the end
// at its expiration time. Returns false when the token is still active, has
// no timeout, or was already finalized.
func (t *rootToken) finalizeExpired(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ended.IsZero() {
		return false
	}
	if t.expiration.IsZero() || t.expiration.After(now) {
		return false
	}
	t.ended = t.expiration
	return true
}

// attach binds the token to its registry, stamping started/expiration from
// the registry clock. Called with the registry mutex held.
func (t *rootToken) attach(r *registry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registry = r
	t.clock = r.clock
	t.started = r.clock.Now()
	if t.hasDuration && t.initialDuration > 0 {
		t.expiration = t.started.Add(t.initialDuration)
	}
}
