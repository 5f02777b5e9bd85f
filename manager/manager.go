package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/treelock/treelock/logger"
	"github.com/treelock/treelock/token"
	"github.com/treelock/treelock/tree"
	"github.com/treelock/treelock/types"
)

// lockManager provides a concrete implementation of the LockManager
// interface. One mutex serializes compound operations (check-then-register
// sequences and bookkeeping mutation); the registry and tokens carry their
// own finer-grained locking underneath.
type lockManager struct {
	mu sync.Mutex

	registry token.Registry
	clock    token.Clock
	logger   logger.Logger
	metrics  Metrics
	resolver PrincipalResolver
	cfg      Config

	stopSweep chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option defines a function that applies a configuration setting to a
// LockManager during initialization.
type Option func(*lockManager)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(m *lockManager) { m.cfg = cfg }
}

// WithClock sets the clock used for all timing decisions.
func WithClock(c token.Clock) Option {
	return func(m *lockManager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger for internal events.
func WithLogger(l logger.Logger) Option {
	return func(m *lockManager) {
		if l != nil {
			m.logger = l.WithComponent("manager")
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt Metrics) Option {
	return func(m *lockManager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// WithResolver sets the principal resolver consulted when a request carries
// no principal.
func WithResolver(r PrincipalResolver) Option {
	return func(m *lockManager) { m.resolver = r }
}

// WithRegistry makes the manager operate on an existing registry instead of
// creating its own. The registry must use the same clock as the manager.
func WithRegistry(reg token.Registry) Option {
	return func(m *lockManager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// NewLockManager creates a lock manager. With no options it uses the wall
// clock, a no-op logger and no-op metrics, and owns a fresh registry.
func NewLockManager(opts ...Option) LockManager {
	m := &lockManager{
		cfg:     DefaultConfig(),
		clock:   token.NewStandardClock(),
		logger:  logger.NewNoOpLogger(),
		metrics: NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = token.NewRegistry(token.WithClock(m.clock), token.WithLogger(m.logger))
	}
	if m.cfg.EnableSweeper {
		m.stopSweep = make(chan struct{})
		m.wg.Add(1)
		go m.runSweeper()
	}
	return m
}

// handleInfo is the per-handle metadata lock discovery reports.
type handleInfo struct {
	owner string
	depth types.Depth
}

// lockInfo is the manager's bookkeeping on a root token: the handles issued
// for it and one principal entry per handle. The same principal appears once
// per handle it holds, so principals is a list, not a set.
type lockInfo struct {
	principals []types.PrincipalID
	handles    map[types.LockToken]*handleInfo
}

func (li *lockInfo) hasInfiniteDepth() bool {
	for _, h := range li.handles {
		if h.depth.IsInfinite() {
			return true
		}
	}
	return false
}

// dropPrincipal removes one occurrence of p and reports whether any
// occurrence remains.
func (li *lockInfo) dropPrincipal(p types.PrincipalID) bool {
	if i := slices.Index(li.principals, p); i >= 0 {
		li.principals = slices.Delete(li.principals, i, i+1)
	}
	return slices.Contains(li.principals, p)
}

// infoFor fetches the manager bookkeeping from a root's annotations,
// creating it when create is set. Callers hold the manager mutex.
func infoFor(t token.Token, create bool) *lockInfo {
	ann := t.Annotations()
	if v, ok := ann.Get(lockInfoKey); ok {
		return v.(*lockInfo)
	}
	if !create {
		return nil
	}
	info := &lockInfo{handles: make(map[types.LockToken]*handleInfo)}
	ann.Set(lockInfoKey, info)
	return info
}

func (m *lockManager) Lock(ctx context.Context, res tree.Resource, req LockRequest) (types.LockToken, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	principal, err := m.resolvePrincipal(ctx, req.Principal)
	if err != nil {
		return "", err
	}
	if !req.Scope.IsValid() {
		m.metrics.IncrLockRequest(req.Scope, false)
		return "", fmt.Errorf("%w: scope %q", ErrUnprocessable, req.Scope)
	}
	if !req.Depth.IsValid() {
		m.metrics.IncrLockRequest(req.Scope, false)
		return "", fmt.Errorf("%w: depth %q", ErrUnprocessable, req.Depth)
	}
	duration := m.normalizeDuration(req.Duration)

	m.mu.Lock()
	defer m.mu.Unlock()

	var root token.Token
	switch req.Scope {
	case types.ScopeExclusive:
		root, err = m.lockExclusive(res, principal, duration)
	case types.ScopeShared:
		root, err = m.lockShared(res, principal, duration)
	}
	if err != nil {
		m.metrics.IncrLockRequest(req.Scope, false)
		return "", err
	}

	handle := types.NewLockToken()
	info := infoFor(root, true)
	info.principals = append(info.principals, principal)
	info.handles[handle] = &handleInfo{owner: req.Owner, depth: req.Depth}

	if req.Depth.IsInfinite() {
		if c, ok := res.(tree.Container); ok {
			if err := m.lockChildren(c, root); err != nil {
				m.metrics.IncrLockRequest(req.Scope, false)
				// The handle stays valid for the partially committed set.
				return handle, err
			}
		}
	}

	m.metrics.IncrLockRequest(req.Scope, true)
	m.logger.Debugw("lock acquired",
		"resource", res.ID(), "scope", req.Scope, "depth", req.Depth, "principal", principal)
	return handle, nil
}

func (m *lockManager) lockExclusive(res tree.Resource, principal types.PrincipalID, duration time.Duration) (token.Token, error) {
	tok, err := m.registry.Register(token.NewExclusiveLock(res.ID(), principal, duration))
	if err != nil {
		if errors.Is(err, token.ErrRegistration) {
			return nil, &AlreadyLockedError{Resource: res.ID()}
		}
		return nil, err
	}
	return tok, nil
}

func (m *lockManager) lockShared(res tree.Resource, principal types.PrincipalID, duration time.Duration) (token.Token, error) {
	cur := m.registry.Get(res.ID())
	if cur == nil {
		tok, err := m.registry.Register(token.NewSharedLock(res.ID(), []types.PrincipalID{principal}, duration))
		if err != nil {
			if errors.Is(err, token.ErrRegistration) {
				return nil, &AlreadyLockedError{Resource: res.ID()}
			}
			return nil, err
		}
		return tok, nil
	}

	root := cur.Root()
	if root.Scope() != types.ScopeShared {
		return nil, &AlreadyLockedError{Resource: res.ID()}
	}
	if err := root.Add(principal); err != nil {
		return nil, err
	}
	// Joining refreshes the shared lease: the last request's duration wins.
	if err := m.applyDuration(root, duration); err != nil {
		return nil, err
	}
	return root, nil
}

func (m *lockManager) Unlock(ctx context.Context, res tree.Resource, principal types.PrincipalID, handle types.LockToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	principal, err := m.resolvePrincipal(ctx, principal)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.registry.Get(res.ID())
	if cur == nil {
		m.metrics.IncrUnlock(false)
		return fmt.Errorf("%w: %s is not locked", ErrConflict, res.ID())
	}
	root := cur.Root()
	if !slices.Contains(root.Principals(), principal) {
		m.metrics.IncrUnlock(false)
		return fmt.Errorf("%w: %s does not hold the lock on %s", ErrConflict, principal, res.ID())
	}
	info := infoFor(root, false)
	if info == nil {
		m.metrics.IncrUnlock(false)
		return fmt.Errorf("%w: unknown lock token %s", ErrConflict, handle)
	}
	if _, ok := info.handles[handle]; !ok {
		m.metrics.IncrUnlock(false)
		return fmt.Errorf("%w: unknown lock token %s", ErrConflict, handle)
	}

	delete(info.handles, handle)
	stillHolds := info.dropPrincipal(principal)

	switch root.Scope() {
	case types.ScopeShared:
		if !stillHolds {
			// Dropping the last principal ends the root and cascades.
			if err := root.Remove(principal); err != nil {
				m.metrics.IncrUnlock(false)
				return err
			}
		}
	default:
		if err := root.End(); err != nil {
			m.metrics.IncrUnlock(false)
			return err
		}
	}

	m.metrics.IncrUnlock(true)
	m.logger.Debugw("lock released", "resource", res.ID(), "principal", principal)
	return nil
}

func (m *lockManager) Refresh(ctx context.Context, res tree.Resource, duration time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.registry.Get(res.ID())
	if cur == nil {
		m.metrics.IncrRefresh(false)
		return fmt.Errorf("%w: %s is not locked", ErrConflict, res.ID())
	}
	if err := m.applyDuration(cur.Root(), m.normalizeDuration(duration)); err != nil {
		m.metrics.IncrRefresh(false)
		return err
	}
	m.metrics.IncrRefresh(true)
	return nil
}

func (m *lockManager) GetActiveLock(ctx context.Context, res tree.Resource, handle types.LockToken) (*ActiveLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.registry.Get(res.ID())
	if cur == nil {
		return nil, fmt.Errorf("%w: %s is not locked", ErrConflict, res.ID())
	}
	root := cur.Root()
	info := infoFor(root, false)
	if info == nil {
		return nil, fmt.Errorf("%w: unknown lock token %s", ErrConflict, handle)
	}
	h, ok := info.handles[handle]
	if !ok {
		return nil, fmt.Errorf("%w: unknown lock token %s", ErrConflict, handle)
	}
	al := m.describe(root, handle, h)
	return &al, nil
}

func (m *lockManager) Discovery(ctx context.Context, res tree.Resource) ([]ActiveLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.registry.Get(res.ID())
	if cur == nil {
		return nil, nil
	}
	root := cur.Root()
	info := infoFor(root, false)
	if info == nil || len(info.handles) == 0 {
		// Locked below the manager: report defaults.
		return []ActiveLock{m.describe(root, "", nil)}, nil
	}

	handles := make([]types.LockToken, 0, len(info.handles))
	for h := range info.handles {
		handles = append(handles, h)
	}
	slices.Sort(handles)

	out := make([]ActiveLock, 0, len(handles))
	for _, h := range handles {
		out = append(out, m.describe(root, h, info.handles[h]))
	}
	return out, nil
}

func (m *lockManager) IsLocked(ctx context.Context, res tree.Resource) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return m.registry.Get(res.ID()) != nil, nil
}

func (m *lockManager) Close() error {
	m.closeOnce.Do(func() {
		if m.stopSweep != nil {
			close(m.stopSweep)
			m.wg.Wait()
		}
	})
	return nil
}

// describe builds the discovery descriptor for one handle on a root. A nil
// handleInfo (lock taken out below the manager) yields depth "0" and no
// owner.
func (m *lockManager) describe(root token.Token, handle types.LockToken, h *handleInfo) ActiveLock {
	al := ActiveLock{
		Scope:      root.Scope(),
		Type:       types.TypeWrite,
		Principals: root.Principals(),
		Depth:      types.DepthZero,
		Token:      handle,
		Root:       root.Resource(),
	}
	if h != nil {
		al.Owner = h.owner
		al.Depth = h.depth
	}
	if rem, ok := root.Remaining(); ok {
		al.Timeout = &rem
	}
	return al
}

// normalizeDuration maps a requested lease length onto the configured
// bounds: zero means the default, negative means no timeout, anything above
// the maximum is clamped.
func (m *lockManager) normalizeDuration(d time.Duration) time.Duration {
	switch {
	case d == 0:
		d = m.cfg.DefaultTimeout
	case d < 0:
		return 0
	}
	if m.cfg.MaxTimeout > 0 && d > m.cfg.MaxTimeout {
		d = m.cfg.MaxTimeout
	}
	return d
}

// applyDuration resets a root's lease, removing the timeout for a
// non-positive duration. An ended root reports ErrConflict: the lock is
// observed as already gone.
func (m *lockManager) applyDuration(root token.Token, d time.Duration) error {
	var err error
	if d > 0 {
		err = root.SetDuration(d)
	} else {
		err = root.SetExpiration(time.Time{})
	}
	if errors.Is(err, token.ErrTokenEnded) {
		return fmt.Errorf("%w: %s is not locked", ErrConflict, root.Resource())
	}
	return err
}

func (m *lockManager) resolvePrincipal(ctx context.Context, p types.PrincipalID) (types.PrincipalID, error) {
	if p != "" {
		return p, nil
	}
	if m.resolver == nil {
		return "", ErrNoPrincipal
	}
	resolved, err := m.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if resolved == "" {
		return "", ErrNoPrincipal
	}
	return resolved, nil
}

func (m *lockManager) runSweeper() {
	defer m.wg.Done()
	ticker := m.clock.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopSweep:
			return
		case now := <-ticker.Chan():
			if n := m.registry.Sweep(now); n > 0 {
				m.metrics.AddExpired(n)
			}
		}
	}
}
