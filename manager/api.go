package manager

import (
	"context"
	"time"

	"github.com/treelock/treelock/tree"
	"github.com/treelock/treelock/types"
)

// LockRequest describes one lock acquisition.
type LockRequest struct {
	// Principal identifies the requesting party. When empty, the manager's
	// PrincipalResolver is consulted.
	Principal types.PrincipalID

	// Scope selects exclusive or shared locking.
	Scope types.LockScope

	// Owner is opaque caller-supplied contact information, echoed back in
	// lock discovery.
	Owner string

	// Duration is the requested lease length. Zero requests the configured
	// default; a negative value requests a lease with no timeout. Values
	// above the configured maximum are clamped.
	Duration time.Duration

	// Depth selects whether the lock covers just the resource or, for a
	// container, its entire subtree.
	Depth types.Depth
}

// ActiveLock describes an active lock as observed from one resource, in the
// shape lock discovery reports it.
type ActiveLock struct {
	Scope      types.LockScope
	Type       types.LockType
	Principals []types.PrincipalID
	Owner      string
	Depth      types.Depth

	// Timeout is the time left on the lease, nil when it never expires.
	Timeout *time.Duration

	// Token is the handle this entry describes.
	Token types.LockToken

	// Root identifies the resource the lock was taken out on; for a
	// resource covered indirectly this differs from the queried resource.
	Root types.ResourceID
}

// PrincipalResolver establishes the principal identity for a request that
// does not carry one.
type PrincipalResolver interface {
	Resolve(ctx context.Context) (types.PrincipalID, error)
}

// StaticResolver resolves every request to one fixed principal.
type StaticResolver types.PrincipalID

func (r StaticResolver) Resolve(context.Context) (types.PrincipalID, error) {
	return types.PrincipalID(r), nil
}

// LockManager is the facade callers interact with: it owns the registry,
// issues opaque lock-token handles, propagates infinite-depth locks across
// subtrees and keeps the per-handle bookkeeping that lock discovery reports.
//
// All implementations must be safe for concurrent use.
type LockManager interface {
	// Lock acquires a lock on res and returns the handle identifying this
	// acquisition. Joining an existing shared lock returns a fresh handle
	// for the same underlying lock.
	//
	// Returns ErrAlreadyLocked (an *AlreadyLockedError naming the
	// conflicting resource) on collision, ErrUnprocessable for a bad scope
	// or depth, ErrNoPrincipal when no principal can be established. An
	// infinite-depth acquisition that fails partway returns BOTH the handle
	// and an *AlreadyLockedError with Partial set: the root and the
	// descendants walked before the conflict stay locked, and the caller
	// decides whether to unlock the handle or retry.
	Lock(ctx context.Context, res tree.Resource, req LockRequest) (types.LockToken, error)

	// Unlock releases the acquisition identified by handle. For a shared
	// lock this drops one handle; the principal leaves the lock when its
	// last handle goes, and the lock ends when its last principal leaves.
	// Returns ErrConflict when res is not locked, the handle is unknown, or
	// principal does not hold the lock.
	Unlock(ctx context.Context, res tree.Resource, principal types.PrincipalID, handle types.LockToken) error

	// Refresh resets the lease on the lock covering res. Duration follows
	// LockRequest semantics (zero = default, negative = no timeout).
	// Returns ErrConflict when res is not locked.
	Refresh(ctx context.Context, res tree.Resource, duration time.Duration) error

	// GetActiveLock describes the acquisition identified by handle on the
	// lock covering res. Returns ErrConflict when res is not locked or the
	// handle is unknown.
	GetActiveLock(ctx context.Context, res tree.Resource, handle types.LockToken) (*ActiveLock, error)

	// Discovery lists one descriptor per handle on the lock covering res,
	// or nil when res is unlocked. A lock taken out below the manager (no
	// handle bookkeeping) yields a single descriptor with defaults.
	Discovery(ctx context.Context, res tree.Resource) ([]ActiveLock, error)

	// IsLocked reports whether res is covered by any active lock.
	IsLocked(ctx context.Context, res tree.Resource) (bool, error)

	// ResourceAdded absorbs a resource that appeared inside parent: when
	// the lock covering parent holds any infinite-depth handle, child (and
	// its subtree) is locked indirectly under the same root.
	ResourceAdded(ctx context.Context, child tree.Resource, parent tree.Container) error

	// Watch subscribes the manager to a tree's child-added events so
	// creations and moves are absorbed automatically via ResourceAdded.
	Watch(tr *tree.Tree)

	// Close stops the background sweeper, if one was configured. Safe to
	// call more than once.
	Close() error
}
