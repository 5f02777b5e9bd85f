package token

import (
	"time"

	"github.com/treelock/treelock/types"
)

// Token represents one lease over a resource.
//
// Two kinds of tokens exist: root tokens, which own real state (principals,
// timing, annotations), and indirect tokens, which proxy every read and write
// to the root token they were created against. A collection locked with
// infinite depth holds one root token; each descendant holds an indirect
// token referencing that root.
//
// Time-based expiry is evaluated lazily: a token past its expiration is
// observed as ended on every read, even before a sweep has finalized it.
// Once ended, a token never reactivates.
type Token interface {
	// Resource returns the stable identity of the locked resource.
	Resource() types.ResourceID

	// Scope returns the lock scope of the token's root (exclusive or shared).
	Scope() types.LockScope

	// Principals returns the sorted set of principals holding the lock.
	// For indirect tokens this is always the root's principal set.
	Principals() []types.PrincipalID

	// Started returns the registration timestamp, or the zero time for an
	// unregistered token.
	Started() time.Time

	// Ended returns the end timestamp, or the zero time while the token is
	// active. A token past its expiration reports its expiration here even
	// before any sweep has run.
	Ended() time.Time

	// Expiration returns the absolute expiry time, or the zero time when the
	// token has no timeout.
	Expiration() time.Time

	// SetExpiration replaces the expiry time. A zero time removes the
	// timeout. Returns ErrTokenEnded on an ended token.
	SetExpiration(e time.Time) error

	// Duration returns the total lease duration (expiration minus started,
	// clamped at zero). ok is false when the token has no timeout.
	Duration() (d time.Duration, ok bool)

	// SetDuration resets the lease to expire the given duration from now.
	// A non-positive duration removes the timeout. Returns ErrTokenEnded on
	// an ended token.
	SetDuration(d time.Duration) error

	// Remaining returns the time left until expiry, clamped at zero. ok is
	// false when the token has no timeout.
	Remaining() (d time.Duration, ok bool)

	// Annotations returns the annotation mapping. A root and all its
	// indirect tokens return the same *Annotations value.
	Annotations() *Annotations

	// Add joins principals to a shared lock. Fails with ErrNotShared when
	// the root is not shared, ErrTokenEnded when the token has ended.
	Add(principals ...types.PrincipalID) error

	// Remove drops principals from a shared lock. Removing the last
	// principal ends the token. Fails with ErrNotShared when the root is
	// not shared.
	Remove(principals ...types.PrincipalID) error

	// End finalizes the token and fires the end event, cascading to every
	// indirect token registered against it. Returns ErrTokenEnded if the
	// token has already ended (including silent expiry).
	End() error

	// Root resolves to the root token. Root tokens return themselves;
	// indirect tokens return the root they were created against. The result
	// is never an indirect token.
	Root() Token

	// Registry returns the registry this token is registered with, or nil.
	Registry() Registry
}

// Registry is the process-wide mapping from resource identity to active
// token: the single source of truth for "is X locked, and by what".
//
// All implementations must be safe for concurrent use.
type Registry interface {
	// Register activates a token, enforcing at most one active token per
	// resource identity. A logically expired incumbent is evicted first.
	//
	// Registering an already-ended token instead evicts it from the
	// registry and returns it; this is the cleanup path used by the
	// end-event cascade.
	//
	// Returns ErrRegistration when the resource already holds an active
	// token, ErrRegistryReset/ErrRegistryMismatch on registry identity
	// violations, and ErrNoPrincipals for an empty shared lock.
	Register(t Token) (Token, error)

	// Get returns the active token for a resource, or nil when the resource
	// is unlocked. Ended and silently expired tokens are reported as
	// absent.
	Get(id types.ResourceID) Token

	// OnTokenEnded subscribes fn to token end events. Subscribers run
	// synchronously, after the ended token has been evicted, in
	// subscription order. Events fire for root tokens only.
	OnTokenEnded(fn func(Token))

	// Sweep finalizes every token whose expiration is at or before now,
	// firing end events for each. Returns the number of tokens ended.
	// Sweeping is an optional eager-cleanup optimization; correctness never
	// depends on it because expiry is re-checked on every read.
	Sweep(now time.Time) int

	// Len returns the number of registry entries, including entries for
	// expired tokens that have not been swept yet.
	Len() int

	// DumpState serializes the registry's root tokens and their indirect
	// descendant sets for diagnostics or restart recovery.
	DumpState() ([]byte, error)

	// RestoreState rebuilds registry state from a DumpState payload.
	// Annotation metadata beyond the descendant index is not restored.
	RestoreState(data []byte) error
}
