package types

// ResourceID is the stable, opaque identity of a lockable resource.
// It must remain constant for the lifetime of the resource, surviving
// renames and moves within the tree.
type ResourceID string

// PrincipalID identifies a principal (user or agent) holding a lock.
type PrincipalID string

// LockToken is the opaque handle returned from a successful lock request.
// One root lock carries one handle per exclusive request, and one handle
// per joined principal for shared requests.
type LockToken string

// LockScope distinguishes the two WebDAV lock scopes.
type LockScope string

const (
	// ScopeExclusive grants the lock to exactly one principal.
	ScopeExclusive LockScope = "exclusive"

	// ScopeShared allows multiple principals to hold the lock together.
	ScopeShared LockScope = "shared"
)

// IsValid checks whether the scope is one of the two supported lock scopes.
func (s LockScope) IsValid() bool {
	return s == ScopeExclusive || s == ScopeShared
}

// LockType is the lock access type. WebDAV defines only "write".
type LockType string

// TypeWrite is the only lock type defined by this engine.
const TypeWrite LockType = "write"

// Depth controls how far down the resource tree a lock request applies.
type Depth string

const (
	// DepthZero locks only the target resource itself.
	DepthZero Depth = "0"

	// DepthInfinity locks the target and every descendant, present and
	// future, via indirect tokens.
	DepthInfinity Depth = "infinity"
)

// IsValid checks whether the depth is one of the two supported values.
func (d Depth) IsValid() bool {
	return d == DepthZero || d == DepthInfinity
}

// IsInfinite reports whether the depth propagates through the subtree.
func (d Depth) IsInfinite() bool {
	return d == DepthInfinity
}
