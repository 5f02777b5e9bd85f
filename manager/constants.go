package manager

import "time"

const (
	// DefaultTimeout is the lease length used when a request asks for the
	// default (zero duration).
	DefaultTimeout = 1 * time.Hour

	// DefaultMaxTimeout caps requested lease lengths.
	DefaultMaxTimeout = 24 * time.Hour

	// DefaultSweepInterval is how often the background sweeper finalizes
	// expired leases when enabled. Sweeping is eager cleanup only; expiry
	// is re-checked on every read regardless.
	DefaultSweepInterval = 1 * time.Minute
)

// lockInfoKey is the annotation slot on a root token holding the manager's
// per-handle bookkeeping. It lives in the shared annotations so every
// indirect token of the set observes the same bookkeeping.
const lockInfoKey = "treelock.manager.davinfo"
