package manager

import "github.com/treelock/treelock/types"

// Metrics defines the counters a lock manager maintains. Implementations
// must be safe for concurrent use.
type Metrics interface {
	// IncrLockRequest counts one lock acquisition attempt per scope.
	IncrLockRequest(scope types.LockScope, success bool)

	// IncrUnlock counts one unlock attempt.
	IncrUnlock(success bool)

	// IncrRefresh counts one lease refresh attempt.
	IncrRefresh(success bool)

	// AddExpired counts leases finalized by the sweeper.
	AddExpired(n int)

	// AddIndirect counts indirect tokens created by lock propagation.
	AddIndirect(n int)
}

// NoOpMetrics is a metrics implementation that does nothing.
type NoOpMetrics struct{}

func (NoOpMetrics) IncrLockRequest(types.LockScope, bool) {}
func (NoOpMetrics) IncrUnlock(bool)                       {}
func (NoOpMetrics) IncrRefresh(bool)                      {}
func (NoOpMetrics) AddExpired(int)                        {}
func (NoOpMetrics) AddIndirect(int)                       {}
