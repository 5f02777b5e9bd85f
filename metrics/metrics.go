package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/treelock/treelock/types"
)

var (
	// LockRequestCounter tracks lock acquisition attempts by scope and outcome.
	LockRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treelock_lock_requests_total",
		Help: "Total number of lock acquisition attempts",
	}, []string{"scope", "outcome"})
	// UnlockCounter tracks unlock attempts by outcome.
	UnlockCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treelock_unlocks_total",
		Help: "Total number of unlock attempts",
	}, []string{"outcome"})
	// RefreshCounter tracks lease refresh attempts by outcome.
	RefreshCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treelock_refreshes_total",
		Help: "Total number of lease refresh attempts",
	}, []string{"outcome"})
	// ExpiredCounter tracks leases finalized by the background sweeper.
	ExpiredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "treelock_expired_total",
		Help: "Total number of leases finalized by the sweeper",
	})
	// IndirectCounter tracks indirect tokens created by lock propagation.
	IndirectCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "treelock_indirect_tokens_total",
		Help: "Total number of indirect tokens created by lock propagation",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers treelock core metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LockRequestCounter, UnlockCounter, RefreshCounter, ExpiredCounter, IndirectCounter)
}

// Recorder feeds lock manager counters into the package metrics. It
// satisfies the manager's Metrics interface.
type Recorder struct{}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (Recorder) IncrLockRequest(scope types.LockScope, success bool) {
	LockRequestCounter.WithLabelValues(string(scope), outcome(success)).Inc()
}

func (Recorder) IncrUnlock(success bool) {
	UnlockCounter.WithLabelValues(outcome(success)).Inc()
}

func (Recorder) IncrRefresh(success bool) {
	RefreshCounter.WithLabelValues(outcome(success)).Inc()
}

func (Recorder) AddExpired(n int) {
	ExpiredCounter.Add(float64(n))
}

func (Recorder) AddIndirect(n int) {
	IndirectCounter.Add(float64(n))
}
