package resilience

import (
	"context"
	"fmt"

	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/types"
)

// Manager owns one Breaker per algorithm plus a shared semaphore capping
// in-flight executor calls across all algorithms (spec.md §5's
// max_parallel_requests). It implements selector.HealthView so the
// selector's degradation override can consult it directly without a
// package cycle.
type Manager struct {
	breakers map[types.AlgorithmID]*Breaker
	sem      chan struct{}
	logger   core.Logger
}

// NewManager builds a Manager with one breaker per known algorithm.
func NewManager(cfg Config, maxParallel int, logger core.Logger) *Manager {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	breakers := make(map[types.AlgorithmID]*Breaker, len(types.AllAlgorithms))
	for _, id := range types.AllAlgorithms {
		breakers[id] = New(string(id), cfg, logger)
	}
	if maxParallel <= 0 {
		maxParallel = 10
	}
	return &Manager{
		breakers: breakers,
		sem:      make(chan struct{}, maxParallel),
		logger:   logger,
	}
}

// Breaker returns the breaker for algo, or nil if algo is unknown.
func (m *Manager) Breaker(algo types.AlgorithmID) *Breaker {
	return m.breakers[algo]
}

// Execute runs f under algo's breaker and the shared parallelism cap. If
// the semaphore is full, ctx cancellation is honored while waiting.
func (m *Manager) Execute(ctx context.Context, algo types.AlgorithmID, f func(ctx context.Context) error) error {
	b := m.breakers[algo]
	if b == nil {
		return fmt.Errorf("%w: %s", core.ErrUnknownAlgorithm, algo)
	}

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-m.sem }()

	return b.Call(ctx, f)
}

// P95Millis implements selector.HealthView.
func (m *Manager) P95Millis(algo types.AlgorithmID) float64 {
	b := m.breakers[algo]
	if b == nil {
		return -1
	}
	return b.Percentile(95)
}

// SuccessRate implements selector.HealthView.
func (m *Manager) SuccessRate(algo types.AlgorithmID) float64 {
	b := m.breakers[algo]
	if b == nil {
		return -1
	}
	return b.SuccessRate()
}

// CircuitOpen implements selector.HealthView.
func (m *Manager) CircuitOpen(algo types.AlgorithmID) bool {
	b := m.breakers[algo]
	if b == nil {
		return false
	}
	return b.State() == StateOpen
}

// ForceOpen administratively opens algo's breaker, if known.
func (m *Manager) ForceOpen(algo types.AlgorithmID, reason string) error {
	b := m.breakers[algo]
	if b == nil {
		return fmt.Errorf("%w: %s", core.ErrUnknownAlgorithm, algo)
	}
	b.ForceOpen(reason)
	return nil
}

// ForceClose administratively closes algo's breaker, if known.
func (m *Manager) ForceClose(algo types.AlgorithmID, reason string) error {
	b := m.breakers[algo]
	if b == nil {
		return fmt.Errorf("%w: %s", core.ErrUnknownAlgorithm, algo)
	}
	b.ForceClose(reason)
	return nil
}

// Snapshot is a diagnostic view of one algorithm's breaker state.
type Snapshot struct {
	Algorithm   types.AlgorithmID
	State       State
	Counters    Counters
	P50, P95    float64
	Transitions []Transition
}

// Snapshots returns a diagnostic view of every algorithm's breaker,
// backing the /config and admin status endpoints.
func (m *Manager) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(types.AllAlgorithms))
	for _, id := range types.AllAlgorithms {
		b := m.breakers[id]
		out = append(out, Snapshot{
			Algorithm:   id,
			State:       b.State(),
			Counters:    b.Counters(),
			P50:         b.Percentile(50),
			P95:         b.Percentile(95),
			Transitions: b.Transitions(),
		})
	}
	return out
}
