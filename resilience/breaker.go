// Package resilience implements the per-algorithm circuit breaker state
// machine of spec.md §4.5: CLOSED/OPEN/HALF-OPEN gating of executor calls,
// with a bounded latency ring for percentile reporting and a bounded
// transition log for diagnostics.
package resilience

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bapt252/supersmartmatch/core"
)

// State is one of the three circuit breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config parameterizes one breaker. Mirrors core.ResilienceConfig.
type Config struct {
	FailureThreshold  int
	RecoveryTimeout   time.Duration
	SuccessThreshold  int
	CallTimeout       time.Duration
	SlowCallThreshold time.Duration
}

// Transition is one recorded state change, kept for diagnostics only.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Counters is a snapshot of a breaker's lifetime call counters.
type Counters struct {
	Total    int64
	Success  int64
	Failure  int64
	Timeouts int64
	Slow     int64
}

// Breaker is one algorithm's circuit breaker. The hot path (the admission
// check in Call, the state read) uses atomics; only actual state transitions take the lock,
// matching the low-contention design of the teacher's telemetry breaker.
type Breaker struct {
	algorithm string
	cfg       Config

	state atomic.Value // State

	consecutiveFailures atomic.Int64
	consecutiveSuccess  atomic.Int64
	openedAt            atomic.Value // time.Time

	total    atomic.Int64
	success  atomic.Int64
	failure  atomic.Int64
	timeouts atomic.Int64
	slow     atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	transitions []Transition

	logger core.Logger
}

// New builds a Breaker for the named algorithm.
func New(algorithm string, cfg Config, logger core.Logger) *Breaker {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	b := &Breaker{algorithm: algorithm, cfg: cfg, logger: logger}
	b.state.Store(StateClosed)
	b.openedAt.Store(time.Time{})
	return b
}

// State returns the current state, first promoting OPEN to HALF-OPEN if
// the recovery timeout has elapsed.
func (b *Breaker) State() State {
	state := b.state.Load().(State)
	if state != StateOpen {
		return state
	}

	openedAt, _ := b.openedAt.Load().(time.Time)
	if openedAt.IsZero() || time.Since(openedAt) < b.cfg.RecoveryTimeout {
		return StateOpen
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.Load().(State) == StateOpen {
		b.transitionLocked(StateOpen, StateHalfOpen)
		b.consecutiveSuccess.Store(0)
	}
	return b.state.Load().(State)
}

// ErrRejected is returned by Call when the breaker is OPEN.
var ErrRejected = core.ErrCircuitOpen

// Call executes f under the breaker's call timeout, recording the outcome
// and applying the CLOSED/OPEN/HALF-OPEN transition rules of spec.md §4.5.
func (b *Breaker) Call(ctx context.Context, f func(ctx context.Context) error) error {
	if b.State() == StateOpen {
		return fmt.Errorf("%w: %s", ErrRejected, b.algorithm)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: panic in executor: %v", core.ErrAlgorithmFailure, r)
			}
		}()
		done <- f(callCtx)
	}()

	var err error
	select {
	case <-callCtx.Done():
		<-done // drain to avoid leaking the goroutine
		err = fmt.Errorf("%w: %s", core.ErrAlgorithmTimeout, b.algorithm)
		b.timeouts.Add(1)
	case err = <-done:
	}

	elapsed := time.Since(start)
	b.recordLatency(elapsed)
	if elapsed > b.cfg.SlowCallThreshold {
		b.slow.Add(1)
	}
	b.total.Add(1)

	if err != nil {
		b.failure.Add(1)
		b.onFailure()
		return err
	}

	b.success.Add(1)
	b.onSuccess()
	return nil
}

func (b *Breaker) onSuccess() {
	switch b.State() {
	case StateHalfOpen:
		successes := b.consecutiveSuccess.Add(1)
		if int(successes) >= b.cfg.SuccessThreshold {
			b.mu.Lock()
			if b.state.Load().(State) == StateHalfOpen {
				b.transitionLocked(StateHalfOpen, StateClosed)
				b.consecutiveFailures.Store(0)
				b.consecutiveSuccess.Store(0)
			}
			b.mu.Unlock()
		}
	case StateClosed:
		for {
			cur := b.consecutiveFailures.Load()
			if cur <= 0 {
				break
			}
			if b.consecutiveFailures.CompareAndSwap(cur, cur-1) {
				break
			}
		}
	}
}

func (b *Breaker) onFailure() {
	switch b.State() {
	case StateHalfOpen:
		b.mu.Lock()
		if b.state.Load().(State) == StateHalfOpen {
			b.transitionLocked(StateHalfOpen, StateOpen)
			b.openedAt.Store(time.Now())
			b.consecutiveSuccess.Store(0)
		}
		b.mu.Unlock()
	case StateClosed:
		failures := b.consecutiveFailures.Add(1)
		if int(failures) >= b.cfg.FailureThreshold {
			b.mu.Lock()
			if b.state.Load().(State) == StateClosed {
				b.transitionLocked(StateClosed, StateOpen)
				b.openedAt.Store(time.Now())
			}
			b.mu.Unlock()
		}
	}
}

// transitionLocked must be called with b.mu held.
func (b *Breaker) transitionLocked(from, to State) {
	b.state.Store(to)
	b.transitions = append(b.transitions, Transition{From: from, To: to, At: time.Now()})
	if len(b.transitions) > 50 {
		b.transitions = b.transitions[len(b.transitions)-50:]
	}
	b.logger.Warn("circuit breaker transition", map[string]interface{}{
		"algorithm": b.algorithm,
		"from":      string(from),
		"to":        string(to),
	})
}

func (b *Breaker) recordLatency(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latencies = append(b.latencies, d)
	if len(b.latencies) > 100 {
		b.latencies = b.latencies[len(b.latencies)-100:]
	}
}

// Percentile returns the p-th percentile (0..100) latency in milliseconds
// over the last 100 recorded calls, or -1 if no samples exist.
func (b *Breaker) Percentile(p int) float64 {
	b.mu.Lock()
	samples := append([]time.Duration(nil), b.latencies...)
	b.mu.Unlock()

	if len(samples) == 0 {
		return -1
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	idx := (p * (len(samples) - 1)) / 100
	if idx < 0 {
		idx = 0
	}
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	return float64(samples[idx].Microseconds()) / 1000.0
}

// Counters returns a snapshot of lifetime call counters.
func (b *Breaker) Counters() Counters {
	return Counters{
		Total:    b.total.Load(),
		Success:  b.success.Load(),
		Failure:  b.failure.Load(),
		Timeouts: b.timeouts.Load(),
		Slow:     b.slow.Load(),
	}
}

// SuccessRate returns lifetime successes/total, or -1 if no calls yet.
func (b *Breaker) SuccessRate() float64 {
	total := b.total.Load()
	if total == 0 {
		return -1
	}
	return float64(b.success.Load()) / float64(total)
}

// Transitions returns a copy of the last (up to 50) recorded transitions.
func (b *Breaker) Transitions() []Transition {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Transition, len(b.transitions))
	copy(out, b.transitions)
	return out
}

// ForceOpen administratively opens the circuit, e.g. for maintenance.
func (b *Breaker) ForceOpen(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	from := b.state.Load().(State)
	b.transitionLocked(from, StateOpen)
	b.openedAt.Store(time.Now())
	b.logger.Warn("circuit breaker force-opened", map[string]interface{}{
		"algorithm": b.algorithm,
		"reason":    reason,
	})
}

// ForceClose administratively closes the circuit and resets the consecutive
// failure and success counts; the lifetime totals from Counters are kept.
func (b *Breaker) ForceClose(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	from := b.state.Load().(State)
	b.transitionLocked(from, StateClosed)
	b.consecutiveFailures.Store(0)
	b.consecutiveSuccess.Store(0)
	b.logger.Info("circuit breaker force-closed", map[string]interface{}{
		"algorithm": b.algorithm,
		"reason":    reason,
	})
}
