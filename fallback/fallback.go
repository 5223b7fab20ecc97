// Package fallback implements spec.md §4.6: walking an algorithm's static
// fallback chain when the primary executor fails, synthesizing a minimal
// response when every candidate in the chain is exhausted or skipped, and
// the emergency critical-failure path when the chain walk itself panics.
package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/resilience"
	"github.com/bapt252/supersmartmatch/selector"
	"github.com/bapt252/supersmartmatch/types"
)

// Config parameterizes fallback behavior. Mirrors core.FallbackConfig.
type Config struct {
	MaxAttempts         int
	Timeout             time.Duration
	MinimalScoreBase    float64
	MinimalScoreEpsilon float64
	DegradedConfidence  float64

	// Retry governs a short exponential-backoff retry applied to each
	// algorithm in the chain before it is counted as a failed attempt and
	// the chain moves on to the next candidate. Zero value disables retry
	// (a single try per chain entry).
	Retry resilience.RetryConfig
}

// CircuitOpenChecker reports whether an algorithm's circuit is currently
// rejecting calls, so the fallback chain can skip it without attempting.
type CircuitOpenChecker interface {
	CircuitOpen(algo types.AlgorithmID) bool
}

// Manager tries algo via call and, on failure, walks the rest of the chain
// shared with the selector's degradation override (selector.FallbackChain)
// up to cfg.MaxAttempts candidates, skipping any with an open circuit.
type Manager struct {
	cfg    Config
	health CircuitOpenChecker
	logger core.Logger
}

// New builds a fallback Manager. health may be nil, in which case open
// circuits are not proactively skipped (the call itself will still fail
// fast through the breaker).
func New(cfg Config, health CircuitOpenChecker, logger core.Logger) *Manager {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Manager{cfg: cfg, health: health, logger: logger}
}

// Result captures the outcome of a Run call, including whether the
// returned matches came from a fallback algorithm and which one.
type Result struct {
	Matches          []types.MatchResult
	AlgorithmUsed    types.AlgorithmID
	OriginalAlgo     types.AlgorithmID
	IsFallback       bool
	CriticalFailure  bool
	AttemptsExhausted int
}

// Call executes one algorithm and returns its native-normalized matches.
// Implemented by the orchestrator, which owns the adapter/registry/breaker
// wiring; fallback only sequences calls to it.
type Call func(ctx context.Context, algo types.AlgorithmID) ([]types.MatchResult, error)

// Run attempts primary via call; on failure it walks primary's fallback
// chain (selector.FallbackChain) up to cfg.MaxAttempts total tries. If
// every attempt fails, it synthesizes a minimal response rather than
// propagating the error, per spec.md §4.6.
func (m *Manager) Run(ctx context.Context, primary types.AlgorithmID, offerIDs []string, call Call) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("fallback chain panicked, returning emergency response", map[string]interface{}{
				"original_algorithm": string(primary),
				"panic":              fmt.Sprintf("%v", r),
			})
			result = Result{
				Matches:         m.criticalFailureResponse(offerIDs),
				AlgorithmUsed:   types.AlgorithmNone,
				OriginalAlgo:    primary,
				IsFallback:      true,
				CriticalFailure: true,
			}
		}
	}()

	chain := append([]types.AlgorithmID{primary}, selector.FallbackChain[primary]...)
	attempts := 0

	for _, algo := range chain {
		if attempts >= m.cfg.MaxAttempts {
			break
		}
		if m.health != nil && m.health.CircuitOpen(algo) {
			m.logger.Debug("fallback: skipping algorithm with open circuit", map[string]interface{}{
				"algorithm": string(algo),
			})
			continue
		}
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		var matches []types.MatchResult
		err := resilience.Retry(attemptCtx, m.cfg.Retry, func(retryCtx context.Context) error {
			m, callErr := call(retryCtx, algo)
			matches = m
			return callErr
		})
		cancel()

		if err != nil {
			m.logger.Warn("fallback attempt failed", map[string]interface{}{
				"algorithm": string(algo),
				"error":     err.Error(),
				"attempt":   attempts,
			})
			continue
		}

		isFallback := algo != primary
		if isFallback {
			matches = markFallback(matches, primary, algo, 0.9)
		}
		return Result{
			Matches:           matches,
			AlgorithmUsed:     algo,
			OriginalAlgo:      primary,
			IsFallback:        isFallback,
			AttemptsExhausted: attempts,
		}
	}

	m.logger.Error("all fallback attempts exhausted or skipped, synthesizing minimal response", map[string]interface{}{
		"original_algorithm": string(primary),
		"attempts":           attempts,
	})

	// Whether every chain entry was actually tried and failed, or every
	// entry was skipped because its circuit was already open (attempts==0),
	// the observable outcome per spec.md §8 scenario 4 is the same: a
	// non-empty minimal response with status "degraded". criticalFailureResponse
	// is reserved for the recover() above, where the chain itself misbehaved.
	return Result{
		Matches:           m.minimalResponse(offerIDs),
		AlgorithmUsed:     types.AlgorithmMinimal,
		OriginalAlgo:      primary,
		IsFallback:        true,
		AttemptsExhausted: attempts,
	}
}

// minimalResponse synthesizes a degraded-but-ordered result set when every
// real algorithm attempt failed: scores rise by MinimalScoreEpsilon per offer
// so ranking stays deterministic without claiming real discrimination power.
func (m *Manager) minimalResponse(offerIDs []string) []types.MatchResult {
	out := make([]types.MatchResult, 0, len(offerIDs))
	for i, id := range offerIDs {
		score := m.cfg.MinimalScoreBase + float64(i)*m.cfg.MinimalScoreEpsilon
		out = append(out, types.MatchResult{
			OfferID:       id,
			OverallScore:  clamp01(score),
			Confidence:    m.cfg.DegradedConfidence,
			AlgorithmUsed: types.AlgorithmMinimal,
			Explanation:   "minimal fallback: all configured algorithms failed or were unavailable",
			IsFallback:    true,
		})
	}
	return out
}

// criticalFailureResponse is the emergency path for a panic recovered out
// of the attempt loop itself (see the recover() in Run): it caps scope to
// the first 10 offers and uses a lower, explicitly pessimistic score. A
// merely exhausted or all-circuits-open chain uses minimalResponse instead.
func (m *Manager) criticalFailureResponse(offerIDs []string) []types.MatchResult {
	limit := len(offerIDs)
	if limit > 10 {
		limit = 10
	}
	out := make([]types.MatchResult, 0, limit)
	for _, id := range offerIDs[:limit] {
		out = append(out, types.MatchResult{
			OfferID:       id,
			OverallScore:  0.2,
			Confidence:    0.1,
			AlgorithmUsed: types.AlgorithmNone,
			Explanation:   "critical failure: the fallback chain failed unexpectedly",
			IsFallback:    true,
		})
	}
	return out
}

func markFallback(matches []types.MatchResult, original, used types.AlgorithmID, confidenceMultiplier float64) []types.MatchResult {
	out := make([]types.MatchResult, len(matches))
	for i, mr := range matches {
		mr.IsFallback = true
		mr.OriginalAlgo = original
		mr.FallbackAlgo = used
		mr.Confidence = clamp01(mr.Confidence * confidenceMultiplier)
		out[i] = mr
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
