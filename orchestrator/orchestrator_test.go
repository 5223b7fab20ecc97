package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapt252/supersmartmatch/adapter"
	"github.com/bapt252/supersmartmatch/contextanalyzer"
	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/fallback"
	"github.com/bapt252/supersmartmatch/monitor"
	"github.com/bapt252/supersmartmatch/registry"
	"github.com/bapt252/supersmartmatch/resilience"
	"github.com/bapt252/supersmartmatch/types"
)

func testRequest() types.Request {
	return types.Request{
		Candidate: types.Candidate{
			ID:       "cand-1",
			Skills:   []types.Skill{{Name: "Go"}},
			Mobility: types.MobilityHybrid,
		},
		Offers: []types.Offer{
			{ID: "offer-1", RequiredSkills: []types.Skill{{Name: "Go"}}},
			{ID: "offer-2", RequiredSkills: []types.Skill{{Name: "Rust"}}},
		},
	}
}

func buildOrchestrator(t *testing.T, executors map[types.AlgorithmID]registry.Executor) *Orchestrator {
	t.Helper()
	orch, _ := buildOrchestratorWithResilience(t, executors)
	return orch
}

func buildOrchestratorWithResilience(t *testing.T, executors map[types.AlgorithmID]registry.Executor) (*Orchestrator, *resilience.Manager) {
	t.Helper()
	cfg := *core.DefaultConfig()
	cfg.Orchestrator.DefaultAlgorithm = "auto"

	analyzer := contextanalyzer.New(contextanalyzer.WeightsFromConfig(cfg.ContextWeights), 0, nil)
	dataAdapter := adapter.New(adapter.DefaultWeights(), 0, nil)
	reg := registry.New(executors)
	resilienceMgr := resilience.NewManager(resilience.Config{
		FailureThreshold:  cfg.Resilience.FailureThreshold,
		RecoveryTimeout:   cfg.Resilience.RecoveryTimeout,
		SuccessThreshold:  cfg.Resilience.SuccessThreshold,
		CallTimeout:       cfg.Resilience.CallTimeout,
		SlowCallThreshold: cfg.Resilience.SlowCallThreshold,
	}, cfg.Resilience.MaxParallelPerAlgo, nil)
	fallbackMgr := fallback.New(fallback.Config{
		MaxAttempts:         cfg.Fallback.MaxAttempts,
		Timeout:             cfg.Fallback.Timeout,
		MinimalScoreBase:    cfg.Fallback.MinimalScoreBase,
		MinimalScoreEpsilon: cfg.Fallback.MinimalScoreEpsilon,
		DegradedConfidence:  cfg.Fallback.DegradedConfidence,
	}, resilienceMgr, nil)
	mon := monitor.New(monitor.Config{RingSize: 100, RPMBuckets: 60}, nil)

	orch := New(cfg, Deps{
		Analyzer:   analyzer,
		Adapter:    dataAdapter,
		Registry:   reg,
		Resilience: resilienceMgr,
		Fallback:   fallbackMgr,
		Monitor:    mon,
		Logger:     nil,
	}, 0)
	return orch, resilienceMgr
}

func TestHandleRejectsEmptyCandidateID(t *testing.T) {
	orch := buildOrchestrator(t, map[types.AlgorithmID]registry.Executor{
		types.AlgorithmNexten: registry.NextenExecutor{},
	})

	req := testRequest()
	req.Candidate.ID = ""

	_, err := orch.Handle(context.Background(), req)
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestHandleReturnsMatchesOnHappyPath(t *testing.T) {
	orch := buildOrchestrator(t, map[types.AlgorithmID]registry.Executor{
		types.AlgorithmNexten:   registry.NextenExecutor{},
		types.AlgorithmSmart:    registry.SmartExecutor{},
		types.AlgorithmEnhanced: registry.EnhancedExecutor{},
		types.AlgorithmSemantic: registry.SemanticExecutor{},
		types.AlgorithmHybrid:   registry.HybridExecutor{},
	})

	resp, err := orch.Handle(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, resp.Matches, 2)
	assert.Equal(t, types.StatusOK, resp.Status)
	assert.NotEmpty(t, resp.RequestID)
}

// Mirrors spec.md §8 scenario 3: the primary's circuit is OPEN, the
// Fallback Manager routes around it, and the first healthy chain entry
// succeeds — the response is a full-quality "ok", not "degraded", even
// though every match is individually marked is_fallback=true.
func TestHandleRoutesAroundOpenCircuitWithoutDegradingStatus(t *testing.T) {
	orch, resilienceMgr := buildOrchestratorWithResilience(t, map[types.AlgorithmID]registry.Executor{
		types.AlgorithmNexten:   registry.NextenExecutor{},
		types.AlgorithmEnhanced: registry.EnhancedExecutor{},
		types.AlgorithmSmart:    registry.SmartExecutor{},
		types.AlgorithmSemantic: registry.SemanticExecutor{},
	})
	require.NoError(t, resilienceMgr.ForceOpen(types.AlgorithmNexten, "test: forcing fallback"))

	req := testRequest()
	req.Candidate.Mobility = "" // avoid the geo-critical rule so the base pick is nexten

	resp, err := orch.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.AlgorithmEnhanced, resp.Metadata.AlgorithmUsed)
	assert.Equal(t, types.StatusOK, resp.Status)
	for _, m := range resp.Matches {
		assert.True(t, m.IsFallback)
		assert.Equal(t, types.AlgorithmNexten, m.OriginalAlgo)
		assert.Equal(t, types.AlgorithmEnhanced, m.FallbackAlgo)
	}
}

// When every chain entry genuinely fails (not merely circuit-open), the
// Fallback Manager exhausts its attempts and synthesizes the minimal
// response, which does move the response to "degraded".
func TestHandleFallsBackToMinimalResponseWhenChainExhausted(t *testing.T) {
	orch := buildOrchestrator(t, map[types.AlgorithmID]registry.Executor{
		// Intentionally empty: every lookup in the chain fails, so the
		// Fallback Manager runs out of real algorithms to try.
	})

	req := testRequest()
	req.Candidate.Mobility = ""

	resp, err := orch.Handle(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.AlgorithmMinimal, resp.Metadata.AlgorithmUsed)
	assert.Equal(t, types.StatusDegraded, resp.Status)
	assert.True(t, resp.Metadata.Degraded)
	assert.NotEmpty(t, resp.Warning)
}

func TestHandleHonorsMaxResults(t *testing.T) {
	orch := buildOrchestrator(t, map[types.AlgorithmID]registry.Executor{
		types.AlgorithmNexten: registry.NextenExecutor{},
	})

	req := testRequest()
	req.Config.MaxResults = 1

	resp, err := orch.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, resp.Matches, 1)
}

func TestHandleRespectsManualAlgorithmOverride(t *testing.T) {
	orch := buildOrchestrator(t, map[types.AlgorithmID]registry.Executor{
		types.AlgorithmNexten: registry.NextenExecutor{},
		types.AlgorithmSmart:  registry.SmartExecutor{},
	})

	req := testRequest()
	req.Config.Algorithm = types.AlgorithmSmart

	resp, err := orch.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, types.AlgorithmSmart, resp.Metadata.AlgorithmUsed)
	assert.Equal(t, "manual", resp.Metadata.SelectionReason)
}
