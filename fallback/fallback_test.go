package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapt252/supersmartmatch/types"
)

func testConfig() Config {
	return Config{
		MaxAttempts:         3,
		Timeout:             50 * time.Millisecond,
		MinimalScoreBase:    0.3,
		MinimalScoreEpsilon: 0.001,
		DegradedConfidence:  0.6,
	}
}

type noOpenCircuits struct{}

func (noOpenCircuits) CircuitOpen(types.AlgorithmID) bool { return false }

func TestRunSucceedsOnPrimary(t *testing.T) {
	m := New(testConfig(), noOpenCircuits{}, nil)

	call := func(ctx context.Context, algo types.AlgorithmID) ([]types.MatchResult, error) {
		return []types.MatchResult{{OfferID: "o1", OverallScore: 0.9, AlgorithmUsed: algo}}, nil
	}

	result := m.Run(context.Background(), types.AlgorithmNexten, []string{"o1"}, call)

	require.False(t, result.IsFallback)
	assert.Equal(t, types.AlgorithmNexten, result.AlgorithmUsed)
	assert.Len(t, result.Matches, 1)
}

func TestRunFallsBackToChainOnFailure(t *testing.T) {
	m := New(testConfig(), noOpenCircuits{}, nil)

	call := func(ctx context.Context, algo types.AlgorithmID) ([]types.MatchResult, error) {
		if algo == types.AlgorithmNexten {
			return nil, errors.New("executor down")
		}
		return []types.MatchResult{{OfferID: "o1", OverallScore: 0.8, Confidence: 0.9, AlgorithmUsed: algo}}, nil
	}

	result := m.Run(context.Background(), types.AlgorithmNexten, []string{"o1"}, call)

	require.True(t, result.IsFallback)
	assert.Equal(t, types.AlgorithmNexten, result.OriginalAlgo)
	assert.NotEqual(t, types.AlgorithmNexten, result.AlgorithmUsed)
	assert.Equal(t, result.AlgorithmUsed, result.Matches[0].FallbackAlgo)
	assert.InDelta(t, 0.81, result.Matches[0].Confidence, 0.001)
}

func TestRunSynthesizesMinimalResponseWhenAllAttemptsFail(t *testing.T) {
	m := New(testConfig(), noOpenCircuits{}, nil)

	call := func(ctx context.Context, algo types.AlgorithmID) ([]types.MatchResult, error) {
		return nil, errors.New("always fails")
	}

	result := m.Run(context.Background(), types.AlgorithmNexten, []string{"o1", "o2"}, call)

	require.True(t, result.IsFallback)
	require.False(t, result.CriticalFailure)
	assert.Equal(t, types.AlgorithmMinimal, result.AlgorithmUsed)
	assert.Len(t, result.Matches, 2)
	assert.Less(t, result.Matches[0].OverallScore, result.Matches[1].OverallScore)
}

type allOpenCircuits struct{}

func (allOpenCircuits) CircuitOpen(types.AlgorithmID) bool { return true }

// Every circuit open means attempts stays 0, but the observable outcome is
// still the ordinary minimal response (spec.md §8 scenario 4), not the
// emergency criticalFailureResponse — that path is reserved for a recovered
// panic escaping the chain (see TestRunRecoversFromPanic).
func TestRunMinimalResponseWhenAllCircuitsOpen(t *testing.T) {
	m := New(testConfig(), allOpenCircuits{}, nil)

	call := func(ctx context.Context, algo types.AlgorithmID) ([]types.MatchResult, error) {
		t.Fatal("call should never be invoked when every circuit is open")
		return nil, nil
	}

	offerIDs := make([]string, 15)
	for i := range offerIDs {
		offerIDs[i] = "o"
	}
	result := m.Run(context.Background(), types.AlgorithmNexten, offerIDs, call)

	assert.False(t, result.CriticalFailure)
	assert.Equal(t, types.AlgorithmMinimal, result.AlgorithmUsed)
	assert.Len(t, result.Matches, 15)
}

func TestRunRecoversFromPanic(t *testing.T) {
	m := New(testConfig(), noOpenCircuits{}, nil)

	call := func(ctx context.Context, algo types.AlgorithmID) ([]types.MatchResult, error) {
		panic("executor exploded")
	}

	result := m.Run(context.Background(), types.AlgorithmNexten, []string{"o1", "o2"}, call)

	assert.True(t, result.CriticalFailure)
	assert.Equal(t, types.AlgorithmNone, result.AlgorithmUsed)
	assert.NotEmpty(t, result.Matches)
}

func TestRunRespectsMaxAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 1
	m := New(cfg, noOpenCircuits{}, nil)

	attempts := 0
	call := func(ctx context.Context, algo types.AlgorithmID) ([]types.MatchResult, error) {
		attempts++
		return nil, errors.New("fail")
	}

	result := m.Run(context.Background(), types.AlgorithmNexten, []string{"o1"}, call)

	assert.Equal(t, 1, attempts)
	assert.Equal(t, types.AlgorithmMinimal, result.AlgorithmUsed)
}
