package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapt252/supersmartmatch/adapter"
	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/types"
)

type stubExecutor struct {
	id  types.AlgorithmID
	err error
}

func (s stubExecutor) Name() types.AlgorithmID { return s.id }

func (s stubExecutor) Execute(ctx context.Context, _, _ interface{}, _ map[string]interface{}) ([]adapter.NativeResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []adapter.NativeResult{{OfferID: "o1", Score: 0.5}}, nil
}

func TestRegistryLookupReturnsRegisteredExecutor(t *testing.T) {
	r := New(map[types.AlgorithmID]Executor{
		types.AlgorithmNexten: stubExecutor{id: types.AlgorithmNexten},
	})

	ex, err := r.Lookup(types.AlgorithmNexten)
	require.NoError(t, err)
	assert.Equal(t, types.AlgorithmNexten, ex.Name())
}

func TestRegistryFillsMissingAlgorithmsWithUnavailable(t *testing.T) {
	r := New(map[types.AlgorithmID]Executor{
		types.AlgorithmNexten: stubExecutor{id: types.AlgorithmNexten},
	})

	ex, err := r.Lookup(types.AlgorithmSmart)
	require.NoError(t, err)

	_, execErr := ex.Execute(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, execErr, core.ErrExecutorUnavailable)
}

func TestRegistryLookupUnknownAlgorithm(t *testing.T) {
	r := New(nil)
	_, err := r.Lookup(types.AlgorithmID("does-not-exist"))
	assert.ErrorIs(t, err, core.ErrUnknownAlgorithm)
}

func TestNextenExecutorScoresOnSkillOverlap(t *testing.T) {
	exec := NextenExecutor{}
	cand := adapter.NativeCandidate{CV: map[string]interface{}{"skills": []types.Skill{{Name: "Go"}}}}
	offers := []adapter.NativeOffer{
		{
			JobInfo:      map[string]interface{}{"id": "o1"},
			Requirements: map[string]interface{}{"required_skills": []types.Skill{{Name: "Go"}}},
		},
	}

	results, err := exec.Execute(context.Background(), cand, offers, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].Score, 0.5)
}

func TestNextenExecutorRejectsMalformedPayload(t *testing.T) {
	exec := NextenExecutor{}
	_, err := exec.Execute(context.Background(), "not-a-candidate", nil, nil)
	assert.Error(t, err)
}

func TestSmartExecutorFavorsRemoteWhenMobilityIsLocal(t *testing.T) {
	exec := SmartExecutor{}
	cand := adapter.GenericCandidate{Mobility: types.MobilityLocal}
	offers := []adapter.GenericOffer{
		{ID: "office", RemotePolicy: types.RemoteOffice},
		{ID: "remote", RemotePolicy: types.RemoteFull},
	}

	results, err := exec.Execute(context.Background(), cand, offers, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Less(t, results[0].CategoryScores["location"], results[1].CategoryScores["location"])
}

func TestExecutorsRespectContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := SemanticExecutor{}
	cand := adapter.GenericCandidate{}
	offers := []adapter.GenericOffer{{ID: "o1"}, {ID: "o2"}}

	_, err := exec.Execute(ctx, cand, offers, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
