package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapt252/supersmartmatch/types"
)

func sampleRequest() types.Request {
	return types.Request{
		Candidate: types.Candidate{
			ID:     "cand-1",
			Skills: []types.Skill{{Name: "Go"}, {Name: "Kubernetes"}},
			Mobility: types.MobilityHybrid,
		},
		CandidateQuestionnaire: map[string]interface{}{"q1": "a"},
		Offers: []types.Offer{
			{ID: "offer-1", RequiredSkills: []types.Skill{{Name: "Go"}}},
			{ID: "offer-2", RequiredSkills: []types.Skill{{Name: "Rust"}}},
		},
	}
}

func TestAdaptRequestNextenShape(t *testing.T) {
	a := New(DefaultWeights(), 10, nil)
	req := sampleRequest()

	candPayload, offersPayload, config := a.AdaptRequest(req, types.AlgorithmNexten)

	native, ok := candPayload.(NativeCandidate)
	require.True(t, ok)
	assert.NotEmpty(t, native.CV)

	offers, ok := offersPayload.([]NativeOffer)
	require.True(t, ok)
	assert.Len(t, offers, 2)

	assert.Contains(t, config, "questionnaire_weight")
}

func TestAdaptRequestGenericShapeForOtherAlgorithms(t *testing.T) {
	a := New(DefaultWeights(), 10, nil)
	req := sampleRequest()

	candPayload, offersPayload, config := a.AdaptRequest(req, types.AlgorithmSmart)

	cand, ok := candPayload.(GenericCandidate)
	require.True(t, ok)
	assert.Equal(t, "cand-1", cand.ID)

	offers, ok := offersPayload.([]GenericOffer)
	require.True(t, ok)
	assert.Len(t, offers, 2)

	assert.NotContains(t, config, "questionnaire_weight")
}

func TestNormalizeResultsPadsMissingOffers(t *testing.T) {
	a := New(DefaultWeights(), 10, nil)
	native := []NativeResult{{OfferID: "offer-1", Score: 0.7, Confidence: floatPtr(0.8)}}

	results := a.NormalizeResults(native, types.AlgorithmSmart, []string{"offer-1", "offer-2"})

	require.Len(t, results, 2)
	assert.Equal(t, "offer-1", results[0].OfferID)
	assert.InDelta(t, 0.7, results[0].OverallScore, 0.0001)
	assert.Equal(t, "offer-2", results[1].OfferID)
	assert.Equal(t, "fallback: adapter normalization failed", results[1].Explanation)
}

func TestNormalizeResultsClampsOutOfRangeScores(t *testing.T) {
	a := New(DefaultWeights(), 10, nil)
	native := []NativeResult{{OfferID: "offer-1", Score: 1.5}}

	results := a.NormalizeResults(native, types.AlgorithmSmart, []string{"offer-1"})

	assert.Equal(t, 1.0, results[0].OverallScore)
}

func TestNormalizeResultsDegradesOnNaN(t *testing.T) {
	a := New(DefaultWeights(), 10, nil)
	nan := 0.0
	nan = nan / nan
	native := []NativeResult{{OfferID: "offer-1", Score: nan}}

	results := a.NormalizeResults(native, types.AlgorithmSmart, []string{"offer-1"})

	assert.Equal(t, 0.5, results[0].OverallScore)
	assert.Equal(t, "fallback: adapter normalization failed", results[0].Explanation)
}

func TestFingerprintStableForSameInputs(t *testing.T) {
	req := sampleRequest()
	fp1 := Fingerprint(req, types.AlgorithmNexten)
	fp2 := Fingerprint(req, types.AlgorithmNexten)
	assert.Equal(t, fp1, fp2)

	fp3 := Fingerprint(req, types.AlgorithmSmart)
	assert.NotEqual(t, fp1, fp3)
}

func TestCacheStoreAndLookup(t *testing.T) {
	a := New(DefaultWeights(), 2, nil)
	req := sampleRequest()
	fp := Fingerprint(req, types.AlgorithmNexten)

	_, _, ok := a.CacheLookup(fp)
	assert.False(t, ok)

	a.CacheStore(fp, NativeCandidate{}, GenericCandidate{ID: "cand-1"})

	_, generic, ok := a.CacheLookup(fp)
	require.True(t, ok)
	assert.Equal(t, "cand-1", generic.ID)
}

func TestCacheEvictsOldestBeyondCapacity(t *testing.T) {
	a := New(DefaultWeights(), 1, nil)
	a.CacheStore("fp1", NativeCandidate{}, GenericCandidate{ID: "a"})
	a.CacheStore("fp2", NativeCandidate{}, GenericCandidate{ID: "b"})

	_, _, ok := a.CacheLookup("fp1")
	assert.False(t, ok)

	_, generic, ok := a.CacheLookup("fp2")
	require.True(t, ok)
	assert.Equal(t, "b", generic.ID)
}

func floatPtr(v float64) *float64 { return &v }
