package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapt252/supersmartmatch/adapter"
	"github.com/bapt252/supersmartmatch/contextanalyzer"
	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/fallback"
	"github.com/bapt252/supersmartmatch/monitor"
	"github.com/bapt252/supersmartmatch/orchestrator"
	"github.com/bapt252/supersmartmatch/registry"
	"github.com/bapt252/supersmartmatch/resilience"
	"github.com/bapt252/supersmartmatch/types"
)

func buildTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := *core.DefaultConfig()
	cfg.Port = 0

	analyzer := contextanalyzer.New(contextanalyzer.WeightsFromConfig(cfg.ContextWeights), 0, nil)
	dataAdapter := adapter.New(adapter.DefaultWeights(), 0, nil)
	reg := registry.New(map[types.AlgorithmID]registry.Executor{
		types.AlgorithmNexten: registry.NextenExecutor{},
		types.AlgorithmSmart:  registry.SmartExecutor{},
	})
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

	orch := orchestrator.New(cfg, orchestrator.Deps{
		Analyzer:   analyzer,
		Adapter:    dataAdapter,
		Registry:   reg,
		Resilience: resilienceMgr,
		Fallback:   fallbackMgr,
		Monitor:    mon,
		Logger:     nil,
	}, 0)

	return New(cfg, orch, resilienceMgr, mon, "test")
}

func testRequestBody() []byte {
	req := types.Request{
		Candidate: types.Candidate{
			ID:     "cand-1",
			Skills: []types.Skill{{Name: "Go"}},
		},
		Offers: []types.Offer{
			{ID: "offer-1", RequiredSkills: []types.Skill{{Name: "Go"}}},
		},
	}
	body, _ := json.Marshal(req)
	return body
}

func TestHandleMatchReturnsMatches(t *testing.T) {
	srv := buildTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/match", bytes.NewReader(testRequestBody()))
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp types.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Matches, 1)
}

func TestHandleMatchRejectsWrongMethod(t *testing.T) {
	srv := buildTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/match", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleMatchRejectsMalformedBody(t *testing.T) {
	srv := buildTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/match", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := buildTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleHealthV2IncludesCircuitBreakers(t *testing.T) {
	srv := buildTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v2/health", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "circuit_breakers")
}

func TestHandleForceOpenAndClose(t *testing.T) {
	srv := buildTestServer(t)

	openBody, _ := json.Marshal(map[string]string{"algorithm": "nexten", "reason": "test override"})
	r := httptest.NewRequest(http.MethodPost, "/admin/circuit/force-open", bytes.NewReader(openBody))
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	closeBody, _ := json.Marshal(map[string]string{"algorithm": "nexten", "reason": "test restore"})
	r = httptest.NewRequest(http.MethodPost, "/admin/circuit/force-close", bytes.NewReader(closeBody))
	w = httptest.NewRecorder()
	srv.mux.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleABCompareRequiresBothQueryParams(t *testing.T) {
	srv := buildTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/admin/ab-test/compare?a=nexten", nil)
	w := httptest.NewRecorder()
	srv.mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
