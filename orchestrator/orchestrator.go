// Package orchestrator wires context analysis, algorithm selection, data
// adaptation, circuit-breaker-guarded execution, fallback, and performance
// monitoring into the single request lifecycle of spec.md §4.8:
//
//  1. validate the request
//  2. analyze context
//  3. select an algorithm
//  4. adapt the request to that algorithm's native shape
//  5. execute under the algorithm's circuit breaker
//  6. normalize native results back to the unified shape
//  7. on failure, walk the fallback chain (synthesizing a minimal response
//     if every attempt fails)
//  8. record monitor stats and build the response envelope
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/bapt252/supersmartmatch/adapter"
	"github.com/bapt252/supersmartmatch/contextanalyzer"
	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/fallback"
	"github.com/bapt252/supersmartmatch/monitor"
	"github.com/bapt252/supersmartmatch/registry"
	"github.com/bapt252/supersmartmatch/resilience"
	"github.com/bapt252/supersmartmatch/selector"
	"github.com/bapt252/supersmartmatch/types"

	"github.com/google/uuid"
)

// Orchestrator is the single entry point of the matching pipeline.
type Orchestrator struct {
	analyzer   *contextanalyzer.Analyzer
	adapter    *adapter.Adapter
	registry   *registry.Registry
	resilience *resilience.Manager
	fallback   *fallback.Manager
	monitor    *monitor.Monitor
	logger     core.Logger
	telemetry  core.Telemetry

	defaultAlgorithm  types.AlgorithmID
	enableFallback    bool
	maxResults        int
	maxResponseTimeMs int
	callTimeout       time.Duration

	workers chan struct{} // bounds concurrent in-flight Handle calls
}

// Deps bundles every collaborator the orchestrator wires together, so
// construction stays a single explicit call instead of a long parameter
// list.
type Deps struct {
	Analyzer   *contextanalyzer.Analyzer
	Adapter    *adapter.Adapter
	Registry   *registry.Registry
	Resilience *resilience.Manager
	Fallback   *fallback.Manager
	Monitor    *monitor.Monitor
	Logger     core.Logger
	Telemetry  core.Telemetry
}

// New builds an Orchestrator from cfg and deps. workerPoolSize bounds how
// many Handle calls may run concurrently (spec.md §5); 0 disables the cap.
func New(cfg core.Config, deps Deps, workerPoolSize int) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if aware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = aware.WithComponent("orchestrator")
	}

	var workers chan struct{}
	if workerPoolSize > 0 {
		workers = make(chan struct{}, workerPoolSize)
	}

	telemetryProvider := deps.Telemetry
	if telemetryProvider == nil {
		telemetryProvider = &core.NoOpTelemetry{}
	}

	return &Orchestrator{
		analyzer:          deps.Analyzer,
		adapter:           deps.Adapter,
		registry:          deps.Registry,
		resilience:        deps.Resilience,
		fallback:          deps.Fallback,
		monitor:           deps.Monitor,
		logger:            logger,
		telemetry:         telemetryProvider,
		defaultAlgorithm:  types.AlgorithmID(cfg.Orchestrator.DefaultAlgorithm),
		enableFallback:    cfg.Orchestrator.EnableFallback,
		maxResults:        cfg.Orchestrator.MaxResults,
		maxResponseTimeMs: cfg.Orchestrator.MaxResponseTimeMs,
		callTimeout:       cfg.Orchestrator.CallTimeout,
		workers:           workers,
	}
}

// Handle runs one request through the full lifecycle and returns the
// unified response. It never returns a nil Response on the happy or
// degraded paths. It returns an error when the request fails validation,
// when ctx is done before a worker slot frees up, and (with fallback
// disabled) when the selected algorithm fails, wrapping ErrCriticalFailure.
func (o *Orchestrator) Handle(ctx context.Context, req types.Request) (types.Response, error) {
	if o.workers != nil {
		select {
		case o.workers <- struct{}{}:
			defer func() { <-o.workers }()
		case <-ctx.Done():
			return types.Response{}, ctx.Err()
		}
	}

	start := time.Now()
	requestID := uuid.NewString()

	ctx, span := o.telemetry.StartSpan(ctx, "orchestrator.Handle")
	defer span.End()
	span.SetAttribute("request_id", requestID)

	if req.Candidate.ID == "" || len(req.Offers) == 0 {
		return types.Response{}, core.NewMatchError("orchestrator.Handle", "request", core.ErrInvalidRequest)
	}

	offerIDs := make([]string, len(req.Offers))
	for i, off := range req.Offers {
		offerIDs[i] = off.ID
	}

	analyzed, err := o.analyzer.Analyze(req)
	if err != nil {
		return types.Response{}, err
	}

	var health selector.HealthView
	if o.resilience != nil {
		health = o.resilience
	}

	hint := types.AlgorithmID(req.Config.Algorithm)
	if hint == "" {
		hint = o.defaultAlgorithm
	}

	thresholds := selector.Thresholds{MaxResponseTimeMs: o.maxResponseTimeMs, MinSuccessRate: 0}
	decision := selector.Select(analyzed, hint, health, thresholds)

	fallbackEnabled := o.enableFallback
	if req.Config.EnableFallback != nil {
		fallbackEnabled = *req.Config.EnableFallback
	}

	var matches []types.MatchResult
	var algorithmUsed types.AlgorithmID
	// degraded is a diagnostic flag (any non-primary algorithm or proactive
	// selector override was used); it does NOT by itself set status, since a
	// single-hop fallback that succeeds is still a full-quality "ok" response
	// per spec.md §7's CircuitOpen/AlgorithmFailure handling. Only the
	// synthesized minimal/critical responses move status off "ok".
	var degraded = decision.Degraded
	var criticalFailure bool
	var warning string

	run := func(callCtx context.Context, algo types.AlgorithmID) ([]types.MatchResult, error) {
		return o.executeOne(callCtx, req, algo, offerIDs)
	}

	if fallbackEnabled && o.fallback != nil {
		result := o.fallback.Run(ctx, decision.Algorithm, offerIDs, run)
		matches = result.Matches
		algorithmUsed = result.AlgorithmUsed
		degraded = degraded || result.IsFallback
		criticalFailure = result.CriticalFailure
		if result.CriticalFailure {
			warning = "critical failure: the fallback chain failed unexpectedly; returning emergency placeholder matches"
		} else if algorithmUsed == types.AlgorithmMinimal {
			warning = fmt.Sprintf("degraded: all fallback attempts for %s failed or were skipped; returning minimal matches", result.OriginalAlgo)
		} else if result.IsFallback {
			warning = fmt.Sprintf("fallback: %s unavailable, served by %s", result.OriginalAlgo, result.AlgorithmUsed)
		}
	} else {
		m, execErr := run(ctx, decision.Algorithm)
		if execErr != nil {
			span.RecordError(execErr)
			return types.Response{}, fmt.Errorf("%w: %s", core.ErrCriticalFailure, execErr.Error())
		}
		matches = m
		algorithmUsed = decision.Algorithm
	}

	if o.maxResults > 0 && len(matches) > o.maxResults {
		matches = matches[:o.maxResults]
	}
	if req.Config.MaxResults > 0 && len(matches) > req.Config.MaxResults {
		matches = matches[:req.Config.MaxResults]
	}

	elapsed := time.Since(start)
	for i := range matches {
		matches[i].ProcessingTime = elapsed
	}

	span.SetAttribute("algorithm_used", string(algorithmUsed))
	span.SetAttribute("result_count", len(matches))

	status := types.StatusOK
	switch {
	case len(matches) == 0, criticalFailure:
		status = types.StatusCriticalError
	case algorithmUsed == types.AlgorithmMinimal:
		status = types.StatusDegraded
	}

	resp := types.Response{
		Matches: matches,
		Metadata: types.ResponseMetadata{
			AlgorithmUsed:   algorithmUsed,
			SelectionReason: string(decision.Reason),
			ContextAnalysis: types.ContextSummary{
				DataCompleteness: analyzed.DataCompleteness,
				SeniorityLevel:   analyzed.SeniorityLevel,
				ComplexityScore:  analyzed.ComplexityScore,
				AnalysisType:     analyzed.AnalysisType,
				GeoCritical:      analyzed.GeoCritical,
			},
			ExecutionTimeMs: elapsed.Milliseconds(),
			Degraded:        degraded,
		},
		RequestID: requestID,
		Timestamp: time.Now(),
		Status:    status,
		Warning:   warning,
	}

	o.logger.InfoWithContext(ctx, "request handled", map[string]interface{}{
		"request_id":       requestID,
		"algorithm":        string(algorithmUsed),
		"status":           string(status),
		"execution_ms":     elapsed.Milliseconds(),
		"result_count":     len(matches),
		"selection_reason": string(decision.Reason),
	})

	return resp, nil
}

// executeOne adapts req for algo, runs it under algo's circuit breaker,
// and normalizes the result, recording the outcome in the monitor.
func (o *Orchestrator) executeOne(ctx context.Context, req types.Request, algo types.AlgorithmID, offerIDs []string) ([]types.MatchResult, error) {
	exec, err := o.registry.Lookup(algo)
	if err != nil {
		return nil, err
	}

	candidatePayload, offersPayload, config := o.adapter.AdaptRequest(req, algo)

	var native []adapter.NativeResult
	start := time.Now()

	runFn := func(callCtx context.Context) error {
		res, execErr := exec.Execute(callCtx, candidatePayload, offersPayload, config)
		native = res
		return execErr
	}

	var execErr error
	if o.resilience != nil {
		execErr = o.resilience.Execute(ctx, algo, runFn)
	} else {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		execErr = runFn(callCtx)
		cancel()
	}

	elapsed := time.Since(start)
	if o.monitor != nil {
		o.monitor.Record(algo, execErr == nil, elapsed, len(native), time.Now())
	}
	o.telemetry.RecordMetric("supersmartmatch.executor.duration_ms", float64(elapsed.Milliseconds()), map[string]string{"algorithm": string(algo)})

	if execErr != nil {
		return nil, fmt.Errorf("%w: %s: %s", core.ErrAlgorithmFailure, algo, execErr.Error())
	}

	return o.adapter.NormalizeResults(native, algo, offerIDs), nil
}
