// Command matchingservice runs the job-matching orchestration HTTP service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bapt252/supersmartmatch/adapter"
	"github.com/bapt252/supersmartmatch/contextanalyzer"
	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/fallback"
	"github.com/bapt252/supersmartmatch/monitor"
	"github.com/bapt252/supersmartmatch/orchestrator"
	"github.com/bapt252/supersmartmatch/registry"
	"github.com/bapt252/supersmartmatch/resilience"
	"github.com/bapt252/supersmartmatch/server"
	"github.com/bapt252/supersmartmatch/telemetry"
	"github.com/bapt252/supersmartmatch/types"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := core.NewConfig()
	if err != nil {
		// No logger is guaranteed to exist yet; stderr is the only option.
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		return 1
	}
	logger := cfg.Logger()

	mon := monitor.New(monitor.Config{
		RingSize:            cfg.Monitor.RingSize,
		LatencySampleSize:   cfg.Monitor.LatencySampleSize,
		RPMBuckets:          cfg.Monitor.RPMBuckets,
		RPMBucketWidth:      cfg.Monitor.RPMBucketWidth,
		ErrorRateWarning:    cfg.Monitor.ErrorRateWarning,
		ErrorRateCritical:   cfg.Monitor.ErrorRateCritical,
		P95WarningMs:        float64(cfg.Monitor.P95WarningMs),
		P95CriticalMs:       float64(cfg.Monitor.P95CriticalMs),
		SuccessRateCritical: cfg.Monitor.SuccessRateCritical,
		AlertCooldown:       cfg.Monitor.AlertCooldown,
	}, logger)
	core.SetMetricsRegistry(mon)

	resilienceMgr := resilience.NewManager(resilience.Config{
		FailureThreshold:  cfg.Resilience.FailureThreshold,
		RecoveryTimeout:   cfg.Resilience.RecoveryTimeout,
		SuccessThreshold:  cfg.Resilience.SuccessThreshold,
		CallTimeout:       cfg.Resilience.CallTimeout,
		SlowCallThreshold: cfg.Resilience.SlowCallThreshold,
	}, cfg.Resilience.MaxParallelPerAlgo, logger)

	analyzer := contextanalyzer.New(contextanalyzer.WeightsFromConfig(cfg.ContextWeights), 1000, logger)

	adapterWeights := adapter.Weights{
		Skills:        cfg.Adapter.SkillsWeight,
		Experience:    cfg.Adapter.ExperienceWeight,
		Location:      cfg.Adapter.LocationWeight,
		Culture:       cfg.Adapter.CultureWeight,
		Questionnaire: cfg.Adapter.QuestionnaireWeight,
	}
	dataAdapter := adapter.New(adapterWeights, cfg.Adapter.CacheSize, logger)

	reg := registry.New(map[types.AlgorithmID]registry.Executor{
		types.AlgorithmNexten:   registry.NextenExecutor{},
		types.AlgorithmSmart:    registry.SmartExecutor{},
		types.AlgorithmEnhanced: registry.EnhancedExecutor{},
		types.AlgorithmSemantic: registry.SemanticExecutor{},
		types.AlgorithmHybrid:   registry.HybridExecutor{},
	})

	fallbackMgr := fallback.New(fallback.Config{
		MaxAttempts:         cfg.Fallback.MaxAttempts,
		Timeout:             cfg.Fallback.Timeout,
		MinimalScoreBase:    cfg.Fallback.MinimalScoreBase,
		MinimalScoreEpsilon: cfg.Fallback.MinimalScoreEpsilon,
		DegradedConfidence:  cfg.Fallback.DegradedConfidence,
		Retry: resilience.RetryConfig{
			MaxAttempts:   cfg.Fallback.RetryAttempts,
			InitialDelay:  cfg.Fallback.RetryInitialDelay,
			MaxDelay:      10 * cfg.Fallback.RetryInitialDelay,
			BackoffFactor: 2.0,
			JitterEnabled: true,
		},
	}, resilienceMgr, logger)

	var telemetryProvider *telemetry.Provider
	if cfg.Telemetry.Enabled {
		telemetryProvider, err = telemetry.NewProvider(cfg.Name, cfg.Telemetry.Endpoint, logger)
		if err != nil {
			logger.Error("failed to start telemetry provider, continuing without it", map[string]interface{}{"error": err.Error()})
			telemetryProvider = nil
		}
	}

	var telemetryDep core.Telemetry
	if telemetryProvider != nil {
		telemetryDep = telemetryProvider
	}

	orch := orchestrator.New(*cfg, orchestrator.Deps{
		Analyzer:   analyzer,
		Adapter:    dataAdapter,
		Registry:   reg,
		Resilience: resilienceMgr,
		Fallback:   fallbackMgr,
		Monitor:    mon,
		Logger:     logger,
		Telemetry:  telemetryDep,
	}, 4)

	srv := server.New(*cfg, orch, resilienceMgr, mon, version)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited with error", map[string]interface{}{"error": err.Error()})
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received", map[string]interface{}{})
	}

	if err := srv.Stop(cfg.HTTP.ShutdownTimeout); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
		return 1
	}

	if telemetryProvider != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", map[string]interface{}{"error": err.Error()})
		}
		cancel()
	}

	logger.Info("shutdown complete", map[string]interface{}{})
	return 0
}
