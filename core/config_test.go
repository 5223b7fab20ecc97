package core

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "supersmartmatch", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)

	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ShutdownTimeout)

	assert.Equal(t, "auto", cfg.Orchestrator.DefaultAlgorithm)
	assert.True(t, cfg.Orchestrator.EnableFallback)
	assert.Equal(t, 50, cfg.Orchestrator.MaxResults)
	assert.Equal(t, 80*time.Millisecond, cfg.Orchestrator.CallTimeout)

	assert.Equal(t, 5, cfg.Resilience.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Resilience.RecoveryTimeout)
	assert.Equal(t, 3, cfg.Resilience.SuccessThreshold)

	assert.Equal(t, 3, cfg.Fallback.MaxAttempts)
	assert.Equal(t, 0.3, cfg.Fallback.MinimalScoreBase)
	assert.Equal(t, 0.6, cfg.Fallback.DegradedConfidence)

	assert.Equal(t, 10000, cfg.Monitor.RingSize)
	assert.Equal(t, 0.9, cfg.Monitor.SuccessRateCritical)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Development.Enabled)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"negative max results", func(c *Config) { c.Orchestrator.MaxResults = -1 }, true},
		{"zero failure threshold", func(c *Config) { c.Resilience.FailureThreshold = 0 }, true},
		{"zero fallback attempts", func(c *Config) { c.Fallback.MaxAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewConfigWithOptions(t *testing.T) {
	cfg, err := NewConfig(
		WithPort(9090),
		WithDefaultAlgorithm("nexten"),
	)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "nexten", cfg.Orchestrator.DefaultAlgorithm)
	assert.NotNil(t, cfg.Logger())
}

func TestNewConfigRejectsInvalidPort(t *testing.T) {
	_, err := NewConfig(WithPort(-1))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("MATCH_PORT", "9191")
	os.Setenv("MATCH_LOG_LEVEL", "debug")
	os.Setenv("MATCH_ENABLE_FALLBACK", "false")
	defer func() {
		os.Unsetenv("MATCH_PORT")
		os.Unsetenv("MATCH_LOG_LEVEL")
		os.Unsetenv("MATCH_ENABLE_FALLBACK")
	}()

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Orchestrator.EnableFallback)
}

func TestLoadFromEnvRejectsInvalidPort(t *testing.T) {
	os.Setenv("MATCH_PORT", "not-a-number")
	defer os.Unsetenv("MATCH_PORT")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	assert.Error(t, err)
}

func TestConfigLoggerFallsBackToNoOp(t *testing.T) {
	cfg := &Config{}
	logger := cfg.Logger()
	require.NotNil(t, logger)
	_, ok := logger.(*NoOpLogger)
	assert.True(t, ok)
}

func TestWithLoggerOverridesDefault(t *testing.T) {
	custom := &NoOpLogger{}
	cfg, err := NewConfig(WithLogger(custom))
	require.NoError(t, err)
	assert.Same(t, custom, cfg.Logger())
}

func TestProductionLoggerWithComponent(t *testing.T) {
	base := NewProductionLogger(LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, DevelopmentConfig{}, "test-service")
	aware, ok := base.(ComponentAwareLogger)
	require.True(t, ok)

	scoped := aware.WithComponent("resilience")
	require.NotNil(t, scoped)

	// Should not panic and should respect the debug gate.
	scoped.Info("breaker opened", map[string]interface{}{"algorithm": "nexten"})
	scoped.Debug("should be suppressed", nil)
}

func TestProductionLoggerDebugGating(t *testing.T) {
	base := NewProductionLogger(LoggingConfig{Level: "info", Format: "text"}, DevelopmentConfig{DebugLogging: true}, "svc")
	prod, ok := base.(*ProductionLogger)
	require.True(t, ok)
	assert.True(t, prod.debug)
}
