package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable of the orchestration core. It supports the
// same three-layer priority the framework uses:
//  1. Defaults (lowest priority)
//  2. Environment variables
//  3. Functional options (highest priority)
//
// Config loading is intentionally simple: this service does not own a
// config-file format or a reload mechanism (spec.md treats "configuration
// file loading" as an external concern) — it only owns the struct and the
// precedence rules above.
type Config struct {
	Name string `json:"name" env:"MATCH_SERVICE_NAME" default:"supersmartmatch"`
	Port int    `json:"port" env:"MATCH_PORT" default:"8080"`

	HTTP           HTTPConfig           `json:"http" yaml:"http"`
	Orchestrator   OrchestratorConfig   `json:"orchestrator" yaml:"orchestrator"`
	Resilience     ResilienceConfig     `json:"resilience" yaml:"resilience"`
	Fallback       FallbackConfig       `json:"fallback" yaml:"fallback"`
	Monitor        MonitorConfig        `json:"monitor" yaml:"monitor"`
	ContextWeights ContextWeightsConfig `json:"context_weights" yaml:"context_weights"`
	Adapter        AdapterConfig        `json:"adapter" yaml:"adapter"`
	Logging        LoggingConfig        `json:"logging" yaml:"logging"`
	Development    DevelopmentConfig    `json:"development" yaml:"development"`
	Telemetry      TelemetryConfig      `json:"telemetry" yaml:"telemetry"`

	logger Logger `json:"-" yaml:"-"`
}

// HTTPConfig contains the server's HTTP-surface tuning. The surface itself
// (routing, auth, rate limiting) is out of spec.md's scope; these knobs are
// still ambient server plumbing.
type HTTPConfig struct {
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" env:"MATCH_HTTP_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" env:"MATCH_HTTP_WRITE_TIMEOUT" default:"5s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"MATCH_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// OrchestratorConfig controls the top-level request lifecycle (spec.md §4.8).
type OrchestratorConfig struct {
	DefaultAlgorithm  string        `json:"default_algorithm" yaml:"default_algorithm" env:"MATCH_DEFAULT_ALGORITHM" default:"auto"`
	EnableFallback    bool          `json:"enable_fallback" yaml:"enable_fallback" env:"MATCH_ENABLE_FALLBACK" default:"true"`
	MaxResults        int           `json:"max_results" yaml:"max_results" env:"MATCH_MAX_RESULTS" default:"50"`
	MaxResponseTimeMs int           `json:"max_response_time_ms" yaml:"max_response_time_ms" env:"MATCH_MAX_RESPONSE_TIME_MS" default:"100"`
	CallTimeout       time.Duration `json:"call_timeout" yaml:"call_timeout" env:"MATCH_CALL_TIMEOUT" default:"80ms"`
}

// ResilienceConfig parameterizes the per-algorithm circuit breakers
// (spec.md §4.5). The same settings apply to every algorithm; there is no
// per-algorithm override.
type ResilienceConfig struct {
	FailureThreshold   int           `json:"failure_threshold" yaml:"failure_threshold" env:"MATCH_CB_FAILURE_THRESHOLD" default:"5"`
	RecoveryTimeout    time.Duration `json:"recovery_timeout" yaml:"recovery_timeout" env:"MATCH_CB_RECOVERY_TIMEOUT" default:"30s"`
	SuccessThreshold   int           `json:"success_threshold" yaml:"success_threshold" env:"MATCH_CB_SUCCESS_THRESHOLD" default:"3"`
	CallTimeout        time.Duration `json:"call_timeout" yaml:"call_timeout" env:"MATCH_CB_CALL_TIMEOUT" default:"80ms"`
	SlowCallThreshold  time.Duration `json:"slow_call_threshold" yaml:"slow_call_threshold" env:"MATCH_CB_SLOW_CALL_THRESHOLD" default:"60ms"`
	MaxParallelPerAlgo int           `json:"max_parallel_requests" yaml:"max_parallel_requests" env:"MATCH_CB_MAX_PARALLEL" default:"10"`
}

// FallbackConfig parameterizes the fallback manager (spec.md §4.6).
type FallbackConfig struct {
	MaxAttempts         int           `json:"max_fallback_attempts" yaml:"max_fallback_attempts" env:"MATCH_FALLBACK_MAX_ATTEMPTS" default:"3"`
	Timeout             time.Duration `json:"fallback_timeout" yaml:"fallback_timeout" env:"MATCH_FALLBACK_TIMEOUT" default:"5s"`
	MinimalScoreBase    float64       `json:"minimal_score_base" yaml:"minimal_score_base" env:"MATCH_MINIMAL_SCORE_BASE" default:"0.3"`
	MinimalScoreEpsilon float64       `json:"minimal_score_epsilon" yaml:"minimal_score_epsilon" env:"MATCH_MINIMAL_SCORE_EPSILON" default:"0.001"`
	DegradedConfidence  float64       `json:"degraded_confidence" yaml:"degraded_confidence" env:"MATCH_DEGRADED_CONFIDENCE" default:"0.6"`
	RetryAttempts       int           `json:"retry_attempts" yaml:"retry_attempts" env:"MATCH_FALLBACK_RETRY_ATTEMPTS" default:"2"`
	RetryInitialDelay   time.Duration `json:"retry_initial_delay" yaml:"retry_initial_delay" env:"MATCH_FALLBACK_RETRY_DELAY" default:"20ms"`
}

// MonitorConfig parameterizes the performance monitor (spec.md §4.7).
type MonitorConfig struct {
	RingSize            int           `json:"ring_size" yaml:"ring_size" env:"MATCH_MONITOR_RING_SIZE" default:"10000"`
	LatencySampleSize   int           `json:"latency_sample_size" yaml:"latency_sample_size" env:"MATCH_MONITOR_LATENCY_SAMPLES" default:"100"`
	RPMBuckets          int           `json:"rpm_buckets" yaml:"rpm_buckets" env:"MATCH_MONITOR_RPM_BUCKETS" default:"60"`
	RPMBucketWidth      time.Duration `json:"rpm_bucket_width" yaml:"rpm_bucket_width" env:"MATCH_MONITOR_RPM_BUCKET_WIDTH" default:"1s"`
	ErrorRateWarning    float64       `json:"error_rate_warning" yaml:"error_rate_warning" env:"MATCH_MONITOR_ERR_WARN" default:"0.02"`
	ErrorRateCritical   float64       `json:"error_rate_critical" yaml:"error_rate_critical" env:"MATCH_MONITOR_ERR_CRIT" default:"0.05"`
	P95WarningMs        int           `json:"p95_warning_ms" yaml:"p95_warning_ms" env:"MATCH_MONITOR_P95_WARN_MS" default:"120"`
	P95CriticalMs       int           `json:"p95_critical_ms" yaml:"p95_critical_ms" env:"MATCH_MONITOR_P95_CRIT_MS" default:"150"`
	SuccessRateCritical float64       `json:"success_rate_critical" yaml:"success_rate_critical" env:"MATCH_MONITOR_SUCCESS_CRIT" default:"0.9"`
	AlertCooldown       time.Duration `json:"alert_cooldown" yaml:"alert_cooldown" env:"MATCH_MONITOR_ALERT_COOLDOWN" default:"5m"`
}

// ContextWeightsConfig exposes the weighting constants the context
// analyzer uses (spec.md §4.1, supplemented with config-driven selection
// weights). They are set in code (DefaultConfig or assigning the field);
// LoadFromEnv reads no environment variable for them.
type ContextWeightsConfig struct {
	QuestionnaireWeight       float64 `json:"questionnaire_weight" yaml:"questionnaire_weight" default:"0.4"`
	CompanyQuestionnaireWeight float64 `json:"company_questionnaire_weight" yaml:"company_questionnaire_weight" default:"0.3"`
	CVCoverageWeight          float64 `json:"cv_coverage_weight" yaml:"cv_coverage_weight" default:"0.3"`

	CompletenessWeight float64 `json:"complexity_completeness_weight" yaml:"complexity_completeness_weight" default:"0.25"`
	ProfileWeight       float64 `json:"complexity_profile_weight" yaml:"complexity_profile_weight" default:"0.30"`
	GeoWeight           float64 `json:"complexity_geo_weight" yaml:"complexity_geo_weight" default:"0.20"`
	OfferCountWeight    float64 `json:"complexity_offer_weight" yaml:"complexity_offer_weight" default:"0.15"`
	MobilityWeight      float64 `json:"complexity_mobility_weight" yaml:"complexity_mobility_weight" default:"0.10"`
}

// AdapterConfig parameterizes the data adapter (spec.md §4.3).
type AdapterConfig struct {
	CacheSize           int     `json:"cache_size" yaml:"cache_size" env:"MATCH_ADAPTER_CACHE_SIZE" default:"1000"`
	SkillsWeight        float64 `json:"skills_weight" yaml:"skills_weight" default:"0.4"`
	ExperienceWeight    float64 `json:"experience_weight" yaml:"experience_weight" default:"0.3"`
	LocationWeight      float64 `json:"location_weight" yaml:"location_weight" default:"0.2"`
	CultureWeight       float64 `json:"culture_weight" yaml:"culture_weight" default:"0.1"`
	QuestionnaireWeight float64 `json:"questionnaire_weight" yaml:"questionnaire_weight" default:"0.1"`
}

// LoggingConfig controls the ambient ProductionLogger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"MATCH_LOG_LEVEL" default:"info"`
	Format string `json:"format" yaml:"format" env:"MATCH_LOG_FORMAT" default:"json"`
	Output string `json:"output" yaml:"output" env:"MATCH_LOG_OUTPUT" default:"stdout"`
}

// DevelopmentConfig flips on debug logging and other developer conveniences.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled" env:"MATCH_DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" yaml:"debug_logging" env:"MATCH_DEBUG" default:"false"`
}

// TelemetryConfig controls the optional OpenTelemetry export pipeline
// (traces and metrics over OTLP/HTTP). Disabled by default so the service
// runs with no collector dependency until one is configured.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" env:"MATCH_TELEMETRY_ENABLED" default:"false"`
	Endpoint string `json:"endpoint" yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
}

// Option is a functional option applied after defaults and environment
// variables, so it always wins.
type Option func(*Config) error

// WithPort overrides the HTTP listen port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidRequest, port)
		}
		c.Port = port
		return nil
	}
}

// WithLogger installs a pre-built logger instead of constructing a
// ProductionLogger from LoggingConfig.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// WithDefaultAlgorithm forces the orchestrator's default algorithm id for
// requests that do not specify one explicitly.
func WithDefaultAlgorithm(id string) Option {
	return func(c *Config) error {
		c.Orchestrator.DefaultAlgorithm = id
		return nil
	}
}

// WithDevelopmentMode turns on debug logging and human-readable output.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.DebugLogging = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// DefaultConfig returns a configuration with sensible defaults, matching
// the `default:"..."` struct tags above.
func DefaultConfig() *Config {
	return &Config{
		Name: "supersmartmatch",
		Port: 8080,
		HTTP: HTTPConfig{
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			DefaultAlgorithm:  "auto",
			EnableFallback:    true,
			MaxResults:        50,
			MaxResponseTimeMs: 100,
			CallTimeout:       80 * time.Millisecond,
		},
		Resilience: ResilienceConfig{
			FailureThreshold:   5,
			RecoveryTimeout:    30 * time.Second,
			SuccessThreshold:   3,
			CallTimeout:        80 * time.Millisecond,
			SlowCallThreshold:  60 * time.Millisecond,
			MaxParallelPerAlgo: 10,
		},
		Fallback: FallbackConfig{
			MaxAttempts:         3,
			Timeout:             5 * time.Second,
			MinimalScoreBase:    0.3,
			MinimalScoreEpsilon: 0.001,
			DegradedConfidence:  0.6,
			RetryAttempts:       2,
			RetryInitialDelay:   20 * time.Millisecond,
		},
		Monitor: MonitorConfig{
			RingSize:            10000,
			LatencySampleSize:   100,
			RPMBuckets:          60,
			RPMBucketWidth:      time.Second,
			ErrorRateWarning:    0.02,
			ErrorRateCritical:   0.05,
			P95WarningMs:        120,
			P95CriticalMs:       150,
			SuccessRateCritical: 0.9,
			AlertCooldown:       5 * time.Minute,
		},
		ContextWeights: ContextWeightsConfig{
			QuestionnaireWeight:        0.4,
			CompanyQuestionnaireWeight: 0.3,
			CVCoverageWeight:           0.3,
			CompletenessWeight:         0.25,
			ProfileWeight:              0.30,
			GeoWeight:                  0.20,
			OfferCountWeight:           0.15,
			MobilityWeight:             0.10,
		},
		Adapter: AdapterConfig{
			CacheSize:           1000,
			SkillsWeight:        0.4,
			ExperienceWeight:    0.3,
			LocationWeight:      0.2,
			CultureWeight:       0.1,
			QuestionnaireWeight: 0.1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "localhost:4318",
		},
	}
}

// LoadFromEnv overlays environment variables named by the `env:"..."` tags
// documented above. It only touches the handful of scalar knobs operators
// actually need to flip without a redeploy; nested weight configs are
// deliberately code-only.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("MATCH_SERVICE_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv("MATCH_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MATCH_PORT %q: %w", v, err)
		}
		c.Port = p
	}
	if v := os.Getenv("MATCH_DEFAULT_ALGORITHM"); v != "" {
		c.Orchestrator.DefaultAlgorithm = v
	}
	if v := os.Getenv("MATCH_ENABLE_FALLBACK"); v != "" {
		c.Orchestrator.EnableFallback = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MATCH_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MATCH_MAX_RESULTS %q: %w", v, err)
		}
		c.Orchestrator.MaxResults = n
	}
	if v := os.Getenv("MATCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MATCH_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("MATCH_DEV_MODE"); v != "" {
		c.Development.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MATCH_DEBUG"); v != "" {
		c.Development.DebugLogging = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MATCH_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}
	return nil
}

// Validate rejects a configuration that cannot produce a working service.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalidRequest)
	}
	if c.Orchestrator.MaxResults <= 0 {
		return fmt.Errorf("%w: orchestrator.max_results must be positive", ErrInvalidRequest)
	}
	if c.Resilience.FailureThreshold <= 0 {
		return fmt.Errorf("%w: resilience.failure_threshold must be positive", ErrInvalidRequest)
	}
	if c.Fallback.MaxAttempts <= 0 {
		return fmt.Errorf("%w: fallback.max_fallback_attempts must be positive", ErrInvalidRequest)
	}
	return nil
}

// NewConfig builds a Config from defaults, environment variables, and
// functional options, in that priority order, then validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Logger returns the configuration's logger, constructing a NoOpLogger if
// none has been set (e.g. a Config built directly with &Config{} in tests).
func (c *Config) Logger() Logger {
	if c.logger == nil {
		return &NoOpLogger{}
	}
	return c.logger
}

// ============================================================================
// ProductionLogger — layered observability matching the framework's design:
// human or JSON rendering, optional metric emission once a MetricsRegistry
// is installed via SetMetricsRegistry.
// ============================================================================

// ProductionLogger renders structured log lines and optionally forwards a
// low-cardinality counter to the global MetricsRegistry.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer

	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:          strings.ToLower(logging.Level),
		debug:          dev.DebugLogging || logging.Level == "debug",
		serviceName:    serviceName,
		format:         logging.Format,
		output:         output,
		metricsEnabled: false,
	}
}

// EnableMetrics is called once a MetricsRegistry becomes available.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

func (p *ProductionLogger) WithComponent(component string) Logger {
	return &componentLogger{parent: p, component: component}
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", "", msg, fields)
}
func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", "", msg, fields)
}
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", "", msg, fields)
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", "", msg, fields)
}
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", "", msg, fields)
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", "", msg, fields)
}
func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", "", msg, fields)
	}
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", "", msg, fields)
	}
}

func (p *ProductionLogger) logEvent(level, component, msg string, fields map[string]interface{}) {
	timestamp := time.Now().Format(time.RFC3339)

	if component == "" {
		component = "orchestrator"
	}

	if p.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": component,
			"message":   msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}
		fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s\n",
			timestamp, level, p.serviceName, component, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, component, fields)
	}
}

func (p *ProductionLogger) emitFrameworkMetric(level, component string, fields map[string]interface{}) {
	registry := GetGlobalMetricsRegistry()
	if registry == nil {
		return
	}
	labels := []string{"level", level, "service", p.serviceName, "component", component}
	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "algorithm":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}
	registry.Counter("supersmartmatch.log.events", labels...)
}

// componentLogger tags every call with a fixed component name, matching
// the framework's ComponentAwareLogger contract.
type componentLogger struct {
	parent    *ProductionLogger
	component string
}

func (c *componentLogger) Info(msg string, fields map[string]interface{}) {
	c.parent.logEvent("INFO", c.component, msg, fields)
}
func (c *componentLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.parent.logEvent("INFO", c.component, msg, fields)
}
func (c *componentLogger) Error(msg string, fields map[string]interface{}) {
	c.parent.logEvent("ERROR", c.component, msg, fields)
}
func (c *componentLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.parent.logEvent("ERROR", c.component, msg, fields)
}
func (c *componentLogger) Warn(msg string, fields map[string]interface{}) {
	c.parent.logEvent("WARN", c.component, msg, fields)
}
func (c *componentLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.parent.logEvent("WARN", c.component, msg, fields)
}
func (c *componentLogger) Debug(msg string, fields map[string]interface{}) {
	if c.parent.debug {
		c.parent.logEvent("DEBUG", c.component, msg, fields)
	}
}
func (c *componentLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.parent.debug {
		c.parent.logEvent("DEBUG", c.component, msg, fields)
	}
}

func (c *componentLogger) WithComponent(component string) Logger {
	return &componentLogger{parent: c.parent, component: component}
}
