// Package monitor implements spec.md §4.7: rolling latency percentiles,
// success rate, requests-per-minute, and threshold-based alerting per
// algorithm, plus the SPEC_FULL.md supplemented A/B testing assignment
// and significance summary.
package monitor

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/types"
)

// Config parameterizes alert thresholds and window sizes. Mirrors
// core.MonitorConfig.
type Config struct {
	RingSize            int
	LatencySampleSize    int
	RPMBuckets           int
	RPMBucketWidth       time.Duration
	ErrorRateWarning     float64
	ErrorRateCritical    float64
	P95WarningMs         float64
	P95CriticalMs        float64
	SuccessRateCritical  float64
	AlertCooldown        time.Duration
}

type algoStats struct {
	mu sync.Mutex

	total   int64
	success int64

	latencies []time.Duration // ring, most-recent-last, capped at RingSize

	resultCounts []int // recent result-set sizes, for the average

	rpmBuckets []rpmBucket

	lastAlert map[string]time.Time // metric name -> last fired
}

type rpmBucket struct {
	start time.Time
	count int
}

// Monitor aggregates per-algorithm call outcomes and exposes the rolling
// statistics spec.md §4.7 requires, plus alert evaluation.
type Monitor struct {
	cfg    Config
	logger core.Logger

	mu    sync.Mutex
	stats map[types.AlgorithmID]*algoStats
}

// New builds a Monitor with one stats bucket per known algorithm.
func New(cfg Config, logger core.Logger) *Monitor {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 100
	}
	if cfg.RPMBuckets <= 0 {
		cfg.RPMBuckets = 60
	}
	if cfg.RPMBucketWidth <= 0 {
		cfg.RPMBucketWidth = time.Second
	}
	m := &Monitor{cfg: cfg, logger: logger, stats: make(map[types.AlgorithmID]*algoStats)}
	for _, id := range types.AllAlgorithms {
		m.stats[id] = &algoStats{lastAlert: make(map[string]time.Time)}
	}
	return m
}

func (m *Monitor) statsFor(algo types.AlgorithmID) *algoStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stats[algo]
	if !ok {
		s = &algoStats{lastAlert: make(map[string]time.Time)}
		m.stats[algo] = s
	}
	return s
}

// Record logs the outcome of one algorithm call: whether it succeeded,
// how long it took, and (on success) how many results it returned.
func (m *Monitor) Record(algo types.AlgorithmID, success bool, elapsed time.Duration, resultCount int, now time.Time) {
	s := m.statsFor(algo)

	s.mu.Lock()
	s.total++
	if success {
		s.success++
		s.latencies = append(s.latencies, elapsed)
		if len(s.latencies) > m.cfg.RingSize {
			s.latencies = s.latencies[len(s.latencies)-m.cfg.RingSize:]
		}
		s.resultCounts = append(s.resultCounts, resultCount)
		if len(s.resultCounts) > m.cfg.RingSize {
			s.resultCounts = s.resultCounts[len(s.resultCounts)-m.cfg.RingSize:]
		}
	}
	s.rpmBuckets = appendRPM(s.rpmBuckets, now, m.cfg.RPMBuckets, m.cfg.RPMBucketWidth)
	s.mu.Unlock()

	m.evaluateAlerts(algo, s, now)
}

func appendRPM(buckets []rpmBucket, now time.Time, maxBuckets int, width time.Duration) []rpmBucket {
	if len(buckets) > 0 && now.Sub(buckets[len(buckets)-1].start) < width {
		buckets[len(buckets)-1].count++
		return buckets
	}
	buckets = append(buckets, rpmBucket{start: now, count: 1})
	cutoff := now.Add(-width * time.Duration(maxBuckets))
	i := 0
	for i < len(buckets) && buckets[i].start.Before(cutoff) {
		i++
	}
	return buckets[i:]
}

// Percentile returns the p-th percentile latency (ms) over the recent
// ring of successful calls for algo, or -1 if no samples exist.
func (m *Monitor) Percentile(algo types.AlgorithmID, p int) float64 {
	s := m.statsFor(algo)
	s.mu.Lock()
	samples := append([]time.Duration(nil), s.latencies...)
	s.mu.Unlock()

	if len(samples) == 0 {
		return -1
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	idx := (p * (len(samples) - 1)) / 100
	return float64(samples[idx].Microseconds()) / 1000.0
}

// P95Millis implements selector.HealthView.
func (m *Monitor) P95Millis(algo types.AlgorithmID) float64 { return m.Percentile(algo, 95) }

// SuccessRate implements selector.HealthView (and CircuitOpenChecker is
// satisfied separately by resilience.Manager; Monitor only tracks rates).
func (m *Monitor) SuccessRate(algo types.AlgorithmID) float64 {
	s := m.statsFor(algo)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total == 0 {
		return -1
	}
	return float64(s.success) / float64(s.total)
}

// CircuitOpen always reports false: Monitor does not own circuit state,
// it is only consulted for latency/success-rate signals. Callers that
// need circuit state compose selector.HealthView from resilience.Manager
// instead.
func (m *Monitor) CircuitOpen(types.AlgorithmID) bool { return false }

// RPM returns requests observed in the trailing RPMBuckets*RPMBucketWidth
// window for algo.
func (m *Monitor) RPM(algo types.AlgorithmID, now time.Time) int {
	s := m.statsFor(algo)
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-m.cfg.RPMBucketWidth * time.Duration(m.cfg.RPMBuckets))
	total := 0
	for _, b := range s.rpmBuckets {
		if !b.start.Before(cutoff) {
			total += b.count
		}
	}
	return total
}

// AverageResultCount returns the mean size of recent successful result
// sets for algo.
func (m *Monitor) AverageResultCount(algo types.AlgorithmID) float64 {
	s := m.statsFor(algo)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.resultCounts) == 0 {
		return 0
	}
	sum := 0
	for _, c := range s.resultCounts {
		sum += c
	}
	return float64(sum) / float64(len(s.resultCounts))
}

// Alert describes one threshold breach.
type Alert struct {
	Algorithm types.AlgorithmID
	Metric    string
	Severity  string
	Value     float64
	Threshold float64
	At        time.Time
}

func (m *Monitor) evaluateAlerts(algo types.AlgorithmID, s *algoStats, now time.Time) {
	s.mu.Lock()
	total, success := s.total, s.success
	s.mu.Unlock()

	if total < 10 {
		return // avoid noisy alerts on a cold start
	}

	errorRate := 1 - float64(success)/float64(total)
	m.maybeAlert(algo, s, "error_rate", errorRate, m.cfg.ErrorRateCritical, m.cfg.ErrorRateWarning, now, true)

	if p95 := m.Percentile(algo, 95); p95 >= 0 {
		m.maybeAlert(algo, s, "p95_latency_ms", p95, m.cfg.P95CriticalMs, m.cfg.P95WarningMs, now, true)
	}

	successRate := float64(success) / float64(total)
	if m.cfg.SuccessRateCritical > 0 && successRate < m.cfg.SuccessRateCritical {
		m.maybeAlert(algo, s, "success_rate", successRate, m.cfg.SuccessRateCritical, m.cfg.SuccessRateCritical, now, false)
	}
}

// maybeAlert logs (at most once per AlertCooldown per metric) when value
// breaches warn/critical. higherIsWorse controls the comparison direction.
func (m *Monitor) maybeAlert(algo types.AlgorithmID, s *algoStats, metric string, value, critical, warning float64, now time.Time, higherIsWorse bool) {
	breached := false
	severity := "warning"
	threshold := warning
	if higherIsWorse {
		if value >= critical {
			breached, severity, threshold = true, "critical", critical
		} else if value >= warning {
			breached, severity, threshold = true, "warning", warning
		}
	} else if value <= critical {
		breached, severity, threshold = true, "critical", critical
	}
	if !breached {
		return
	}

	s.mu.Lock()
	last, seen := s.lastAlert[metric]
	if seen && now.Sub(last) < m.cfg.AlertCooldown {
		s.mu.Unlock()
		return
	}
	s.lastAlert[metric] = now
	s.mu.Unlock()

	m.logger.Error("performance alert", map[string]interface{}{
		"algorithm": string(algo),
		"metric":    metric,
		"severity":  severity,
		"value":     value,
		"threshold": threshold,
	})
}

// AssignVariant deterministically assigns userID to the "b" variant when
// stable_hash(userID) mod 100 / 100 < splitFraction, else "a" — a stable
// hash so the same user always lands in the same bucket.
func AssignVariant(userID string, splitFraction float64) string {
	if userID == "" || splitFraction <= 0 {
		return "a"
	}
	sum := sha256.Sum256([]byte(userID))
	bucket := binary.BigEndian.Uint64(sum[:8]) % 100
	if float64(bucket)/100.0 < splitFraction {
		return "b"
	}
	return "a"
}

// ABSummary is a coarse significance summary between two algorithms'
// observed success rates, used by the A/B status endpoint.
type ABSummary struct {
	VariantA, VariantB                 types.AlgorithmID
	SuccessRateA, SuccessRateB         float64
	SampleSizeA, SampleSizeB           int64
	Delta                              float64
	SufficientSample                   bool
}

// Counter implements core.MetricsRegistry, so Monitor can be installed via
// core.SetMetricsRegistry and receive low-cardinality counters forwarded
// from ProductionLogger.logEvent without core importing this package.
func (m *Monitor) Counter(name string, labels ...string) {
	m.logger.Debug("metric counter", map[string]interface{}{"name": name, "labels": labels})
}

// Gauge implements core.MetricsRegistry.
func (m *Monitor) Gauge(name string, value float64, labels ...string) {
	m.logger.Debug("metric gauge", map[string]interface{}{"name": name, "value": value, "labels": labels})
}

// Histogram implements core.MetricsRegistry.
func (m *Monitor) Histogram(name string, value float64, labels ...string) {
	m.logger.Debug("metric histogram", map[string]interface{}{"name": name, "value": value, "labels": labels})
}

// Compare produces an ABSummary for two algorithms currently running
// concurrently, e.g. a primary vs. a candidate replacement.
func (m *Monitor) Compare(a, b types.AlgorithmID) ABSummary {
	sa, sb := m.statsFor(a), m.statsFor(b)

	sa.mu.Lock()
	totalA, successA := sa.total, sa.success
	sa.mu.Unlock()

	sb.mu.Lock()
	totalB, successB := sb.total, sb.success
	sb.mu.Unlock()

	rateA, rateB := 0.0, 0.0
	if totalA > 0 {
		rateA = float64(successA) / float64(totalA)
	}
	if totalB > 0 {
		rateB = float64(successB) / float64(totalB)
	}

	return ABSummary{
		VariantA: a, VariantB: b,
		SuccessRateA: rateA, SuccessRateB: rateB,
		SampleSizeA: totalA, SampleSizeB: totalB,
		Delta:             rateB - rateA,
		SufficientSample:  totalA >= 30 && totalB >= 30,
	}
}
