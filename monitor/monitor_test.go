package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bapt252/supersmartmatch/types"
)

func testConfig() Config {
	return Config{
		RingSize:            100,
		RPMBuckets:          60,
		RPMBucketWidth:      time.Second,
		ErrorRateWarning:    0.2,
		ErrorRateCritical:   0.5,
		P95WarningMs:        50,
		P95CriticalMs:       100,
		SuccessRateCritical: 0.5,
		AlertCooldown:       time.Minute,
	}
}

func TestRecordTracksSuccessRate(t *testing.T) {
	m := New(testConfig(), nil)
	now := time.Now()

	m.Record(types.AlgorithmNexten, true, 10*time.Millisecond, 5, now)
	m.Record(types.AlgorithmNexten, false, 10*time.Millisecond, 0, now)

	assert.InDelta(t, 0.5, m.SuccessRate(types.AlgorithmNexten), 0.001)
}

func TestSuccessRateNoDataIsNegativeOne(t *testing.T) {
	m := New(testConfig(), nil)
	assert.Equal(t, -1.0, m.SuccessRate(types.AlgorithmNexten))
}

func TestPercentileNoDataIsNegativeOne(t *testing.T) {
	m := New(testConfig(), nil)
	assert.Equal(t, -1.0, m.Percentile(types.AlgorithmNexten, 95))
}

func TestPercentileReflectsRecentLatencies(t *testing.T) {
	m := New(testConfig(), nil)
	now := time.Now()
	for _, ms := range []int{10, 20, 30, 40, 50} {
		m.Record(types.AlgorithmNexten, true, time.Duration(ms)*time.Millisecond, 1, now)
	}

	p50 := m.Percentile(types.AlgorithmNexten, 50)
	assert.InDelta(t, 30, p50, 1)
}

func TestRPMCountsWithinWindow(t *testing.T) {
	m := New(testConfig(), nil)
	now := time.Now()
	for i := 0; i < 5; i++ {
		m.Record(types.AlgorithmNexten, true, time.Millisecond, 1, now.Add(time.Duration(i)*time.Millisecond))
	}

	assert.Equal(t, 5, m.RPM(types.AlgorithmNexten, now.Add(time.Second)))
}

func TestAverageResultCount(t *testing.T) {
	m := New(testConfig(), nil)
	now := time.Now()
	m.Record(types.AlgorithmNexten, true, time.Millisecond, 4, now)
	m.Record(types.AlgorithmNexten, true, time.Millisecond, 6, now)

	assert.InDelta(t, 5.0, m.AverageResultCount(types.AlgorithmNexten), 0.001)
}

func TestAssignVariantIsStable(t *testing.T) {
	a1 := AssignVariant("user-42", 0.5)
	a2 := AssignVariant("user-42", 0.5)
	assert.Equal(t, a1, a2)
}

func TestAssignVariantEmptyUserDefaultsToA(t *testing.T) {
	assert.Equal(t, "a", AssignVariant("", 0.5))
}

func TestCompareReportsSampleSufficiency(t *testing.T) {
	m := New(testConfig(), nil)
	now := time.Now()
	for i := 0; i < 40; i++ {
		m.Record(types.AlgorithmNexten, true, time.Millisecond, 1, now)
		m.Record(types.AlgorithmSmart, i%2 == 0, time.Millisecond, 1, now)
	}

	summary := m.Compare(types.AlgorithmNexten, types.AlgorithmSmart)
	require.True(t, summary.SufficientSample)
	assert.InDelta(t, 1.0, summary.SuccessRateA, 0.001)
	assert.InDelta(t, 0.5, summary.SuccessRateB, 0.05)
}

func TestMonitorImplementsMetricsRegistry(t *testing.T) {
	m := New(testConfig(), nil)
	m.Counter("test.counter", "label", "value")
	m.Gauge("test.gauge", 1.0, "label", "value")
	m.Histogram("test.histogram", 1.0, "label", "value")
}
