package totpgate

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricChallengeIssued)
	m.Inc(MetricChallengeIssued)
	m.Inc(MetricCodeAccepted)

	if got := m.Value(MetricChallengeIssued); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricCodeAccepted); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := m.Value(MetricResumed); got != 0 {
		t.Fatalf("expected untouched counter to be 0, got %d", got)
	}
}

func TestMetricsDisabledNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricChallengeIssued)
	m.Observe(MetricValidatorLatency, 10*time.Millisecond)

	if got := m.Value(MetricChallengeIssued); got != 0 {
		t.Fatalf("disabled metrics must not count, got %d", got)
	}
	snapshot := m.Snapshot()
	if len(snapshot.Counters) != 0 || len(snapshot.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty, got %+v", snapshot)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	samples := []struct {
		d      time.Duration
		bucket int
	}{
		{2 * time.Millisecond, 0},
		{8 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{40 * time.Millisecond, 3},
		{80 * time.Millisecond, 4},
		{200 * time.Millisecond, 5},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, s := range samples {
		m.Observe(MetricValidatorLatency, s.d)
	}

	buckets := m.Snapshot().Histograms[MetricValidatorLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for _, s := range samples {
		if buckets[s.bucket] != 1 {
			t.Fatalf("expected one sample in bucket %d for %v, got %v", s.bucket, s.d, buckets)
		}
	}
}

func TestMetricsObserveWithoutLatencyEnabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Observe(MetricValidatorLatency, 10*time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricValidatorLatency]; ok {
		t.Fatal("latency histogram must stay absent unless enabled")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.Inc(MetricCodeAccepted)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricCodeAccepted); got != goroutines*perGoroutine {
		t.Fatalf("expected %d, got %d", goroutines*perGoroutine, got)
	}
}
