package goSession

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsCountersRespectEnabled(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		incs    int
		want    uint64
	}{
		{"disabled", false, 3, 0},
		{"enabled", true, 3, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMetrics(MetricsConfig{Enabled: tc.enabled})
			for i := 0; i < tc.incs; i++ {
				m.Inc(MetricLoginSuccess)
			}
			if got := m.Value(MetricLoginSuccess); got != tc.want {
				t.Fatalf("Value = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMetricsNilIsInert(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricSessionLookupLatency, time.Millisecond)
	if m.Enabled() || m.Value(MetricLogout) != 0 {
		t.Fatal("nil Metrics must read as disabled and zero")
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("nil snapshot not empty: %+v", snap)
	}
}

func TestMetricsOutOfRangeIDIgnored(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(metricIDCount)
	m.Inc(metricIDCount + 7)
	if got := m.Value(metricIDCount); got != 0 {
		t.Fatalf("out of range id read %d", got)
	}
}

func TestMetricsParallelIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, each = 16, 5000
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				m.Inc(MetricSessionLookupHit)
				m.Observe(MetricSessionLookupLatency, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricSessionLookupHit); got != workers*each {
		t.Fatalf("hits = %d, want %d", got, workers*each)
	}
}

func TestLatencyBucketBoundaries(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{5*time.Millisecond + 900*time.Microsecond, 0},
		{6 * time.Millisecond, 1},
		{10 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{26 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{501 * time.Millisecond, 7},
		{time.Minute, 7},
	}
	for _, tc := range tests {
		if got := latencyBucket(tc.d); got != tc.want {
			t.Errorf("latencyBucket(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)
	m.Observe(MetricSessionLookupLatency, 2*time.Millisecond)
	m.Observe(MetricSessionLookupLatency, time.Second)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("expected every counter in snapshot, got %d", len(snap.Counters))
	}
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("only the lookup latency histogram has buckets")
	}
	buckets := snap.Histograms[MetricSessionLookupLatency]
	if len(buckets) != latencyBuckets || buckets[0] != 1 || buckets[latencyBuckets-1] != 1 {
		t.Fatalf("unexpected buckets %v", buckets)
	}

	// the snapshot is a copy
	buckets[0] = 99
	if m.Snapshot().Histograms[MetricSessionLookupLatency][0] != 1 {
		t.Fatal("snapshot aliases live buckets")
	}
}

func TestMetricsLatencyNeedsBothFlags(t *testing.T) {
	for _, cfg := range []MetricsConfig{
		{Enabled: true},
		{EnableLatencyHistograms: true},
	} {
		m := NewMetrics(cfg)
		m.Observe(MetricSessionLookupLatency, time.Millisecond)
		if _, ok := m.Snapshot().Histograms[MetricSessionLookupLatency]; ok {
			t.Fatalf("%+v: histogram must be absent", cfg)
		}
	}
}

func TestGetSessionObservesLatency(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	h := newMemoryHarness(t, cfg, nil)

	_, _ = h.engine.GetSession(context.Background(), "unknown-token-000")

	var total uint64
	for _, b := range h.engine.MetricsSnapshot().Histograms[MetricSessionLookupLatency] {
		total += b
	}
	if total != 1 {
		t.Fatalf("expected one latency observation, got %d", total)
	}
}
