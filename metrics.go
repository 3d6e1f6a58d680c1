package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one Engine counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions issued by CreateNewSession.
	MetricSessionCreated MetricID = iota
	// MetricSessionCreateExhausted counts CreateNewSession calls that ran out of candidates.
	MetricSessionCreateExhausted
	// MetricSessionCreateCollision counts candidate tokens that already existed.
	MetricSessionCreateCollision
	// MetricSessionLookupHit counts lookups that resolved to a user.
	MetricSessionLookupHit
	// MetricSessionLookupMiss counts lookups for absent tokens.
	MetricSessionLookupMiss
	// MetricSessionLookupCorrupt counts lookups that found unparsable fields.
	MetricSessionLookupCorrupt
	// MetricSessionLookupStale counts lookups whose user no longer exists.
	MetricSessionLookupStale
	// MetricSessionDeleted counts explicit session deletions.
	MetricSessionDeleted
	// MetricSessionInvalidated counts previous tokens replaced by a new login.
	MetricSessionInvalidated
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLogout
	// MetricAuthorizeAllowed counts gate decisions that attached an identity.
	MetricAuthorizeAllowed
	// MetricAuthorizeAnonymous counts gate decisions that let an anonymous caller through.
	MetricAuthorizeAnonymous
	// MetricAuthorizeRejected counts gate rejections.
	MetricAuthorizeRejected
	// MetricStoreFailure counts store round trips that failed in transport.
	MetricStoreFailure
	// MetricSessionLookupLatency is the GetSession latency histogram.
	MetricSessionLookupLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the lookup latency buckets.
// Anything slower lands in the final overflow bucket.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const latencyBuckets = len(latencyBounds) + 1

// counterSlot sits alone on a cache line so hot counters do not share one.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free Engine counters. A nil or disabled Metrics ignores updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counterSlot
	lookupLatency [latencyBuckets]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
// Histogram buckets are per-bucket counts, not cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a registry configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the lookup histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records d. MetricSessionLookupLatency is the only histogram; other
// ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricSessionLookupLatency {
		return
	}
	m.lookupLatency[latencyBucket(d)].Add(1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies every counter and, when latency is enabled, the lookup
// histogram. A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}

	for id := range m.counters {
		snap.Counters[MetricID(id)] = m.counters[id].n.Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, latencyBuckets)
		for i := range m.lookupLatency {
			buckets[i] = m.lookupLatency[i].Load()
		}
		snap.Histograms[MetricSessionLookupLatency] = buckets
	}
	return snap
}

func latencyBucket(d time.Duration) int {
	// Whole milliseconds, so 5.9ms still counts as <=5ms.
	d = d.Truncate(time.Millisecond)
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
