package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one Engine counter for export.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one Engine histogram for export.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Sessions issued by CreateNewSession."},
	{ID: goSession.MetricSessionCreateExhausted, Name: "gosession_session_create_exhausted_total", Help: "Session creations that ran out of token candidates."},
	{ID: goSession.MetricSessionCreateCollision, Name: "gosession_session_create_collision_total", Help: "Candidate tokens that already existed."},
	{ID: goSession.MetricSessionLookupHit, Name: "gosession_session_lookup_hit_total", Help: "Session lookups that resolved to a user."},
	{ID: goSession.MetricSessionLookupMiss, Name: "gosession_session_lookup_miss_total", Help: "Session lookups for absent or expired tokens."},
	{ID: goSession.MetricSessionLookupCorrupt, Name: "gosession_session_lookup_corrupt_total", Help: "Session lookups that found unparsable fields."},
	{ID: goSession.MetricSessionLookupStale, Name: "gosession_session_lookup_stale_total", Help: "Session lookups whose user no longer exists."},
	{ID: goSession.MetricSessionDeleted, Name: "gosession_session_deleted_total", Help: "Explicit session deletions."},
	{ID: goSession.MetricSessionInvalidated, Name: "gosession_session_invalidated_total", Help: "Previous sessions replaced by a new login."},
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful login attempts."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed login attempts."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout operations."},
	{ID: goSession.MetricAuthorizeAllowed, Name: "gosession_authorize_allowed_total", Help: "Requests admitted with an identity."},
	{ID: goSession.MetricAuthorizeAnonymous, Name: "gosession_authorize_anonymous_total", Help: "Requests admitted anonymously."},
	{ID: goSession.MetricAuthorizeRejected, Name: "gosession_authorize_rejected_total", Help: "Requests rejected by the gate."},
	{ID: goSession.MetricStoreFailure, Name: "gosession_store_failure_total", Help: "Session store round trips that failed in transport."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricSessionLookupLatency, Name: "gosession_session_lookup_latency_seconds", Help: "Session lookup latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the Engine latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for use in metric names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into the running totals exporters expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
