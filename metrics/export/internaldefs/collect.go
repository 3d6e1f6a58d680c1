package internaldefs

import goSession "github.com/MrEthical07/goSession"

// Source is what the exporters read on every scrape or collection.
type Source interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
	AuditSinkPanics() uint64
}

type Kind uint8

const (
	KindCounter Kind = iota
	KindHistogram
)

// Descriptor is the static shape of one exported family.
type Descriptor struct {
	Name string
	Help string
	Kind Kind
}

// Family is one descriptor with its values at collection time. Buckets are
// cumulative and only set for histograms.
type Family struct {
	Descriptor
	Value   uint64
	Buckets [8]uint64
}

// Count is the histogram sample count, the +Inf bucket.
func (f Family) Count() uint64 {
	return f.Buckets[len(f.Buckets)-1]
}

var auditDefs = []Descriptor{
	{Name: "gosession_audit_dropped_total", Help: "Dropped audit events due to dispatcher backpressure.", Kind: KindCounter},
	{Name: "gosession_audit_sink_panics_total", Help: "Audit events lost to a panicking sink.", Kind: KindCounter},
}

// Descriptors lists every family in the order Collect returns them.
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(CounterDefs)+len(HistogramDefs)+len(auditDefs))
	for _, d := range CounterDefs {
		out = append(out, Descriptor{Name: d.Name, Help: d.Help, Kind: KindCounter})
	}
	for _, d := range HistogramDefs {
		out = append(out, Descriptor{Name: d.Name, Help: d.Help, Kind: KindHistogram})
	}
	return append(out, auditDefs...)
}

// Collect reads src once. It returns false when nothing has been recorded,
// which is always the case while Engine metrics are disabled.
func Collect(src Source) ([]Family, bool) {
	snap := src.MetricsSnapshot()
	dropped, panics := src.AuditDropped(), src.AuditSinkPanics()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 && panics == 0 {
		return nil, false
	}

	descs := Descriptors()
	out := make([]Family, len(descs))
	i := 0
	for _, d := range CounterDefs {
		out[i] = Family{Descriptor: descs[i], Value: snap.Counters[d.ID]}
		i++
	}
	for _, d := range HistogramDefs {
		out[i] = Family{Descriptor: descs[i], Buckets: CumulativeBuckets(NormalizeBuckets(snap.Histograms[d.ID]))}
		i++
	}
	out[i] = Family{Descriptor: descs[i], Value: dropped}
	out[i+1] = Family{Descriptor: descs[i+1], Value: panics}
	return out, true
}
