package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// instruments holds what one family is observed through. Counters use
// counter; histograms are flattened to one gauge per bucket plus a count.
type instruments struct {
	counter metric.Int64ObservableCounter
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes Engine metrics as observable instruments on a caller-owned meter.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration
	// parallel to internaldefs.Descriptors()
	families []instruments
}

// NewOTelExporter registers instruments that read engine on each collection.
func NewOTelExporter(meter metric.Meter, engine *goSession.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments that read source on each collection.
func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	descs := internaldefs.Descriptors()
	e := &OTelExporter{source: source, families: make([]instruments, len(descs))}

	var observables []metric.Observable
	for i, d := range descs {
		ins, obs, err := register(meter, d)
		if err != nil {
			return nil, err
		}
		e.families[i] = ins
		observables = append(observables, obs...)
	}

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func register(meter metric.Meter, d internaldefs.Descriptor) (instruments, []metric.Observable, error) {
	var ins instruments
	if d.Kind == internaldefs.KindCounter {
		c, err := meter.Int64ObservableCounter(d.Name, metric.WithDescription(d.Help))
		if err != nil {
			return ins, nil, fmt.Errorf("counter %s: %w", d.Name, err)
		}
		ins.counter = c
		return ins, []metric.Observable{c}, nil
	}

	obs := make([]metric.Observable, 0, len(ins.buckets)+1)
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := d.Name + "_bucket_le_" + suffix
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription(d.Help+" Cumulative bucket count."))
		if err != nil {
			return ins, nil, fmt.Errorf("bucket gauge %s: %w", name, err)
		}
		ins.buckets[i] = g
		obs = append(obs, g)
	}
	g, err := meter.Int64ObservableGauge(d.Name+"_count", metric.WithDescription(d.Help+" Sample count."))
	if err != nil {
		return ins, nil, fmt.Errorf("count gauge %s_count: %w", d.Name, err)
	}
	ins.count = g
	return ins, append(obs, g), nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	families, ok := internaldefs.Collect(e.source)
	if !ok {
		return nil
	}
	for i, f := range families {
		ins := e.families[i]
		if f.Kind == internaldefs.KindCounter {
			o.ObserveInt64(ins.counter, int64(f.Value))
			continue
		}
		for b, v := range f.Buckets {
			o.ObserveInt64(ins.buckets[b], int64(v))
		}
		o.ObserveInt64(ins.count, int64(f.Count()))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
