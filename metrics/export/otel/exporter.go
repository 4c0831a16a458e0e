package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/marketauth"
	"github.com/MrEthical07/marketauth/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() marketauth.MetricsSnapshot
	AuditDropped() uint64
}

// sample is what one collection pass reads from the engine.
type sample struct {
	snapshot     marketauth.MetricsSnapshot
	auditDropped uint64
}

// reading pairs an instrument with the value it reports from a sample.
type reading struct {
	instrument metric.Int64Observable
	value      func(sample) int64
}

// OTelExporter observes engine metrics from a single registered callback.
// Latency histograms are exposed as cumulative per-bound gauges plus a
// sample count.
type OTelExporter struct {
	registration metric.Registration
}

func NewOTelExporter(meter metric.Meter, engine *marketauth.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	readings, err := counterReadings(meter)
	if err != nil {
		return nil, err
	}
	for _, def := range internaldefs.HistogramDefs {
		hr, err := histogramReadings(meter, def)
		if err != nil {
			return nil, err
		}
		readings = append(readings, hr...)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	readings = append(readings, reading{
		instrument: dropped,
		value:      func(s sample) int64 { return int64(s.auditDropped) },
	})

	observables := make([]metric.Observable, len(readings))
	for i, r := range readings {
		observables[i] = r.instrument
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := sample{snapshot: source.MetricsSnapshot(), auditDropped: source.AuditDropped()}
		for _, r := range readings {
			o.ObserveInt64(r.instrument, r.value(s))
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return &OTelExporter{registration: registration}, nil
}

func counterReadings(meter metric.Meter) ([]reading, error) {
	out := make([]reading, 0, len(internaldefs.CounterDefs))
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		id := def.ID
		out = append(out, reading{
			instrument: ins,
			value:      func(s sample) int64 { return int64(s.snapshot.Counters[id]) },
		})
	}
	return out, nil
}

func histogramReadings(meter metric.Meter, def internaldefs.HistogramDef) ([]reading, error) {
	id := def.ID
	cumulative := func(s sample) [8]uint64 {
		return internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(s.snapshot.Histograms[id]))
	}

	out := make([]reading, 0, len(internaldefs.HistogramBoundSuffix)+1)
	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := def.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
		}
		bucket := i
		out = append(out, reading{
			instrument: ins,
			value:      func(s sample) int64 { return int64(cumulative(s)[bucket]) },
		})
	}

	name := def.Name + "_count"
	count, err := meter.Int64ObservableGauge(name, metric.WithDescription("Histogram total sample count."))
	if err != nil {
		return nil, fmt.Errorf("create histogram count gauge %s: %w", name, err)
	}
	out = append(out, reading{
		instrument: count,
		value: func(s sample) int64 {
			c := cumulative(s)
			return int64(c[len(c)-1])
		},
	})
	return out, nil
}

// Close unregisters the callback. The instruments stay with the meter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
