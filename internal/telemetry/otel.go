package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "arena/server/internal/telemetry"

// OtelMetrics forwards Add to monotonic counters and Store to gauges. Each key
// becomes its own instrument named "arena.<key>".
type OtelMetrics struct {
	meter metric.Meter

	mu       sync.Mutex
	counters map[string]metric.Int64Counter
	gauges   map[string]metric.Int64Gauge
	onError  func(error)
}

// NewOtelMetrics binds to the supplied meter, or the global meter provider
// when meter is nil.
func NewOtelMetrics(meter metric.Meter, onError func(error)) *OtelMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	return &OtelMetrics{
		meter:    meter,
		counters: make(map[string]metric.Int64Counter),
		gauges:   make(map[string]metric.Int64Gauge),
		onError:  onError,
	}
}

func (m *OtelMetrics) Add(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	counter, ok := m.counter(key)
	if !ok {
		return
	}
	counter.Add(context.Background(), int64(delta))
}

func (m *OtelMetrics) Store(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	gauge, ok := m.gauge(key)
	if !ok {
		return
	}
	gauge.Record(context.Background(), int64(value))
}

func (m *OtelMetrics) counter(key string) (metric.Int64Counter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.counters[key]; ok {
		return counter, true
	}
	counter, err := m.meter.Int64Counter("arena." + key)
	if err != nil {
		m.report(err)
		return nil, false
	}
	m.counters[key] = counter
	return counter, true
}

func (m *OtelMetrics) gauge(key string) (metric.Int64Gauge, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gauge, ok := m.gauges[key]; ok {
		return gauge, true
	}
	gauge, err := m.meter.Int64Gauge("arena." + key)
	if err != nil {
		m.report(err)
		return nil, false
	}
	m.gauges[key] = gauge
	return gauge, true
}

func (m *OtelMetrics) report(err error) {
	if m.onError != nil {
		m.onError(err)
	}
}
