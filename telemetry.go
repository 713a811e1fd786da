package server

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"arena/server/internal/telemetry"
)

const (
	metricConnections   = "hub.connections"
	metricFrameBytes    = "hub.frame_bytes_total"
	metricTickMicros    = "hub.tick_duration_us"
	metricTickCommands  = "hub.tick_commands"
	metricBaselineBytes = "hub.baseline_bytes_total"
)

// telemetryCounters keeps the last-tick view served by the debug endpoint
// and mirrors it into the metrics sink.
type telemetryCounters struct {
	metrics telemetry.Metrics

	frameBytes       atomic.Uint64
	fullFrames       atomic.Uint64
	incrementals     atomic.Uint64
	lastFrameBytes   atomic.Uint64
	tickDuration     atomic.Int64
	lastTickCommands atomic.Uint64
}

type telemetrySnapshot struct {
	FrameBytes     uint64 `json:"frameBytes"`
	FrameBytesText string `json:"frameBytesText"`
	FullFrames     uint64 `json:"fullFrames"`
	Incrementals   uint64 `json:"incrementalFrames"`
	LastFrameBytes uint64 `json:"lastFrameBytes"`
	TickMicros     int64  `json:"tickDurationMicros"`
	TickCommands   uint64 `json:"tickCommands"`
}

func newTelemetryCounters(metrics telemetry.Metrics) *telemetryCounters {
	return &telemetryCounters{metrics: metrics}
}

func (t *telemetryCounters) RecordFrame(bytes int, full bool) {
	if bytes < 0 {
		bytes = 0
	}
	t.frameBytes.Add(uint64(bytes))
	t.lastFrameBytes.Store(uint64(bytes))
	if full {
		t.fullFrames.Add(1)
		t.metrics.Add(metricBaselineBytes, uint64(bytes))
	} else {
		t.incrementals.Add(1)
	}
	t.metrics.Add(metricFrameBytes, uint64(bytes))
}

func (t *telemetryCounters) RecordTick(duration time.Duration, commands int) {
	micros := duration.Microseconds()
	if micros < 0 {
		micros = 0
	}
	t.tickDuration.Store(micros)
	t.lastTickCommands.Store(uint64(commands))
	t.metrics.Store(metricTickMicros, uint64(micros))
	t.metrics.Store(metricTickCommands, uint64(commands))
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	bytes := t.frameBytes.Load()
	return telemetrySnapshot{
		FrameBytes:     bytes,
		FrameBytesText: humanize.Bytes(bytes),
		FullFrames:     t.fullFrames.Load(),
		Incrementals:   t.incrementals.Load(),
		LastFrameBytes: t.lastFrameBytes.Load(),
		TickMicros:     t.tickDuration.Load(),
		TickCommands:   t.lastTickCommands.Load(),
	}
}
