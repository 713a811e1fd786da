package telemetry

import (
	"context"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

const influxMeasurement = "arena_server"

// InfluxConfig locates the InfluxDB bucket counters are exported to.
type InfluxConfig struct {
	URL      string
	Token    string
	Org      string
	Bucket   string
	Interval time.Duration
}

// InfluxExporter periodically writes a Counters snapshot as one point.
type InfluxExporter struct {
	client   influxdb2.Client
	writer   influxdb2_api.WriteAPI
	source   *Counters
	interval time.Duration
	host     string
	logger   Logger
}

// NewInfluxExporter builds a non-blocking writer. Nothing is sent until Run.
func NewInfluxExporter(cfg InfluxConfig, source *Counters, logger Logger) *InfluxExporter {
	if logger == nil {
		logger = Nop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(100).
			SetFlushInterval(uint(interval.Milliseconds())),
	)
	host, _ := os.Hostname()
	return &InfluxExporter{
		client:   client,
		writer:   client.WriteAPI(cfg.Org, cfg.Bucket),
		source:   source,
		interval: interval,
		host:     host,
		logger:   logger,
	}
}

// Run exports until ctx is cancelled, then flushes and closes the client.
func (e *InfluxExporter) Run(ctx context.Context) {
	if e == nil {
		return
	}
	errs := e.writer.Errors()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	defer e.close()
	for {
		select {
		case <-ctx.Done():
			e.export(time.Now())
			return
		case err := <-errs:
			e.logger.Printf("[influx] write failed: %v", err)
		case now := <-ticker.C:
			e.export(now)
		}
	}
}

func (e *InfluxExporter) export(now time.Time) {
	point := countersPoint(e.source.Snapshot(), e.host, now)
	if point == nil {
		return
	}
	e.writer.WritePoint(point)
}

func (e *InfluxExporter) close() {
	e.writer.Flush()
	e.client.Close()
}

func countersPoint(snapshot map[string]uint64, host string, now time.Time) *influxdb2_write.Point {
	if len(snapshot) == 0 {
		return nil
	}
	fields := make(map[string]interface{}, len(snapshot))
	for k, v := range snapshot {
		fields[k] = v
	}
	tags := map[string]string{}
	if host != "" {
		tags["host"] = host
	}
	return influxdb2.NewPoint(influxMeasurement, tags, fields, now)
}
