// Package broadcast fans encoded server messages out to connections. High
// priority messages go straight to the connection writer; state sync frames
// are queued and flushed on a fixed cadence.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/remeh/sizedwaitgroup"

	"arena/server/internal/delta"
	"arena/server/internal/net/proto"
	"arena/server/internal/netquality"
	"arena/server/internal/telemetry"
)

var (
	// ErrNoBaseline rejects an incremental frame for a connection that has
	// not been handed a full snapshot yet.
	ErrNoBaseline = errors.New("broadcast: connection has no baseline snapshot")
	// ErrUnknownConnection is returned for ids that are not registered.
	ErrUnknownConnection = errors.New("broadcast: unknown connection")
	// ErrBackpressure means the connection writer refused the payload.
	ErrBackpressure = errors.New("broadcast: connection writer is full")
)

// Drop reasons reported to the resync policy.
const (
	DropPoorCap = "poor_cap"
	DropBacklog = "backlog"
)

const (
	metricHighSent    = "broadcast.high_total"
	metricLowQueued   = "broadcast.low_queued_total"
	metricDropped     = "broadcast.dropped_total"
	metricNoBaseline  = "broadcast.no_baseline_total"
	metricBatches     = "broadcast.batches_total"
	metricBytes       = "broadcast.bytes_total"
	metricConnections = "broadcast.connections"
	metricStale       = "broadcast.stale_total"
)

// Sender hands a payload to a connection's writer without blocking. It
// reports false when the writer's buffer is full.
type Sender interface {
	Send(payload []byte) bool
}

type SenderFunc func(payload []byte) bool

func (f SenderFunc) Send(payload []byte) bool {
	return f(payload)
}

// TierSource reports the current quality tier of a connection.
type TierSource interface {
	Tier(connID uint64) netquality.Tier
}

type Config struct {
	// Interval between low priority flushes.
	Interval time.Duration
	// PoorQueueCap bounds queued low priority frames for poor connections.
	PoorQueueCap int
	// Workers bounds concurrent per-connection flushes.
	Workers int
}

type Options struct {
	Quality TierSource
	Policy  *delta.ResyncPolicy
	Metrics telemetry.Metrics
	Logger  telemetry.Logger
}

type queued struct {
	payload []byte
	full    bool
}

type connection struct {
	id       uint64
	sender   Sender
	baseline bool
	// epoch advances with every SendBaseline; frames taken by a flush under
	// an older epoch are stale.
	epoch uint64
	queue []queued
	// rounds counts flush rounds so slower tiers flush less often.
	rounds    uint64
	bytesSent uint64
}

// Scheduler is safe for concurrent use. The simulation goroutine enqueues,
// the flush goroutine drains and writers never block either of them.
type Scheduler struct {
	cfg     Config
	quality TierSource
	policy  *delta.ResyncPolicy
	metrics telemetry.Metrics
	logger  telemetry.Logger

	mu    sync.Mutex
	conns map[uint64]*connection
}

func NewScheduler(cfg Config, opts Options) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 16 * time.Millisecond
	}
	if cfg.PoorQueueCap <= 0 {
		cfg.PoorQueueCap = 2
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewCounters()
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.Nop()
	}
	return &Scheduler{
		cfg:     cfg,
		quality: opts.Quality,
		policy:  opts.Policy,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		conns:   make(map[uint64]*connection),
	}
}

func (s *Scheduler) Register(connID uint64, sender Sender) {
	s.mu.Lock()
	s.conns[connID] = &connection{id: connID, sender: sender}
	count := len(s.conns)
	s.mu.Unlock()
	s.metrics.Store(metricConnections, uint64(count))
}

func (s *Scheduler) Unregister(connID uint64) {
	s.mu.Lock()
	conn, ok := s.conns[connID]
	delete(s.conns, connID)
	count := len(s.conns)
	s.mu.Unlock()
	s.metrics.Store(metricConnections, uint64(count))
	if ok {
		s.logger.Printf("[broadcast] conn=%d unregistered after %s", connID, humanize.Bytes(conn.bytesSent))
	}
}

// HasBaseline reports whether connID has been handed a full snapshot.
func (s *Scheduler) HasBaseline(connID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[connID]
	return ok && conn.baseline
}

// SendBaseline delivers a GAME_STATE immediately and opens the gate for
// incremental frames.
func (s *Scheduler) SendBaseline(connID uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	// Anything queued or mid-flush was built against an older baseline.
	conn.queue = conn.queue[:0]
	conn.epoch++
	if !s.writeLocked(conn, payload) {
		conn.baseline = false
		return ErrBackpressure
	}
	conn.baseline = true
	return nil
}

// Send delivers a high priority payload to one connection.
func (s *Scheduler) Send(connID uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if !s.writeLocked(conn, payload) {
		return ErrBackpressure
	}
	s.metrics.Add(metricHighSent, 1)
	return nil
}

// Broadcast delivers a high priority payload to every connection for which
// include returns true. A nil include selects everyone. It returns how many
// writers accepted the payload.
func (s *Scheduler) Broadcast(payload []byte, include func(connID uint64) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := 0
	for _, conn := range s.conns {
		if include != nil && !include(conn.id) {
			continue
		}
		if s.writeLocked(conn, payload) {
			sent++
		}
	}
	s.metrics.Add(metricHighSent, uint64(sent))
	return sent
}

// Enqueue queues a state sync frame for one connection.
func (s *Scheduler) Enqueue(connID uint64, frame delta.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	return s.enqueueLocked(conn, frame)
}

// EnqueueAll queues frame for every registered connection. Connections
// still waiting for a baseline are skipped.
func (s *Scheduler) EnqueueAll(frame delta.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = s.enqueueLocked(conn, frame)
	}
}

func (s *Scheduler) enqueueLocked(conn *connection, frame delta.Frame) error {
	if !frame.Full && !conn.baseline {
		s.metrics.Add(metricNoBaseline, 1)
		return ErrNoBaseline
	}
	if frame.Full {
		conn.baseline = true
	}
	conn.queue = append(conn.queue, queued{payload: frame.Payload, full: frame.Full})
	s.policy.NoteFrame()
	s.metrics.Add(metricLowQueued, 1)

	if s.tier(conn.id) == netquality.TierPoor {
		s.dropQueuedLocked(conn, len(conn.queue)-s.cfg.PoorQueueCap)
	}
	return nil
}

// dropQueuedLocked discards up to n of the oldest incremental frames. Full
// snapshots are never dropped.
func (s *Scheduler) dropQueuedLocked(conn *connection, n int) {
	if n <= 0 {
		return
	}
	kept := conn.queue[:0]
	for _, item := range conn.queue {
		if n > 0 && !item.full {
			n--
			s.policy.NoteDrop(conn.id, DropPoorCap)
			s.metrics.Add(metricDropped, 1)
			continue
		}
		kept = append(kept, item)
	}
	clear(conn.queue[len(kept):])
	conn.queue = kept
}

func (s *Scheduler) tier(connID uint64) netquality.Tier {
	if s.quality == nil {
		return netquality.TierExcellent
	}
	return s.quality.Tier(connID)
}

// cadence is how many flush rounds a tier waits between flushes.
func cadence(tier netquality.Tier) uint64 {
	switch tier {
	case netquality.TierMedium:
		return 2
	case netquality.TierPoor:
		return 4
	default:
		return 1
	}
}

type pending struct {
	conn  *connection
	epoch uint64
	items []queued
}

// Flush drains the low priority queues that are due this round. More than
// one queued frame goes out as a single BATCH envelope.
func (s *Scheduler) Flush() {
	due := s.takeDue()
	if len(due) == 0 {
		return
	}
	swg := sizedwaitgroup.New(s.cfg.Workers)
	for _, p := range due {
		swg.Add()
		go func(p pending) {
			defer swg.Done()
			s.deliver(p)
		}(p)
	}
	swg.Wait()
}

// takeDue empties the queues of every connection due this round.
func (s *Scheduler) takeDue() []pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []pending
	for _, conn := range s.conns {
		conn.rounds++
		if len(conn.queue) == 0 || conn.rounds%cadence(s.tier(conn.id)) != 0 {
			continue
		}
		items := make([]queued, len(conn.queue))
		copy(items, conn.queue)
		conn.queue = conn.queue[:0]
		due = append(due, pending{conn: conn, epoch: conn.epoch, items: items})
	}
	return due
}

func (s *Scheduler) deliver(p pending) {
	payloads := make([][]byte, 0, len(p.items))
	hasFull := false
	for _, item := range p.items {
		payloads = append(payloads, item.payload)
		hasFull = hasFull || item.full
	}
	frame, err := proto.EncodeBatch(payloads)
	if err != nil {
		s.logger.Printf("[broadcast] conn=%d batch encode failed: %v", p.conn.id, err)
		return
	}
	if len(payloads) > 1 {
		s.metrics.Add(metricBatches, 1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.conns[p.conn.id]; !ok || current != p.conn {
		return
	}
	if p.conn.epoch != p.epoch {
		// A newer baseline went out while this batch was being encoded.
		s.metrics.Add(metricStale, uint64(len(p.items)))
		return
	}
	if s.writeLocked(p.conn, frame) {
		return
	}
	for range p.items {
		s.policy.NoteDrop(p.conn.id, DropBacklog)
		s.metrics.Add(metricDropped, 1)
	}
	if hasFull {
		// The replica missed its snapshot; wait for the next one.
		p.conn.baseline = false
	}
}

func (s *Scheduler) writeLocked(conn *connection, payload []byte) bool {
	if conn.sender == nil || !conn.sender.Send(payload) {
		return false
	}
	conn.bytesSent += uint64(len(payload))
	s.metrics.Add(metricBytes, uint64(len(payload)))
	return true
}

// Run flushes on the configured interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Stats is a point-in-time view for diagnostics.
type Stats struct {
	Connections int    `json:"connections"`
	Queued      int    `json:"queued"`
	BytesSent   uint64 `json:"bytesSent"`
	Human       string `json:"bytesSentHuman"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{Connections: len(s.conns)}
	for _, conn := range s.conns {
		stats.Queued += len(conn.queue)
		stats.BytesSent += conn.bytesSent
	}
	stats.Human = humanize.Bytes(stats.BytesSent)
	return stats
}
