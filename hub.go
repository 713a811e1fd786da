package server

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"arena/server/internal/broadcast"
	"arena/server/internal/config"
	"arena/server/internal/delta"
	"arena/server/internal/net/intake"
	"arena/server/internal/net/proto"
	"arena/server/internal/net/ws"
	"arena/server/internal/netquality"
	"arena/server/internal/sim"
	"arena/server/internal/telemetry"
	"arena/server/logging"
)

// Session is the transport side of a connection as the hub sees it.
// *ws.Session satisfies it.
type Session interface {
	broadcast.Sender
	MarkJoined()
}

// HubConfig carries the configuration and shared infrastructure.
type HubConfig struct {
	Config    config.Config
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	// Seed feeds spawn placement; zero seeds from the clock.
	Seed int64
}

// DefaultHubConfig returns the stock configuration with no-op infrastructure.
func DefaultHubConfig() HubConfig {
	return HubConfig{Config: config.Default()}
}

// Hub owns the simulation and every connection. Transport goroutines call
// Connect, Receive, ObserveRTT and Disconnect; the simulation goroutine
// routes each tick's events and sync frame through afterStep.
type Hub struct {
	cfg       config.Config
	clock     logging.Clock
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher

	arena     *sim.Arena
	engine    sim.Engine
	generator *delta.Generator
	scheduler *broadcast.Scheduler
	monitor   *netquality.Monitor
	telemetry *telemetryCounters
	joinBlob  string

	mu       sync.RWMutex
	nextConn uint64
	sessions map[uint64]Session
	players  map[uint64]uint32
	owners   map[uint32]uint64
	joining  map[uint64]bool

	tick atomic.Uint64
}

// NewHub wires the simulation, delta generator, quality monitor and
// broadcast scheduler together.
func NewHub(cfg HubConfig) (*Hub, error) {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Nop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewCounters()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	joinBlob, err := cfg.Config.Game.ClientJSON()
	if err != nil {
		return nil, fmt.Errorf("render client config: %w", err)
	}

	h := &Hub{
		cfg:       cfg.Config,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		publisher: cfg.Publisher,
		telemetry: newTelemetryCounters(cfg.Metrics),
		joinBlob:  joinBlob,
		sessions:  make(map[uint64]Session),
		players:   make(map[uint64]uint32),
		owners:    make(map[uint32]uint64),
		joining:   make(map[uint64]bool),
	}

	h.arena = sim.NewArena(cfg.Config.Game, sim.Deps{
		Logger:    cfg.Logger,
		Metrics:   cfg.Metrics,
		Clock:     cfg.Clock,
		RNG:       rand.New(rand.NewSource(seed)),
		Publisher: cfg.Publisher,
	})
	h.monitor = netquality.NewMonitor(cfg.Publisher)
	policy := delta.NewResyncPolicy(cfg.Config.Delta.DropResyncRatio)
	h.generator = delta.NewGenerator(cfg.Config.Delta, delta.Options{
		Quality: h.monitor,
		Policy:  policy,
		Metrics: cfg.Metrics,
		Logger:  cfg.Logger,
	})
	h.scheduler = broadcast.NewScheduler(broadcast.Config{
		Interval:     cfg.Config.Server.BroadcastInterval,
		PoorQueueCap: cfg.Config.Server.PoorQueueCap,
		Workers:      cfg.Config.Server.FlushWorkers,
	}, broadcast.Options{
		Quality: h.monitor,
		Policy:  policy,
		Metrics: cfg.Metrics,
		Logger:  cfg.Logger,
	})

	engine, err := sim.NewEngine(h.arena,
		sim.WithLoopConfig(sim.LoopConfig{
			TickRate:        cfg.Config.Game.TickRate,
			CatchupMaxTicks: cfg.Config.Server.CatchupMaxTicks,
			CommandCapacity: cfg.Config.Server.CommandCapacity,
			PerActorLimit:   cfg.Config.Server.PerActorLimit,
		}),
		sim.WithLoopHooks(sim.LoopHooks{AfterStep: h.afterStep}),
	)
	if err != nil {
		return nil, err
	}
	h.engine = engine
	return h, nil
}

// Scheduler exposes the broadcast scheduler so callers can run its flush loop.
func (h *Hub) Scheduler() *broadcast.Scheduler { return h.scheduler }

func (h *Hub) Monitor() *netquality.Monitor { return h.monitor }

// Connect registers a session and returns its connection id.
func (h *Hub) Connect(s *ws.Session) uint64 {
	return h.connect(s)
}

func (h *Hub) connect(s Session) uint64 {
	h.mu.Lock()
	h.nextConn++
	id := h.nextConn
	h.sessions[id] = s
	count := len(h.sessions)
	h.mu.Unlock()

	h.scheduler.Register(id, s)
	h.metrics.Store(metricConnections, uint64(count))
	return id
}

// Receive stages a client command for the next tick.
func (h *Hub) Receive(connID uint64, msg proto.Message) error {
	_, isJoin := msg.(*proto.Join)

	h.mu.Lock()
	if _, ok := h.sessions[connID]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: unknown connection %d", intake.ErrInvalidCommand, connID)
	}
	playerID := h.players[connID]
	if isJoin {
		if h.joining[connID] {
			h.mu.Unlock()
			return fmt.Errorf("%w: join already pending", intake.ErrInvalidCommand)
		}
		if playerID == 0 {
			h.joining[connID] = true
		}
	}
	h.mu.Unlock()

	_, err := intake.StageClientCommand(intake.CommandContext{
		Engine: h.engine,
		Tick:   h.tick.Load,
		Now:    h.clock.Now,
	}, connID, playerID, msg)
	if err != nil && isJoin && playerID == 0 {
		h.mu.Lock()
		delete(h.joining, connID)
		h.mu.Unlock()
	}
	return err
}

// ObserveRTT feeds a probe round trip into the quality monitor.
func (h *Hub) ObserveRTT(connID uint64, rtt time.Duration) {
	if tier, changed := h.monitor.Observe(connID, rtt); changed {
		h.logger.Printf("[hub] connection %d quality %s (%s)", connID, tier, rtt)
	}
}

// Disconnect forgets the connection and removes its player, if any.
func (h *Hub) Disconnect(connID uint64, reason error) {
	h.mu.Lock()
	_, known := h.sessions[connID]
	playerID := h.players[connID]
	delete(h.sessions, connID)
	delete(h.players, connID)
	delete(h.joining, connID)
	if playerID != 0 {
		delete(h.owners, playerID)
	}
	count := len(h.sessions)
	h.mu.Unlock()

	if !known {
		return
	}
	h.scheduler.Unregister(connID)
	h.monitor.Remove(connID)
	h.metrics.Store(metricConnections, uint64(count))

	if playerID != 0 {
		h.leave(playerID, reason)
	}
}

func (h *Hub) leave(playerID uint32, reason error) {
	text := "disconnected"
	if reason != nil {
		text = reason.Error()
	}
	h.engine.Enqueue(sim.Command{
		Type:     sim.CommandLeave,
		ActorID:  playerID,
		IssuedAt: h.clock.Now(),
		Leave:    &sim.LeaveCommand{Reason: text},
	})
}

// RunSimulation blocks until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.engine.Run(stop)
}

// Advance runs one tick synchronously. Only for callers that do not run
// RunSimulation, such as tests.
func (h *Hub) Advance(now time.Time, dt time.Duration) sim.LoopStepResult {
	tick := h.tick.Load() + 1
	result := h.engine.Advance(sim.LoopTickContext{Tick: tick, Now: now, Delta: dt.Seconds()})
	h.afterStep(result)
	return result
}

func (h *Hub) afterStep(result sim.LoopStepResult) {
	h.tick.Store(result.Tick)
	h.telemetry.RecordTick(result.Duration, len(result.Commands))

	for _, event := range result.Events {
		h.route(event, result.Now)
	}

	frame, err := h.generator.Next(h.arena.Store(), result.Tick, result.Now)
	if err != nil {
		h.logger.Printf("[hub] tick %d sync frame failed: %v", result.Tick, err)
		return
	}
	h.mu.RLock()
	for connID := range h.players {
		_ = h.scheduler.Enqueue(connID, frame)
	}
	h.mu.RUnlock()
	h.telemetry.RecordFrame(len(frame.Payload), frame.Full)
}

func (h *Hub) route(event sim.Event, now time.Time) {
	switch event.Kind {
	case sim.EventJoined:
		h.bind(event.ConnID, event.PlayerID)
	case sim.EventWorldReset:
		h.resync(now)
	case sim.EventMessage:
		h.deliver(event)
	}
}

// bind answers a completed join with JOINED and a baseline GAME_STATE. A
// connection that closed while its join was queued gets its player removed.
func (h *Hub) bind(connID uint64, playerID uint32) {
	h.mu.Lock()
	session, ok := h.sessions[connID]
	delete(h.joining, connID)
	if ok {
		h.players[connID] = playerID
		h.owners[playerID] = connID
	}
	h.mu.Unlock()

	if !ok {
		h.leave(playerID, nil)
		return
	}

	session.MarkJoined()
	joined, err := proto.Encode(&proto.Joined{PlayerID: playerID, Config: h.joinBlob})
	if err != nil {
		h.logger.Printf("[hub] encode JOINED for player %d: %v", playerID, err)
		return
	}
	if err := h.scheduler.Send(connID, joined); err != nil {
		h.logger.Printf("[hub] JOINED for player %d not delivered: %v", playerID, err)
	}
	h.sendBaseline(connID, h.generator.Snapshot(h.arena.Store()))
}

func (h *Hub) resync(now time.Time) {
	state := h.generator.Rebase(h.arena.Store(), now)
	payload, err := proto.Encode(state)
	if err != nil {
		h.logger.Printf("[hub] encode reset snapshot: %v", err)
		return
	}
	h.mu.RLock()
	ids := make([]uint64, 0, len(h.players))
	for connID := range h.players {
		ids = append(ids, connID)
	}
	h.mu.RUnlock()
	for _, connID := range ids {
		if err := h.scheduler.SendBaseline(connID, payload); err != nil {
			h.logger.Printf("[hub] reset snapshot for connection %d: %v", connID, err)
		}
	}
	h.telemetry.RecordFrame(len(payload)*len(ids), true)
}

func (h *Hub) sendBaseline(connID uint64, state *proto.GameState) {
	payload, err := proto.Encode(state)
	if err != nil {
		h.logger.Printf("[hub] encode snapshot for connection %d: %v", connID, err)
		return
	}
	if err := h.scheduler.SendBaseline(connID, payload); err != nil {
		h.logger.Printf("[hub] snapshot for connection %d: %v", connID, err)
	}
}

// deliver sends a high priority message to its audience. Only joined
// connections receive gameplay messages.
func (h *Hub) deliver(event sim.Event) {
	payload, err := proto.Encode(event.Message)
	if err != nil {
		h.logger.Printf("[hub] encode %s: %v", event.Message.Type(), err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	switch event.Audience {
	case sim.AudienceConn:
		if _, ok := h.sessions[event.ConnID]; ok {
			h.scheduler.Send(event.ConnID, payload)
		}
	case sim.AudienceOthers:
		skip := h.owners[event.PlayerID]
		h.scheduler.Broadcast(payload, func(connID uint64) bool {
			_, joined := h.players[connID]
			return joined && connID != skip
		})
	default:
		h.scheduler.Broadcast(payload, func(connID uint64) bool {
			_, joined := h.players[connID]
			return joined
		})
	}
}

// Stats is the debug view of the hub.
type Stats struct {
	Tick        uint64             `json:"tick"`
	Connections int                `json:"connections"`
	Players     int                `json:"players"`
	Pending     int                `json:"pendingCommands"`
	Quality     netquality.Summary `json:"quality"`
	Broadcast   broadcast.Stats    `json:"broadcast"`
	Telemetry   telemetrySnapshot  `json:"telemetry"`
	Counters    map[string]uint64  `json:"counters,omitempty"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	stats := Stats{
		Tick:        h.tick.Load(),
		Connections: len(h.sessions),
		Players:     len(h.players),
	}
	h.mu.RUnlock()
	stats.Pending = h.engine.Pending()
	stats.Quality = h.monitor.Summary()
	stats.Broadcast = h.scheduler.Stats()
	stats.Telemetry = h.telemetry.Snapshot()
	if counters, ok := h.metrics.(*telemetry.Counters); ok {
		stats.Counters = counters.Snapshot()
	}
	return stats
}
