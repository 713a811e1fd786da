// Package delta turns post-tick world state into full and incremental sync
// frames.
package delta

import (
	"maps"
	"math"
	"slices"
	"time"

	"arena/server/internal/config"
	"arena/server/internal/net/proto"
	"arena/server/internal/netquality"
	"arena/server/internal/sim"
	"arena/server/internal/state"
	"arena/server/internal/telemetry"
)

// Full update reasons.
const (
	ReasonBaseline = "baseline"
	ReasonInterval = "interval"
	ReasonForced   = "forced"
	ReasonResync   = "resync"
)

const (
	metricFullFrames        = "delta.frames_full_total"
	metricIncrementalFrames = "delta.frames_incremental_total"
	metricBytes             = "delta.bytes_total"
	metricFullInterval      = "delta.full_interval_ticks"
	metricChangedPlayers    = "delta.changed_players_total"
)

// QualitySource reports aggregate connection quality.
type QualitySource interface {
	Summary() netquality.Summary
}

// Frame is one encoded sync message for every connection.
type Frame struct {
	Tick    uint64
	Full    bool
	Reason  string
	Message proto.Message
	Payload []byte
}

type Options struct {
	Quality QualitySource
	Policy  *ResyncPolicy
	Metrics telemetry.Metrics
	Logger  telemetry.Logger
}

// Generator owns the shared baseline every connection's replica tracks. It
// runs on the simulation goroutine right after each tick.
type Generator struct {
	cfg     config.Delta
	quant   quantizer
	quality QualitySource
	policy  *ResyncPolicy
	metrics telemetry.Metrics
	logger  telemetry.Logger

	hasBaseline    bool
	ticksSinceFull int
	lastFull       time.Time

	players     map[uint32]proto.PlayerInfo
	projectiles map[string]struct{}
	pickups     map[uint32]struct{}
}

func NewGenerator(cfg config.Delta, opts Options) *Generator {
	if opts.Policy == nil {
		opts.Policy = NewResyncPolicy(cfg.DropResyncRatio)
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewCounters()
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.Nop()
	}
	return &Generator{
		cfg:         cfg,
		quant:       newQuantizer(cfg),
		quality:     opts.Quality,
		policy:      opts.Policy,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		players:     make(map[uint32]proto.PlayerInfo),
		projectiles: make(map[string]struct{}),
		pickups:     make(map[uint32]struct{}),
	}
}

// Policy exposes the resync policy so the scheduler can report drops.
func (g *Generator) Policy() *ResyncPolicy {
	return g.policy
}

// FullInterval is the current full-update cadence in ticks. It shrinks on a
// healthy network and grows as latency or the poor share rises.
func (g *Generator) FullInterval() int {
	base := max(g.cfg.BaseFullInterval, 1)
	lo := max(min(g.cfg.MinFullInterval, base), 1)
	hi := max(g.cfg.MaxFullInterval, base)
	if g.quality == nil {
		return base
	}
	s := g.quality.Summary()
	switch {
	case s.Connections == 0:
		return base
	case s.PoorRatio >= 0.5 || s.MeanRTT >= netquality.MediumBelow:
		return hi
	case s.PoorRatio > 0 || s.MeanRTT >= netquality.GoodBelow:
		return (base + hi) / 2
	case s.MeanRTT < netquality.ExcellentBelow:
		return lo
	default:
		return base
	}
}

// Next builds the frame for the tick that just completed.
func (g *Generator) Next(store *state.Store, tick uint64, now time.Time) (Frame, error) {
	frame := Frame{Tick: tick}
	reason := g.fullReason(now)
	if reason != "" {
		frame.Full = true
		frame.Reason = reason
		frame.Message = g.full(store, now)
	} else {
		frame.Message = g.incremental(store, now)
	}

	payload, err := proto.Encode(frame.Message)
	if err != nil {
		return Frame{}, err
	}
	frame.Payload = payload

	g.metrics.Add(metricBytes, uint64(len(payload)))
	if frame.Full {
		g.metrics.Add(metricFullFrames, 1)
	} else {
		g.metrics.Add(metricIncrementalFrames, 1)
	}
	return frame, nil
}

func (g *Generator) fullReason(now time.Time) string {
	interval := g.FullInterval()
	g.metrics.Store(metricFullInterval, uint64(interval))
	switch {
	case !g.hasBaseline:
		return ReasonBaseline
	case g.ticksSinceFull+1 >= interval:
		return ReasonInterval
	case g.cfg.ForcedResync > 0 && now.Sub(g.lastFull) >= g.cfg.ForcedResync:
		return ReasonForced
	}
	if signal, ok := g.policy.Consume(); ok {
		g.logger.Printf("[delta] early full update: %s", signal.Summary())
		return ReasonResync
	}
	return ""
}

// Snapshot renders the complete world, terrain included, for a connection
// that needs a baseline. The shared baseline is untouched.
func (g *Generator) Snapshot(store *state.Store) *proto.GameState {
	msg := &proto.GameState{}
	for _, p := range store.Players() {
		msg.Players = append(msg.Players, g.quant.player(p))
	}
	for _, p := range store.Projectiles() {
		msg.Projectiles = append(msg.Projectiles, g.quant.projectile(p))
	}
	for _, p := range store.Pickups() {
		msg.Pickups = append(msg.Pickups, g.quant.pickup(p))
	}
	for _, b := range store.Terrain() {
		msg.Terrain = append(msg.Terrain, sim.BlockInfo(b))
	}
	return msg
}

// Rebase renders a snapshot and adopts it as the shared baseline. Used when
// every connection receives fresh state at once, such as after a world
// reset.
func (g *Generator) Rebase(store *state.Store, now time.Time) *proto.GameState {
	msg := g.Snapshot(store)
	g.adopt(msg.Players, msg.Projectiles, msg.Pickups, now)
	return msg
}

func (g *Generator) full(store *state.Store, now time.Time) *proto.GameUpdate {
	snap := g.Snapshot(store)
	msg := &proto.GameUpdate{
		Players:       snap.Players,
		Projectiles:   snap.Projectiles,
		Pickups:       snap.Pickups,
		RemainingTime: proto.DurationMillis(store.Round.Remaining(now)),
		Ended:         store.Round.Ended,
	}
	g.adopt(msg.Players, msg.Projectiles, msg.Pickups, now)
	return msg
}

func (g *Generator) adopt(players []proto.PlayerInfo, projectiles []proto.ProjectileInfo, pickups []proto.PickupInfo, now time.Time) {
	clear(g.players)
	clear(g.projectiles)
	clear(g.pickups)
	for _, p := range players {
		g.players[p.ID] = p
	}
	for _, p := range projectiles {
		g.projectiles[p.ID] = struct{}{}
	}
	for _, p := range pickups {
		g.pickups[p.ID] = struct{}{}
	}
	g.hasBaseline = true
	g.ticksSinceFull = 0
	g.lastFull = now
	g.policy.Reset()
}

func (g *Generator) incremental(store *state.Store, now time.Time) *proto.IncrementalUpdate {
	g.ticksSinceFull++
	msg := &proto.IncrementalUpdate{
		Timestamp:     proto.Millis(now),
		RemainingTime: proto.DurationMillis(store.Round.Remaining(now)),
		Ended:         store.Round.Ended,
	}

	seen := make(map[uint32]struct{}, store.PlayerCount())
	for _, p := range store.Players() {
		seen[p.ID] = struct{}{}
		info := g.quant.player(p)
		base, ok := g.players[p.ID]
		if !ok {
			msg.NewPlayers = append(msg.NewPlayers, info)
			g.players[p.ID] = info
			continue
		}
		change, ok := g.diffPlayer(&base, info)
		if !ok {
			continue
		}
		msg.ChangedPlayers = append(msg.ChangedPlayers, change)
		change.Apply(&base)
		g.players[p.ID] = base
	}
	// Departures travel as PLAYER_LEFT; the baseline just forgets them.
	for id := range g.players {
		if _, ok := seen[id]; !ok {
			delete(g.players, id)
		}
	}
	g.metrics.Add(metricChangedPlayers, uint64(len(msg.ChangedPlayers)))

	live := make(map[string]struct{}, store.ProjectileCount())
	for _, p := range store.Projectiles() {
		live[p.ID] = struct{}{}
		if _, ok := g.projectiles[p.ID]; !ok {
			msg.NewProjectiles = append(msg.NewProjectiles, g.quant.projectile(p))
			g.projectiles[p.ID] = struct{}{}
		}
	}
	for _, id := range slices.Sorted(maps.Keys(g.projectiles)) {
		if _, ok := live[id]; !ok {
			msg.RemovedProjectiles = append(msg.RemovedProjectiles, id)
			delete(g.projectiles, id)
		}
	}

	livePickups := make(map[uint32]struct{}, store.PickupCount())
	for _, p := range store.Pickups() {
		livePickups[p.ID] = struct{}{}
		if _, ok := g.pickups[p.ID]; !ok {
			msg.NewPickups = append(msg.NewPickups, g.quant.pickup(p))
			g.pickups[p.ID] = struct{}{}
		}
	}
	for _, id := range slices.Sorted(maps.Keys(g.pickups)) {
		if _, ok := livePickups[id]; !ok {
			msg.RemovedPickups = append(msg.RemovedPickups, id)
			delete(g.pickups, id)
		}
	}
	return msg
}

// diffPlayer compares the current record with the baseline. Position and
// angle use thresholds; every other field is sent on any change.
func (g *Generator) diffPlayer(base *proto.PlayerInfo, cur proto.PlayerInfo) (proto.PlayerChange, bool) {
	change := proto.PlayerChange{ID: cur.ID}
	dx := float64(cur.X - base.X)
	dy := float64(cur.Y - base.Y)
	if math.Hypot(dx, dy) > g.cfg.PositionThreshold {
		if cur.X != base.X {
			change.Mask |= proto.FieldX
			change.X = cur.X
		}
		if cur.Y != base.Y {
			change.Mask |= proto.FieldY
			change.Y = cur.Y
		}
	}
	if angleDelta(float64(cur.Angle), float64(base.Angle)) > g.cfg.AngleThreshold {
		change.Mask |= proto.FieldAngle
		change.Angle = cur.Angle
	}
	if cur.Health != base.Health {
		change.Mask |= proto.FieldHealth
		change.Health = cur.Health
	}
	if cur.Score != base.Score {
		change.Mask |= proto.FieldScore
		change.Score = cur.Score
	}
	if cur.Alive != base.Alive {
		change.Mask |= proto.FieldAlive
		change.Alive = cur.Alive
	}
	if flags := cur.BuffFlags(); flags != base.BuffFlags() {
		change.Mask |= proto.FieldBuffs
		change.Buffs = flags
	}
	return change, change.Mask != 0
}
