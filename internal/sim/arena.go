package sim

import (
	"context"
	"time"

	"arena/server/internal/config"
	"arena/server/internal/net/proto"
	"arena/server/internal/state"
	"arena/server/internal/world"
)

const (
	metricTicks           = "sim.ticks_total"
	metricPlayers         = "sim.players"
	metricProjectiles     = "sim.projectiles"
	metricPickups         = "sim.pickups"
	metricIgnoredCommands = "sim.commands_ignored_total"
	metricKills           = "sim.kills_total"
	metricHits            = "sim.hits_total"
)

// Arena is the authoritative simulation. It owns the state store and is
// driven by exactly one goroutine: Apply stages commands and Step resolves
// them together with the time-driven systems.
type Arena struct {
	cfg   config.Game
	deps  Deps
	store *state.Store

	pending []Command
	events  []Event
	removed []uint32

	tick            uint64
	now             time.Time
	lastPickupSpawn time.Time
}

// NewArena builds a suspended world with freshly generated terrain.
func NewArena(cfg config.Game, deps Deps) *Arena {
	deps = deps.withDefaults()
	store := state.NewStore(cfg.WorldWidth, cfg.WorldHeight)
	store.Round.Duration = cfg.RoundDuration
	store.SetTerrain(world.GenerateTerrain(deps.RNG, cfg.WorldWidth, cfg.WorldHeight, cfg.TerrainSize))
	return &Arena{cfg: cfg, deps: deps, store: store}
}

func (a *Arena) Deps() Deps {
	return a.deps
}

// Store exposes the world to readers on the simulation goroutine.
func (a *Arena) Store() *state.Store {
	return a.store
}

func (a *Arena) Config() config.Game {
	return a.cfg
}

// Apply stages commands for the next Step.
func (a *Arena) Apply(cmds []Command) error {
	a.pending = append(a.pending, cmds...)
	return nil
}

// Step advances the world by one tick. Nothing here returns an error: an
// invalid command is a no-op.
func (a *Arena) Step(ctx LoopTickContext) {
	a.tick = ctx.Tick
	a.now = ctx.Now
	dt := time.Duration(ctx.Delta * float64(time.Second))

	commands := a.pending
	a.pending = nil

	for _, cmd := range commands {
		switch cmd.Type {
		case CommandJoin:
			a.join(cmd)
		case CommandLeave:
			a.leave(cmd)
		}
	}

	a.bootstrapRound()
	a.advanceRound()
	a.updatePlayers(dt)

	for _, cmd := range commands {
		if cmd.Type.Lifecycle() {
			continue
		}
		if !a.applyCommand(cmd) {
			a.deps.Metrics.Add(metricIgnoredCommands, 1)
		}
	}

	a.advanceProjectiles(dt)
	a.updatePickups()

	a.deps.Metrics.Add(metricTicks, 1)
	a.deps.Metrics.Store(metricPlayers, uint64(a.store.PlayerCount()))
	a.deps.Metrics.Store(metricProjectiles, uint64(a.store.ProjectileCount()))
	a.deps.Metrics.Store(metricPickups, uint64(a.store.PickupCount()))
}

func (a *Arena) applyCommand(cmd Command) bool {
	switch cmd.Type {
	case CommandMove:
		return a.move(cmd)
	case CommandShoot:
		return a.shoot(cmd)
	case CommandMelee:
		return a.melee(cmd)
	case CommandRespawn:
		return a.respawnCommand(cmd)
	case CommandChat:
		return a.chat(cmd)
	default:
		return false
	}
}

// DrainEvents returns and clears the events produced since the last drain.
func (a *Arena) DrainEvents() []Event {
	events := a.events
	a.events = nil
	return events
}

// RemovedPlayers returns and clears the ids removed since the last call.
func (a *Arena) RemovedPlayers() []uint32 {
	removed := a.removed
	a.removed = nil
	return removed
}

func (a *Arena) emit(msg proto.Message) {
	a.events = append(a.events, Event{Kind: EventMessage, Tick: a.tick, Audience: AudienceAll, Message: msg})
}

func (a *Arena) emitExcept(playerID uint32, msg proto.Message) {
	a.events = append(a.events, Event{Kind: EventMessage, Tick: a.tick, Audience: AudienceOthers, PlayerID: playerID, Message: msg})
}

func (a *Arena) signal(kind EventKind, connID uint64, playerID uint32) {
	a.events = append(a.events, Event{Kind: kind, Tick: a.tick, ConnID: connID, PlayerID: playerID})
}

func (a *Arena) ctx() context.Context {
	return context.Background()
}
