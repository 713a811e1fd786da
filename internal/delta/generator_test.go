package delta

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arena/server/internal/config"
	"arena/server/internal/net/proto"
	"arena/server/internal/netquality"
	"arena/server/internal/sim"
	"arena/server/internal/state"
)

const tickStep = time.Second / 30

type fixedQuality netquality.Summary

func (q fixedQuality) Summary() netquality.Summary { return netquality.Summary(q) }

func newStore() *state.Store {
	store := state.NewStore(1200, 800)
	store.Round.Start(time.Unix(1_000, 0), 2*time.Minute)
	return store
}

func decode(t *testing.T, frame Frame) proto.Message {
	t.Helper()
	msg, err := proto.Decode(frame.Payload)
	require.NoError(t, err)
	return msg
}

func TestFirstFrameIsFullThenInterval(t *testing.T) {
	cfg := config.Default().Delta
	g := NewGenerator(cfg, Options{})
	store := newStore()
	store.AddPlayer(state.NewPlayer(store.NextPlayerID(), "a", 100, 100, 100, time.Unix(1_000, 0)))

	now := time.Unix(1_000, 0)
	var fulls []int
	for i := range 61 {
		now = now.Add(tickStep)
		frame, err := g.Next(store, uint64(i+1), now)
		require.NoError(t, err)
		if frame.Full {
			fulls = append(fulls, i)
			_, ok := decode(t, frame).(*proto.GameUpdate)
			assert.True(t, ok)
		} else {
			_, ok := decode(t, frame).(*proto.IncrementalUpdate)
			assert.True(t, ok)
		}
	}
	assert.Equal(t, []int{0, 30, 60}, fulls)
}

func TestFullIntervalAdapts(t *testing.T) {
	cfg := config.Default().Delta
	cases := []struct {
		name    string
		summary netquality.Summary
		want    int
	}{
		{"no connections", netquality.Summary{}, cfg.BaseFullInterval},
		{"excellent", netquality.Summary{Connections: 3, MeanRTT: 20 * time.Millisecond}, cfg.MinFullInterval},
		{"good", netquality.Summary{Connections: 3, MeanRTT: 70 * time.Millisecond}, cfg.BaseFullInterval},
		{"some poor", netquality.Summary{Connections: 4, MeanRTT: 70 * time.Millisecond, PoorRatio: 0.25}, (cfg.BaseFullInterval + cfg.MaxFullInterval) / 2},
		{"degraded", netquality.Summary{Connections: 2, MeanRTT: 250 * time.Millisecond, PoorRatio: 0.5}, cfg.MaxFullInterval},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGenerator(cfg, Options{Quality: fixedQuality(tc.summary)})
			assert.Equal(t, tc.want, g.FullInterval())
		})
	}
}

func TestForcedResyncTimer(t *testing.T) {
	cfg := config.Default().Delta
	cfg.BaseFullInterval = 1000
	cfg.MaxFullInterval = 1000
	cfg.ForcedResync = 100 * time.Millisecond
	g := NewGenerator(cfg, Options{})
	store := newStore()

	now := time.Unix(1_000, 0)
	frame, err := g.Next(store, 1, now)
	require.NoError(t, err)
	require.True(t, frame.Full)

	for tick := uint64(2); tick <= 3; tick++ {
		now = now.Add(tickStep)
		frame, err = g.Next(store, tick, now)
		require.NoError(t, err)
		assert.False(t, frame.Full)
	}
	now = now.Add(tickStep + 5*time.Millisecond)
	frame, err = g.Next(store, 4, now)
	require.NoError(t, err)
	assert.True(t, frame.Full)
	assert.Equal(t, ReasonForced, frame.Reason)
}

func TestDropsTriggerEarlyFull(t *testing.T) {
	g := NewGenerator(config.Default().Delta, Options{})
	store := newStore()
	now := time.Unix(1_000, 0)
	_, err := g.Next(store, 1, now)
	require.NoError(t, err)

	g.Policy().NoteFrame()
	g.Policy().NoteDrop(9, "poor_cap")
	frame, err := g.Next(store, 2, now.Add(tickStep))
	require.NoError(t, err)
	assert.True(t, frame.Full)
	assert.Equal(t, ReasonResync, frame.Reason)
}

func TestIncrementalThresholdsAndSections(t *testing.T) {
	g := NewGenerator(config.Default().Delta, Options{})
	store := newStore()
	now := time.Unix(1_000, 0)
	mover := state.NewPlayer(store.NextPlayerID(), "mover", 100, 100, 100, now)
	idle := state.NewPlayer(store.NextPlayerID(), "idle", 300, 300, 100, now)
	store.AddPlayer(mover)
	store.AddPlayer(idle)
	store.AddProjectile(&state.Projectile{ID: "old", X: 500, Y: 500, Remaining: time.Second})
	_, err := g.Next(store, 1, now)
	require.NoError(t, err)

	// Below the position threshold, above the angle threshold.
	mover.X += 2
	mover.Angle = 0.5
	idle.Score = 10
	store.RemoveProjectile("old")
	store.AddProjectile(&state.Projectile{ID: "new", X: 110, Y: 100, VX: 480.004, Remaining: time.Second})
	store.AddPickup(&state.Pickup{Kind: state.PickupHeal, X: 40, Y: 40})

	frame, err := g.Next(store, 2, now.Add(tickStep))
	require.NoError(t, err)
	require.False(t, frame.Full)
	update := decode(t, frame).(*proto.IncrementalUpdate)

	require.Len(t, update.ChangedPlayers, 2)
	assert.Equal(t, proto.FieldAngle, update.ChangedPlayers[0].Mask)
	assert.Equal(t, proto.FieldScore, update.ChangedPlayers[1].Mask)
	assert.Equal(t, []string{"old"}, update.RemovedProjectiles)
	require.Len(t, update.NewProjectiles, 1)
	assert.InDelta(t, 480.0, update.NewProjectiles[0].VX, 1e-3)
	require.Len(t, update.NewPickups, 1)
	assert.Equal(t, state.PickupHeal.Color(), update.NewPickups[0].Color)

	// Crossing the threshold relative to the baseline sends both axes.
	mover.X += 2
	mover.Y += 1
	frame, err = g.Next(store, 3, now.Add(2*tickStep))
	require.NoError(t, err)
	update = decode(t, frame).(*proto.IncrementalUpdate)
	require.Len(t, update.ChangedPlayers, 1)
	assert.Equal(t, proto.FieldX|proto.FieldY, update.ChangedPlayers[0].Mask)
	assert.InDelta(t, 104, update.ChangedPlayers[0].X, 1e-6)
}

func TestRemovedPlayersLeaveBaseline(t *testing.T) {
	g := NewGenerator(config.Default().Delta, Options{})
	store := newStore()
	now := time.Unix(1_000, 0)
	p := state.NewPlayer(store.NextPlayerID(), "gone", 100, 100, 100, now)
	store.AddPlayer(p)
	_, err := g.Next(store, 1, now)
	require.NoError(t, err)

	store.RemovePlayer(p.ID)
	_, err = g.Next(store, 2, now.Add(tickStep))
	require.NoError(t, err)

	// Same id back again is announced as new.
	store.AddPlayer(p)
	frame, err := g.Next(store, 3, now.Add(2*tickStep))
	require.NoError(t, err)
	update := decode(t, frame).(*proto.IncrementalUpdate)
	require.Len(t, update.NewPlayers, 1)
	assert.Equal(t, p.ID, update.NewPlayers[0].ID)
}

func TestRebaseAdoptsSnapshot(t *testing.T) {
	g := NewGenerator(config.Default().Delta, Options{})
	store := newStore()
	now := time.Unix(1_000, 0)
	store.AddPlayer(state.NewPlayer(store.NextPlayerID(), "a", 100, 100, 100, now))
	store.SetTerrain([]state.Block{{ID: 1, Rect: state.Rect{X: 0, Y: 0, W: 40, H: 40}, Material: state.MaterialWall}})

	snap := g.Rebase(store, now)
	require.Len(t, snap.Players, 1)
	require.Len(t, snap.Terrain, 1)

	frame, err := g.Next(store, 1, now.Add(tickStep))
	require.NoError(t, err)
	assert.False(t, frame.Full, "rebase counts as a baseline")
	assert.True(t, decode(t, frame).(*proto.IncrementalUpdate).Empty())
}

// replica mirrors what a client reconstructs from the frames it receives.
type replica struct {
	players     map[uint32]proto.PlayerInfo
	projectiles map[string]struct{}
	pickups     map[uint32]struct{}
}

func newReplica() *replica {
	return &replica{
		players:     make(map[uint32]proto.PlayerInfo),
		projectiles: make(map[string]struct{}),
		pickups:     make(map[uint32]struct{}),
	}
}

func (r *replica) apply(t *testing.T, msg proto.Message) {
	t.Helper()
	switch m := msg.(type) {
	case *proto.GameUpdate:
		clear(r.players)
		clear(r.projectiles)
		clear(r.pickups)
		for _, p := range m.Players {
			r.players[p.ID] = p
		}
		for _, p := range m.Projectiles {
			r.projectiles[p.ID] = struct{}{}
		}
		for _, p := range m.Pickups {
			r.pickups[p.ID] = struct{}{}
		}
	case *proto.IncrementalUpdate:
		for _, p := range m.NewPlayers {
			r.players[p.ID] = p
		}
		for _, c := range m.ChangedPlayers {
			p, ok := r.players[c.ID]
			require.True(t, ok, "change for unknown player %d", c.ID)
			c.Apply(&p)
			r.players[c.ID] = p
		}
		for _, p := range m.NewProjectiles {
			r.projectiles[p.ID] = struct{}{}
		}
		for _, id := range m.RemovedProjectiles {
			delete(r.projectiles, id)
		}
		for _, p := range m.NewPickups {
			r.pickups[p.ID] = struct{}{}
		}
		for _, id := range m.RemovedPickups {
			delete(r.pickups, id)
		}
	default:
		t.Fatalf("unexpected sync message %T", msg)
	}
}

func TestReplicaTracksWorld(t *testing.T) {
	game := config.Default().Game
	game.PickupSpawnInterval = time.Second
	arena := sim.NewArena(game, sim.Deps{RNG: rand.New(rand.NewSource(11))})
	cfg := config.Default().Delta
	g := NewGenerator(cfg, Options{})
	rng := rand.New(rand.NewSource(5))

	now := time.Unix(5_000, 0)
	var tick uint64
	step := func(cmds ...sim.Command) {
		tick++
		now = now.Add(tickStep)
		require.NoError(t, arena.Apply(cmds))
		arena.Step(sim.LoopTickContext{Tick: tick, Now: now, Delta: tickStep.Seconds()})
		arena.DrainEvents()
		arena.RemovedPlayers()
	}
	for conn := uint64(1); conn <= 4; conn++ {
		step(sim.Command{Type: sim.CommandJoin, ConnID: conn, Join: &sim.JoinCommand{Name: "bot"}})
	}

	client := newReplica()
	posTolerance := cfg.PositionThreshold + cfg.PositionQuantum
	for range 600 {
		var cmds []sim.Command
		for _, p := range arena.Store().Players() {
			switch rng.Intn(6) {
			case 0, 1, 2:
				cmds = append(cmds, sim.Command{Type: sim.CommandMove, ActorID: p.ID, Move: &sim.MoveCommand{
					X:     p.X + rng.Float64()*30 - 15,
					Y:     p.Y + rng.Float64()*30 - 15,
					Angle: rng.Float64() * 2 * math.Pi,
				}})
			case 3:
				cmds = append(cmds, sim.Command{Type: sim.CommandShoot, ActorID: p.ID, Aim: &sim.AimCommand{X: rng.Float64() * 1200, Y: rng.Float64() * 800}})
			case 4:
				cmds = append(cmds, sim.Command{Type: sim.CommandMelee, ActorID: p.ID, Aim: &sim.AimCommand{X: p.X + 1, Y: p.Y}})
			}
		}
		step(cmds...)

		frame, err := g.Next(arena.Store(), tick, now)
		require.NoError(t, err)
		client.apply(t, decode(t, frame))

		truth := g.Snapshot(arena.Store())
		require.Len(t, client.players, len(truth.Players))
		for _, want := range truth.Players {
			got, ok := client.players[want.ID]
			require.True(t, ok, "player %d missing", want.ID)
			assert.LessOrEqual(t, math.Hypot(float64(got.X-want.X), float64(got.Y-want.Y)), posTolerance)
			assert.LessOrEqual(t, angleDelta(float64(got.Angle), float64(want.Angle)), cfg.AngleThreshold+cfg.AngleQuantum)
			assert.Equal(t, want.Health, got.Health)
			assert.Equal(t, want.Score, got.Score)
			assert.Equal(t, want.Alive, got.Alive)
			assert.Equal(t, want.BuffFlags(), got.BuffFlags())
		}
		require.Len(t, client.projectiles, len(truth.Projectiles))
		for _, p := range truth.Projectiles {
			assert.Contains(t, client.projectiles, p.ID)
		}
		require.Len(t, client.pickups, len(truth.Pickups))
	}
}
