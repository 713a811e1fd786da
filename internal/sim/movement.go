package sim

import (
	"math"
	"time"

	"arena/server/internal/state"
)

// movingGrace is how long a player counts as moving after its last accepted
// move.
const movingGrace = 100 * time.Millisecond

// updatePlayers runs respawn timers, buff expiry and movement decay.
func (a *Arena) updatePlayers(dt time.Duration) {
	for _, p := range a.store.Players() {
		p.Buffs.Expire(a.now)
		if !p.Alive {
			p.RespawnIn -= dt
			if p.RespawnIn <= 0 && a.store.Round.Phase == state.PhasePlaying {
				a.respawn(p)
			}
			continue
		}
		if p.Moving && a.now.Sub(p.LastMoveAt) > movingGrace {
			p.Moving = false
			p.VX, p.VY = 0, 0
		}
	}
}

// move steps a live player toward the requested position. Each axis is
// clamped to the step limit and resolved on its own so a player slides along
// walls instead of sticking to them.
func (a *Arena) move(cmd Command) bool {
	p, ok := a.store.Player(cmd.ActorID)
	if !ok || !p.Alive || cmd.Move == nil {
		return false
	}
	m := cmd.Move
	if !finite(m.X) || !finite(m.Y) || !finite(m.Angle) {
		return false
	}
	p.Angle = m.Angle

	limit := a.cfg.MoveStepLimit
	dx := clampAbs(m.X-p.X, limit)
	dy := clampAbs(m.Y-p.Y, limit)
	prevX, prevY := p.X, p.Y

	if dx != 0 && a.open(p.X+dx, p.Y) {
		p.X += dx
	}
	if dy != 0 && a.open(p.X, p.Y+dy) {
		p.Y += dy
	}

	if p.X != prevX || p.Y != prevY {
		p.VX = p.X - prevX
		p.VY = p.Y - prevY
		p.Moving = true
		p.LastMoveAt = a.now
	}
	return true
}

// open reports whether a player centred at (x, y) fits inside the world
// without touching terrain.
func (a *Arena) open(x, y float64) bool {
	r := state.CenteredRect(x, y, a.cfg.PlayerSize)
	return a.store.InBounds(r) && !a.store.CollidesTerrain(r)
}

func clampAbs(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
