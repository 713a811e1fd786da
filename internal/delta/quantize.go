package delta

import (
	"math"

	"arena/server/internal/config"
	"arena/server/internal/net/proto"
	"arena/server/internal/sim"
	"arena/server/internal/state"
)

// quantize rounds v to the nearest multiple of q. A non-positive quantum
// leaves the value at float32 precision.
func quantize(v, q float64) float32 {
	if q <= 0 {
		return float32(v)
	}
	return float32(math.Round(v/q) * q)
}

type quantizer struct {
	position float64
	angle    float64
	velocity float64
}

func newQuantizer(cfg config.Delta) quantizer {
	return quantizer{position: cfg.PositionQuantum, angle: cfg.AngleQuantum, velocity: cfg.VelocityQuantum}
}

func (q quantizer) player(p *state.Player) proto.PlayerInfo {
	info := sim.PlayerInfo(p)
	info.X = quantize(p.X, q.position)
	info.Y = quantize(p.Y, q.position)
	info.Angle = quantize(p.Angle, q.angle)
	return info
}

func (q quantizer) projectile(p *state.Projectile) proto.ProjectileInfo {
	info := sim.ProjectileInfo(p)
	info.X = quantize(p.X, q.position)
	info.Y = quantize(p.Y, q.position)
	info.VX = quantize(p.VX, q.velocity)
	info.VY = quantize(p.VY, q.velocity)
	return info
}

func (q quantizer) pickup(p *state.Pickup) proto.PickupInfo {
	info := sim.PickupInfo(p)
	info.X = quantize(p.X, q.position)
	info.Y = quantize(p.Y, q.position)
	return info
}

// angleDelta is the absolute angular distance between a and b in [0, pi].
func angleDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
