package sim

import (
	"math"

	"arena/server/internal/net/proto"
	"arena/server/internal/state"
)

// PlayerInfo converts a player to its wire record at full precision.
func PlayerInfo(p *state.Player) proto.PlayerInfo {
	return proto.PlayerInfo{
		ID:          p.ID,
		Name:        p.Name,
		X:           float32(p.X),
		Y:           float32(p.Y),
		Angle:       float32(p.Angle),
		Health:      clampU8(p.Health),
		Score:       clampU16(p.Score),
		Alive:       p.Alive,
		Color:       p.Color,
		Shield:      p.Buffs.Shield.Active,
		RapidFire:   p.Buffs.RapidFire.Active,
		DamageBoost: p.Buffs.DamageBoost.Active,
	}
}

func ProjectileInfo(p *state.Projectile) proto.ProjectileInfo {
	return proto.ProjectileInfo{
		ID:      p.ID,
		X:       float32(p.X),
		Y:       float32(p.Y),
		VX:      float32(p.VX),
		VY:      float32(p.VY),
		OwnerID: p.OwnerID,
		Damage:  clampU8(p.Damage),
	}
}

func PickupInfo(p *state.Pickup) proto.PickupInfo {
	return proto.PickupInfo{
		ID:    p.ID,
		Kind:  string(p.Kind),
		X:     float32(p.X),
		Y:     float32(p.Y),
		Color: p.Kind.Color(),
		Icon:  p.Kind.Icon(),
	}
}

func BlockInfo(b state.Block) proto.BlockInfo {
	return proto.BlockInfo{
		ID:       b.ID,
		X:        float32(b.Rect.X),
		Y:        float32(b.Rect.Y),
		W:        float32(b.Rect.W),
		H:        float32(b.Rect.H),
		Material: string(b.Material),
	}
}

func clampU8(v int) uint8 {
	return uint8(min(max(v, 0), math.MaxUint8))
}

func clampU16(v int) uint16 {
	return uint16(min(max(v, 0), math.MaxUint16))
}
