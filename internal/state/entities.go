package state

import "time"

// Projectile is an in-flight shot. X and Y are its centre; VX and VY are in
// units per second.
type Projectile struct {
	ID        string
	X, Y      float64
	VX, VY    float64
	OwnerID   uint32
	Damage    int
	Remaining time.Duration
}

func (p *Projectile) Bounds(size float64) Rect {
	return CenteredRect(p.X, p.Y, size)
}

type PickupKind string

const (
	PickupShield      PickupKind = "shield"
	PickupRapidFire   PickupKind = "rapid_fire"
	PickupDamageBoost PickupKind = "damage_boost"
	PickupHeal        PickupKind = "heal"
)

// PickupKinds lists every spawnable kind.
var PickupKinds = [...]PickupKind{PickupShield, PickupRapidFire, PickupDamageBoost, PickupHeal}

// Buff maps a kind onto the buff it grants. Heal grants none.
func (k PickupKind) Buff() (BuffKind, bool) {
	switch k {
	case PickupShield:
		return BuffShield, true
	case PickupRapidFire:
		return BuffRapidFire, true
	case PickupDamageBoost:
		return BuffDamageBoost, true
	default:
		return 0, false
	}
}

func (k PickupKind) Color() string {
	switch k {
	case PickupShield:
		return "#9b59b6"
	case PickupRapidFire:
		return "#e67e22"
	case PickupDamageBoost:
		return "#e74c3c"
	case PickupHeal:
		return "#27ae60"
	default:
		return "#95a5a6"
	}
}

func (k PickupKind) Icon() string {
	switch k {
	case PickupShield:
		return "◊"
	case PickupRapidFire:
		return "▲"
	case PickupDamageBoost:
		return "●"
	case PickupHeal:
		return "❤"
	default:
		return "?"
	}
}

// Pickup is a collectible. X and Y are its top-left corner.
type Pickup struct {
	ID        uint32
	Kind      PickupKind
	X, Y      float64
	SpawnedAt time.Time
}

func (p *Pickup) Bounds(size float64) Rect {
	return Rect{X: p.X, Y: p.Y, W: size, H: size}
}

type Material string

const (
	MaterialWall   Material = "wall"
	MaterialRock   Material = "rock"
	MaterialCrate  Material = "crate"
	MaterialBarrel Material = "barrel"
)

var Materials = [...]Material{MaterialWall, MaterialRock, MaterialCrate, MaterialBarrel}

// Block is a solid terrain rectangle. Material only affects rendering.
type Block struct {
	ID       uint32
	Rect     Rect
	Material Material
}

type Weapon string

const (
	WeaponRanged Weapon = "ranged"
	WeaponMelee  Weapon = "melee"
)

type KillFeedEntry struct {
	Killer string
	Victim string
	Weapon Weapon
	At     time.Time
}
