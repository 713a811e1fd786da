package state

import "time"

// PlayerColors is the fixed palette assigned by player id.
var PlayerColors = [...]string{
	"#e74c3c",
	"#3498db",
	"#2ecc71",
	"#f39c12",
	"#9b59b6",
	"#1abc9c",
	"#e67e22",
	"#34495e",
	"#f1c40f",
	"#e91e63",
}

// ColorFor maps ids starting at 1 onto the palette.
func ColorFor(id uint32) string {
	if id == 0 {
		return PlayerColors[0]
	}
	return PlayerColors[(id-1)%uint32(len(PlayerColors))]
}

type BuffKind uint8

const (
	BuffShield BuffKind = iota
	BuffRapidFire
	BuffDamageBoost
)

func (k BuffKind) String() string {
	switch k {
	case BuffShield:
		return "shield"
	case BuffRapidFire:
		return "rapid_fire"
	case BuffDamageBoost:
		return "damage_boost"
	default:
		return "unknown"
	}
}

// Buff is a timed modifier. EndsAt is only meaningful while Active.
type Buff struct {
	Active bool
	EndsAt time.Time
}

type Buffs struct {
	Shield      Buff
	RapidFire   Buff
	DamageBoost Buff
}

func (b *Buffs) Get(kind BuffKind) *Buff {
	switch kind {
	case BuffShield:
		return &b.Shield
	case BuffRapidFire:
		return &b.RapidFire
	case BuffDamageBoost:
		return &b.DamageBoost
	default:
		return nil
	}
}

// Activate starts or refreshes kind for duration from now.
func (b *Buffs) Activate(kind BuffKind, now time.Time, duration time.Duration) {
	if buff := b.Get(kind); buff != nil {
		buff.Active = true
		buff.EndsAt = now.Add(duration)
	}
}

// Expire deactivates every buff whose end time has passed and returns how
// many changed.
func (b *Buffs) Expire(now time.Time) int {
	expired := 0
	for _, buff := range []*Buff{&b.Shield, &b.RapidFire, &b.DamageBoost} {
		if buff.Active && !now.Before(buff.EndsAt) {
			buff.Active = false
			expired++
		}
	}
	return expired
}

func (b *Buffs) Clear() {
	*b = Buffs{}
}

// Player is a connected participant. X and Y are the centre of its square.
type Player struct {
	ID     uint32
	Name   string
	X, Y   float64
	Angle  float64
	Health int
	Score  int
	Alive  bool
	Color  string
	Buffs  Buffs

	VX, VY     float64
	Moving     bool
	LastMoveAt time.Time

	LastShotAt  time.Time
	LastMeleeAt time.Time

	// RespawnIn counts down while the player is dead.
	RespawnIn time.Duration
	JoinedAt  time.Time
}

func NewPlayer(id uint32, name string, x, y float64, maxHealth int, now time.Time) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		X:        x,
		Y:        y,
		Health:   maxHealth,
		Alive:    true,
		Color:    ColorFor(id),
		JoinedAt: now,
	}
}

// Bounds returns the collision rectangle for a player of the given size.
func (p *Player) Bounds(size float64) Rect {
	return CenteredRect(p.X, p.Y, size)
}

// Kill marks the player dead and arms the respawn countdown.
func (p *Player) Kill(respawnDelay time.Duration) {
	p.Health = 0
	p.Alive = false
	p.RespawnIn = respawnDelay
	p.Moving = false
	p.VX, p.VY = 0, 0
}

// Revive restores a dead player at (x, y) with full health.
func (p *Player) Revive(x, y float64, maxHealth int) {
	p.X, p.Y = x, y
	p.Health = maxHealth
	p.Alive = true
	p.RespawnIn = 0
}

// ResetForRound clears per-round progress.
func (p *Player) ResetForRound(x, y float64, maxHealth int) {
	p.Revive(x, y, maxHealth)
	p.Score = 0
	p.Angle = 0
	p.Buffs.Clear()
	p.Moving = false
	p.VX, p.VY = 0, 0
	p.LastShotAt = time.Time{}
	p.LastMeleeAt = time.Time{}
}

func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	cloned := *p
	return &cloned
}
