package proto

const (
	playerInfoMinBytes     = 4 + 2 + 12 + 1 + 2 + 1 + 2 + 3
	projectileInfoMinBytes = 2 + 16 + 4 + 1
	pickupInfoMinBytes     = 4 + 2 + 8
	blockInfoMinBytes      = 4 + 16 + 2
	playerChangeMinBytes   = 4 + 2
)

// PlayerInfo is the full per-player record used by snapshots and joins.
type PlayerInfo struct {
	ID          uint32
	Name        string
	X, Y, Angle float32
	Health      uint8
	Score       uint16
	Alive       bool
	Color       string
	Shield      bool
	RapidFire   bool
	DamageBoost bool
}

func (p *PlayerInfo) encode(w *Writer) {
	w.Uint32(p.ID)
	w.Text(p.Name)
	w.Float32(p.X)
	w.Float32(p.Y)
	w.Float32(p.Angle)
	w.Uint8(p.Health)
	w.Uint16(p.Score)
	w.Bool(p.Alive)
	w.Text(p.Color)
	w.Bool(p.Shield)
	w.Bool(p.RapidFire)
	w.Bool(p.DamageBoost)
}

func (p *PlayerInfo) decode(r *Reader) {
	p.ID = r.Uint32()
	p.Name = r.Text()
	p.X = r.Float32()
	p.Y = r.Float32()
	p.Angle = r.Float32()
	p.Health = r.Uint8()
	p.Score = r.Uint16()
	p.Alive = r.Bool()
	p.Color = r.Text()
	p.Shield = r.Bool()
	p.RapidFire = r.Bool()
	p.DamageBoost = r.Bool()
}

// BuffFlags packs the three buff booleans.
func (p *PlayerInfo) BuffFlags() uint8 {
	var flags uint8
	if p.Shield {
		flags |= BuffShield
	}
	if p.RapidFire {
		flags |= BuffRapidFire
	}
	if p.DamageBoost {
		flags |= BuffDamageBoost
	}
	return flags
}

// SetBuffFlags unpacks flags produced by BuffFlags.
func (p *PlayerInfo) SetBuffFlags(flags uint8) {
	p.Shield = flags&BuffShield != 0
	p.RapidFire = flags&BuffRapidFire != 0
	p.DamageBoost = flags&BuffDamageBoost != 0
}

type ProjectileInfo struct {
	ID      string
	X, Y    float32
	VX, VY  float32
	OwnerID uint32
	Damage  uint8
}

func (p *ProjectileInfo) encode(w *Writer) {
	w.Text(p.ID)
	w.Float32(p.X)
	w.Float32(p.Y)
	w.Float32(p.VX)
	w.Float32(p.VY)
	w.Uint32(p.OwnerID)
	w.Uint8(p.Damage)
}

func (p *ProjectileInfo) decode(r *Reader) {
	p.ID = r.Text()
	p.X = r.Float32()
	p.Y = r.Float32()
	p.VX = r.Float32()
	p.VY = r.Float32()
	p.OwnerID = r.Uint32()
	p.Damage = r.Uint8()
}

// PickupInfo: Color and Icon are only on the wire where styled is true
// (GAME_STATE, POWERUP_SPAWNED, incremental new pickups).
type PickupInfo struct {
	ID    uint32
	Kind  string
	X, Y  float32
	Color string
	Icon  string
}

func (p *PickupInfo) encode(w *Writer, styled bool) {
	w.Uint32(p.ID)
	w.Text(p.Kind)
	w.Float32(p.X)
	w.Float32(p.Y)
	if styled {
		w.Text(p.Color)
		w.Text(p.Icon)
	}
}

func (p *PickupInfo) decode(r *Reader, styled bool) {
	p.ID = r.Uint32()
	p.Kind = r.Text()
	p.X = r.Float32()
	p.Y = r.Float32()
	if styled {
		p.Color = r.Text()
		p.Icon = r.Text()
	}
}

type BlockInfo struct {
	ID         uint32
	X, Y, W, H float32
	Material   string
}

func (b *BlockInfo) encode(w *Writer) {
	w.Uint32(b.ID)
	w.Float32(b.X)
	w.Float32(b.Y)
	w.Float32(b.W)
	w.Float32(b.H)
	w.Text(b.Material)
}

func (b *BlockInfo) decode(r *Reader) {
	b.ID = r.Uint32()
	b.X = r.Float32()
	b.Y = r.Float32()
	b.W = r.Float32()
	b.H = r.Float32()
	b.Material = r.Text()
}

func encodePlayers(w *Writer, players []PlayerInfo) {
	w.Count(len(players))
	for i := range players {
		players[i].encode(w)
	}
}

func decodePlayers(r *Reader) []PlayerInfo {
	players := make([]PlayerInfo, r.Count(playerInfoMinBytes))
	for i := range players {
		players[i].decode(r)
	}
	return players
}

func encodeProjectiles(w *Writer, projectiles []ProjectileInfo) {
	w.Count(len(projectiles))
	for i := range projectiles {
		projectiles[i].encode(w)
	}
}

func decodeProjectiles(r *Reader) []ProjectileInfo {
	projectiles := make([]ProjectileInfo, r.Count(projectileInfoMinBytes))
	for i := range projectiles {
		projectiles[i].decode(r)
	}
	return projectiles
}

func encodePickups(w *Writer, pickups []PickupInfo, styled bool) {
	w.Count(len(pickups))
	for i := range pickups {
		pickups[i].encode(w, styled)
	}
}

func decodePickups(r *Reader, styled bool) []PickupInfo {
	pickups := make([]PickupInfo, r.Count(pickupInfoMinBytes))
	for i := range pickups {
		pickups[i].decode(r, styled)
	}
	return pickups
}

// GameState is the baseline snapshot: every entity plus terrain.
type GameState struct {
	Players     []PlayerInfo
	Projectiles []ProjectileInfo
	Pickups     []PickupInfo
	Terrain     []BlockInfo
}

func (*GameState) Type() MessageType { return TypeGameState }

func (m *GameState) encode(w *Writer) {
	encodePlayers(w, m.Players)
	encodeProjectiles(w, m.Projectiles)
	encodePickups(w, m.Pickups, true)
	w.Count(len(m.Terrain))
	for i := range m.Terrain {
		m.Terrain[i].encode(w)
	}
}

func (m *GameState) decode(r *Reader) {
	m.Players = decodePlayers(r)
	m.Projectiles = decodeProjectiles(r)
	m.Pickups = decodePickups(r, true)
	m.Terrain = make([]BlockInfo, r.Count(blockInfoMinBytes))
	for i := range m.Terrain {
		m.Terrain[i].decode(r)
	}
}

// GameUpdate is the periodic full update: entities without terrain, then
// remaining round time (ms) and the ended flag.
type GameUpdate struct {
	Players       []PlayerInfo
	Projectiles   []ProjectileInfo
	Pickups       []PickupInfo
	RemainingTime uint32
	Ended         bool
}

func (*GameUpdate) Type() MessageType { return TypeGameUpdate }

func (m *GameUpdate) encode(w *Writer) {
	encodePlayers(w, m.Players)
	encodeProjectiles(w, m.Projectiles)
	encodePickups(w, m.Pickups, false)
	w.Uint32(m.RemainingTime)
	w.Bool(m.Ended)
}

func (m *GameUpdate) decode(r *Reader) {
	m.Players = decodePlayers(r)
	m.Projectiles = decodeProjectiles(r)
	m.Pickups = decodePickups(r, false)
	m.RemainingTime = r.Uint32()
	m.Ended = r.Bool()
}

// PlayerChange carries only the slots named by Mask.
type PlayerChange struct {
	ID          uint32
	Mask        FieldMask
	X, Y, Angle float32
	Health      uint8
	Score       uint16
	Alive       bool
	Buffs       uint8
}

func (c *PlayerChange) encode(w *Writer) {
	w.Uint32(c.ID)
	w.Uint16(uint16(c.Mask))
	if c.Mask.Has(FieldX) {
		w.Float32(c.X)
	}
	if c.Mask.Has(FieldY) {
		w.Float32(c.Y)
	}
	if c.Mask.Has(FieldAngle) {
		w.Float32(c.Angle)
	}
	if c.Mask.Has(FieldHealth) {
		w.Uint8(c.Health)
	}
	if c.Mask.Has(FieldScore) {
		w.Uint16(c.Score)
	}
	if c.Mask.Has(FieldAlive) {
		w.Bool(c.Alive)
	}
	if c.Mask.Has(FieldBuffs) {
		w.Uint8(c.Buffs)
	}
}

func (c *PlayerChange) decode(r *Reader) {
	c.ID = r.Uint32()
	c.Mask = FieldMask(r.Uint16())
	if c.Mask&^fieldAll != 0 {
		r.failf("unknown field bits")
		return
	}
	if c.Mask.Has(FieldX) {
		c.X = r.Float32()
	}
	if c.Mask.Has(FieldY) {
		c.Y = r.Float32()
	}
	if c.Mask.Has(FieldAngle) {
		c.Angle = r.Float32()
	}
	if c.Mask.Has(FieldHealth) {
		c.Health = r.Uint8()
	}
	if c.Mask.Has(FieldScore) {
		c.Score = r.Uint16()
	}
	if c.Mask.Has(FieldAlive) {
		c.Alive = r.Bool()
	}
	if c.Mask.Has(FieldBuffs) {
		c.Buffs = r.Uint8()
	}
}

// Apply copies the masked slots onto p.
func (c *PlayerChange) Apply(p *PlayerInfo) {
	if c.Mask.Has(FieldX) {
		p.X = c.X
	}
	if c.Mask.Has(FieldY) {
		p.Y = c.Y
	}
	if c.Mask.Has(FieldAngle) {
		p.Angle = c.Angle
	}
	if c.Mask.Has(FieldHealth) {
		p.Health = c.Health
	}
	if c.Mask.Has(FieldScore) {
		p.Score = c.Score
	}
	if c.Mask.Has(FieldAlive) {
		p.Alive = c.Alive
	}
	if c.Mask.Has(FieldBuffs) {
		p.SetBuffFlags(c.Buffs)
	}
}

// IncrementalUpdate: timestamp u32, remaining time u32, ended u8, then
// non-empty sections (tag u8, count u16, entries) closed by 0xFF.
type IncrementalUpdate struct {
	Timestamp          uint32
	RemainingTime      uint32
	Ended              bool
	NewPlayers         []PlayerInfo
	ChangedPlayers     []PlayerChange
	NewProjectiles     []ProjectileInfo
	RemovedProjectiles []string
	NewPickups         []PickupInfo
	RemovedPickups     []uint32
}

func (*IncrementalUpdate) Type() MessageType { return TypeIncrementalUpdate }

// Empty reports whether the update carries no entity sections.
func (m *IncrementalUpdate) Empty() bool {
	return len(m.NewPlayers) == 0 && len(m.ChangedPlayers) == 0 &&
		len(m.NewProjectiles) == 0 && len(m.RemovedProjectiles) == 0 &&
		len(m.NewPickups) == 0 && len(m.RemovedPickups) == 0
}

func (m *IncrementalUpdate) encode(w *Writer) {
	w.Uint32(m.Timestamp)
	w.Uint32(m.RemainingTime)
	w.Bool(m.Ended)
	if len(m.NewPlayers) > 0 {
		w.Uint8(sectionNewPlayers)
		encodePlayers(w, m.NewPlayers)
	}
	if len(m.ChangedPlayers) > 0 {
		w.Uint8(sectionChangedPlayers)
		w.Count(len(m.ChangedPlayers))
		for i := range m.ChangedPlayers {
			m.ChangedPlayers[i].encode(w)
		}
	}
	if len(m.NewProjectiles) > 0 {
		w.Uint8(sectionNewProjectiles)
		encodeProjectiles(w, m.NewProjectiles)
	}
	if len(m.RemovedProjectiles) > 0 {
		w.Uint8(sectionRemovedProjectiles)
		w.Count(len(m.RemovedProjectiles))
		for _, id := range m.RemovedProjectiles {
			w.Text(id)
		}
	}
	if len(m.NewPickups) > 0 {
		w.Uint8(sectionNewPickups)
		encodePickups(w, m.NewPickups, true)
	}
	if len(m.RemovedPickups) > 0 {
		w.Uint8(sectionRemovedPickups)
		w.Count(len(m.RemovedPickups))
		for _, id := range m.RemovedPickups {
			w.Uint32(id)
		}
	}
	w.Uint8(sectionEnd)
}

func (m *IncrementalUpdate) decode(r *Reader) {
	m.Timestamp = r.Uint32()
	m.RemainingTime = r.Uint32()
	m.Ended = r.Bool()
	seen := make(map[uint8]bool, 6)
	for r.Err() == nil {
		tag := r.Uint8()
		if r.Err() != nil {
			return
		}
		if tag == sectionEnd {
			return
		}
		if seen[tag] {
			r.failf("duplicate section")
			return
		}
		seen[tag] = true
		switch tag {
		case sectionNewPlayers:
			m.NewPlayers = decodePlayers(r)
		case sectionChangedPlayers:
			m.ChangedPlayers = make([]PlayerChange, r.Count(playerChangeMinBytes))
			for i := range m.ChangedPlayers {
				m.ChangedPlayers[i].decode(r)
			}
		case sectionNewProjectiles:
			m.NewProjectiles = decodeProjectiles(r)
		case sectionRemovedProjectiles:
			m.RemovedProjectiles = make([]string, r.Count(2))
			for i := range m.RemovedProjectiles {
				m.RemovedProjectiles[i] = r.Text()
			}
		case sectionNewPickups:
			m.NewPickups = decodePickups(r, true)
		case sectionRemovedPickups:
			m.RemovedPickups = make([]uint32, r.Count(4))
			for i := range m.RemovedPickups {
				m.RemovedPickups[i] = r.Uint32()
			}
		default:
			r.failf("unknown section tag")
			return
		}
	}
}
