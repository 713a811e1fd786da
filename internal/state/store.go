package state

import (
	"cmp"
	"slices"
)

// KillFeedWindow is how many recent kills are serialized.
const KillFeedWindow = 10

// Store holds the canonical world. It is not safe for concurrent use: the
// simulation loop is its only writer and the delta generator reads it on the
// same goroutine between ticks.
type Store struct {
	Width, Height float64

	players     map[uint32]*Player
	projectiles []*Projectile
	pickups     map[uint32]*Pickup
	terrain     []Block
	killFeed    []KillFeedEntry

	Round Round

	nextPlayerID uint32
	nextPickupID uint32
}

func NewStore(width, height float64) *Store {
	return &Store{
		Width:        width,
		Height:       height,
		players:      make(map[uint32]*Player),
		pickups:      make(map[uint32]*Pickup),
		Round:        Round{Phase: PhaseSuspended, Ended: true},
		nextPlayerID: 1,
		nextPickupID: 1,
	}
}

// NextPlayerID allocates a fresh player id. Ids are never reused.
func (s *Store) NextPlayerID() uint32 {
	id := s.nextPlayerID
	s.nextPlayerID++
	return id
}

func (s *Store) AddPlayer(p *Player) {
	if p == nil {
		return
	}
	s.players[p.ID] = p
}

func (s *Store) RemovePlayer(id uint32) (*Player, bool) {
	p, ok := s.players[id]
	if ok {
		delete(s.players, id)
	}
	return p, ok
}

// Player returns nil, false for unknown or departed ids.
func (s *Store) Player(id uint32) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// Players returns live pointers ordered by id.
func (s *Store) Players() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Player) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) PlayerCount() int {
	return len(s.players)
}

func (s *Store) AddProjectile(p *Projectile) {
	if p == nil {
		return
	}
	s.projectiles = append(s.projectiles, p)
}

// Projectiles returns projectiles in spawn order.
func (s *Store) Projectiles() []*Projectile {
	return slices.Clone(s.projectiles)
}

// RemoveProjectile reports false when id is not present, so a projectile can
// only be removed once.
func (s *Store) RemoveProjectile(id string) bool {
	idx := slices.IndexFunc(s.projectiles, func(p *Projectile) bool { return p.ID == id })
	if idx < 0 {
		return false
	}
	s.projectiles = slices.Delete(s.projectiles, idx, idx+1)
	return true
}

func (s *Store) ProjectileCount() int {
	return len(s.projectiles)
}

func (s *Store) ClearProjectiles() {
	s.projectiles = nil
}

// AddPickup assigns the next pickup id.
func (s *Store) AddPickup(p *Pickup) *Pickup {
	if p == nil {
		return nil
	}
	p.ID = s.nextPickupID
	s.nextPickupID++
	s.pickups[p.ID] = p
	return p
}

func (s *Store) RemovePickup(id uint32) bool {
	if _, ok := s.pickups[id]; !ok {
		return false
	}
	delete(s.pickups, id)
	return true
}

// Pickups returns live pickups ordered by id.
func (s *Store) Pickups() []*Pickup {
	out := make([]*Pickup, 0, len(s.pickups))
	for _, p := range s.pickups {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Pickup) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *Store) PickupCount() int {
	return len(s.pickups)
}

func (s *Store) ClearPickups() {
	clear(s.pickups)
}

// SetTerrain replaces the round's terrain.
func (s *Store) SetTerrain(blocks []Block) {
	s.terrain = slices.Clone(blocks)
}

func (s *Store) Terrain() []Block {
	return slices.Clone(s.terrain)
}

// CollidesTerrain reports whether r overlaps any terrain block.
func (s *Store) CollidesTerrain(r Rect) bool {
	for i := range s.terrain {
		if r.Overlaps(s.terrain[i].Rect) {
			return true
		}
	}
	return false
}

// InBounds reports whether r lies inside the world.
func (s *Store) InBounds(r Rect) bool {
	return r.Within(s.Width, s.Height)
}

func (s *Store) AppendKill(entry KillFeedEntry) {
	s.killFeed = append(s.killFeed, entry)
}

// RecentKills returns up to n most recent entries, oldest first.
func (s *Store) RecentKills(n int) []KillFeedEntry {
	start := max(len(s.killFeed)-n, 0)
	return slices.Clone(s.killFeed[start:])
}

func (s *Store) KillCount() int {
	return len(s.killFeed)
}

func (s *Store) ClearKillFeed() {
	s.killFeed = nil
}
