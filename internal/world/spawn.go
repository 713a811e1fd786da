package world

import (
	"math"
	"math/rand"

	"arena/server/internal/state"
)

// Spawn search budgets. Separation factors multiply the player size.
const (
	JoinSpawnAttempts       = 100
	JoinSeparationFactor    = 3.0
	RespawnAttempts         = 50
	RespawnSeparationFactor = 2.0
	PickupSpawnAttempts     = 50

	// JoinFallbackOffset places the join fallback just inside the top-left
	// border wall.
	JoinFallbackOffset = 60.0
)

// SpawnRule describes one bounded random search for a player position.
type SpawnRule struct {
	Attempts   int
	Separation float64
	Size       float64
	FallbackX  float64
	FallbackY  float64
}

// JoinRule is the search used for new players.
func JoinRule(playerSize float64) SpawnRule {
	return SpawnRule{
		Attempts:   JoinSpawnAttempts,
		Separation: playerSize * JoinSeparationFactor,
		Size:       playerSize,
		FallbackX:  JoinFallbackOffset,
		FallbackY:  JoinFallbackOffset,
	}
}

// RespawnRule is the search used when a dead player re-enters play.
func RespawnRule(playerSize, width, height float64) SpawnRule {
	return SpawnRule{
		Attempts:   RespawnAttempts,
		Separation: playerSize * RespawnSeparationFactor,
		Size:       playerSize,
		FallbackX:  width / 2,
		FallbackY:  height / 2,
	}
}

// SpawnResult reports where the search landed and how.
type SpawnResult struct {
	X, Y     float64
	Fallback bool
	Swept    bool
}

// FindSpawn picks a player centre that does not overlap terrain and keeps
// Separation from every other live player. After Attempts random tries it
// uses the fallback point; if terrain blocks that too, it sweeps the grid for
// the first free cell.
func FindSpawn(rng *rand.Rand, store *state.Store, rule SpawnRule, exclude uint32) SpawnResult {
	half := rule.Size / 2
	for range rule.Attempts {
		x := randomBetween(rng, half, store.Width-half)
		y := randomBetween(rng, half, store.Height-half)
		if freeCell(store, x, y, rule, exclude) {
			return SpawnResult{X: x, Y: y}
		}
	}

	fallback := state.CenteredRect(rule.FallbackX, rule.FallbackY, rule.Size)
	if store.InBounds(fallback) && !store.CollidesTerrain(fallback) {
		return SpawnResult{X: rule.FallbackX, Y: rule.FallbackY, Fallback: true}
	}

	for y := half; y+half <= store.Height; y += rule.Size {
		for x := half; x+half <= store.Width; x += rule.Size {
			if !store.CollidesTerrain(state.CenteredRect(x, y, rule.Size)) {
				return SpawnResult{X: x, Y: y, Fallback: true, Swept: true}
			}
		}
	}
	return SpawnResult{X: rule.FallbackX, Y: rule.FallbackY, Fallback: true}
}

func freeCell(store *state.Store, x, y float64, rule SpawnRule, exclude uint32) bool {
	if store.CollidesTerrain(state.CenteredRect(x, y, rule.Size)) {
		return false
	}
	for _, other := range store.Players() {
		if other.ID == exclude || !other.Alive {
			continue
		}
		if math.Hypot(x-other.X, y-other.Y) < rule.Separation {
			return false
		}
	}
	return true
}

// FindPickupSpot returns a top-left position for a pickup that overlaps
// neither terrain nor a live player. There is no fallback.
func FindPickupSpot(rng *rand.Rand, store *state.Store, pickupSize, playerSize float64) (float64, float64, bool) {
	players := store.Players()
	for range PickupSpawnAttempts {
		x := rng.Float64() * (store.Width - pickupSize)
		y := rng.Float64() * (store.Height - pickupSize)
		r := state.Rect{X: x, Y: y, W: pickupSize, H: pickupSize}
		if store.CollidesTerrain(r) {
			continue
		}
		blocked := false
		for _, p := range players {
			if p.Alive && r.Overlaps(p.Bounds(playerSize)) {
				blocked = true
				break
			}
		}
		if !blocked {
			return x, y, true
		}
	}
	return 0, 0, false
}
