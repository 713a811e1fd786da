package sim

import (
	"arena/server/internal/net/proto"
	"arena/server/internal/state"
	"arena/server/internal/world"
)

// updatePickups resolves collection, expiry and the periodic spawner.
// Collection and spawning only happen while a round is being played.
func (a *Arena) updatePickups() {
	players := a.store.Players()
	playing := a.store.Round.Phase == state.PhasePlaying
	for _, pickup := range a.store.Pickups() {
		if a.cfg.PickupLifetime > 0 && a.now.Sub(pickup.SpawnedAt) >= a.cfg.PickupLifetime {
			a.store.RemovePickup(pickup.ID)
			continue
		}
		if !playing {
			continue
		}
		bounds := pickup.Bounds(a.cfg.PickupSize)
		for _, p := range players {
			if !p.Alive || !bounds.Overlaps(p.Bounds(a.cfg.PlayerSize)) {
				continue
			}
			a.collect(p, pickup)
			break
		}
	}

	if !playing {
		return
	}
	if a.now.Sub(a.lastPickupSpawn) < a.cfg.PickupSpawnInterval {
		return
	}
	a.lastPickupSpawn = a.now
	if a.store.PickupCount() >= a.cfg.PickupLiveCap {
		return
	}
	a.spawnPickup()
}

func (a *Arena) collect(p *state.Player, pickup *state.Pickup) {
	if !a.store.RemovePickup(pickup.ID) {
		return
	}
	if buff, ok := pickup.Kind.Buff(); ok {
		p.Buffs.Activate(buff, a.now, a.cfg.PickupDuration)
	} else {
		p.Health = a.cfg.MaxHealth
	}
	a.emit(&proto.PowerupPickedUp{PickupID: pickup.ID, PlayerID: p.ID, Kind: string(pickup.Kind)})
}

// spawnPickup places one random pickup. A crowded map simply skips the
// attempt until the next interval.
func (a *Arena) spawnPickup() {
	x, y, ok := world.FindPickupSpot(a.deps.RNG, a.store, a.cfg.PickupSize, a.cfg.PlayerSize)
	if !ok {
		return
	}
	kind := state.PickupKinds[a.deps.RNG.Intn(len(state.PickupKinds))]
	pickup := a.store.AddPickup(&state.Pickup{Kind: kind, X: x, Y: y, SpawnedAt: a.now})
	a.emit(&proto.PowerupSpawned{Pickup: PickupInfo(pickup)})
}
