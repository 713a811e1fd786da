package sim

import (
	"math"
	"time"

	"arena/server/internal/net/proto"
	"arena/server/internal/state"
	"arena/server/logging"
	loggingCombat "arena/server/logging/combat"
)

const (
	// muzzleGap separates a fresh projectile from its owner's edge.
	muzzleGap = 4.0

	killScore = 100
	hitScore  = 10

	boostMultiplier  = 1.5
	shieldMultiplier = 0.5
)

func (a *Arena) combatAllowed() bool {
	return a.store.Round.Phase == state.PhasePlaying
}

// cooldown halves base while rapid fire is active.
func cooldown(p *state.Player, base time.Duration) time.Duration {
	if p.Buffs.RapidFire.Active {
		return base / 2
	}
	return base
}

func boosted(p *state.Player, damage int) int {
	if p.Buffs.DamageBoost.Active {
		return int(math.Floor(float64(damage) * boostMultiplier))
	}
	return damage
}

func ready(last, now time.Time, wait time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= wait
}

func (a *Arena) shoot(cmd Command) bool {
	p, ok := a.store.Player(cmd.ActorID)
	if !ok || !p.Alive || cmd.Aim == nil || !a.combatAllowed() {
		return false
	}
	if !ready(p.LastShotAt, a.now, cooldown(p, a.cfg.ShotCooldown)) {
		return false
	}
	if !finite(cmd.Aim.X) || !finite(cmd.Aim.Y) {
		return false
	}

	dx, dy := cmd.Aim.X-p.X, cmd.Aim.Y-p.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		dx, dy = math.Cos(p.Angle), math.Sin(p.Angle)
	} else {
		dx, dy = dx/dist, dy/dist
	}

	offset := a.cfg.PlayerSize/2 + muzzleGap
	a.store.AddProjectile(&state.Projectile{
		ID:        a.deps.NewID(),
		X:         p.X + dx*offset,
		Y:         p.Y + dy*offset,
		VX:        dx * a.cfg.ProjectileSpeed,
		VY:        dy * a.cfg.ProjectileSpeed,
		OwnerID:   p.ID,
		Damage:    boosted(p, a.cfg.ProjectileDamage),
		Remaining: a.cfg.ProjectileLifetime,
	})
	p.LastShotAt = a.now
	return true
}

// melee swings at the nearest live player in range. The swing is announced
// even when it misses.
func (a *Arena) melee(cmd Command) bool {
	p, ok := a.store.Player(cmd.ActorID)
	if !ok || !p.Alive || cmd.Aim == nil || !a.combatAllowed() {
		return false
	}
	if !ready(p.LastMeleeAt, a.now, cooldown(p, a.cfg.MeleeCooldown)) {
		return false
	}
	p.LastMeleeAt = a.now

	angle := p.Angle
	if finite(cmd.Aim.X) && finite(cmd.Aim.Y) && (cmd.Aim.X != p.X || cmd.Aim.Y != p.Y) {
		angle = math.Atan2(cmd.Aim.Y-p.Y, cmd.Aim.X-p.X)
	}

	var target *state.Player
	best := a.cfg.MeleeRange
	for _, other := range a.store.Players() {
		if other.ID == p.ID || !other.Alive {
			continue
		}
		if d := math.Hypot(other.X-p.X, other.Y-p.Y); d <= best {
			best = d
			target = other
		}
	}

	msg := &proto.MeleeAttack{
		AttackerID: p.ID,
		X:          float32(p.X),
		Y:          float32(p.Y),
		Angle:      float32(angle),
		Range:      float32(a.cfg.MeleeRange),
	}
	if target != nil {
		msg.TargetID = target.ID
	}
	a.emit(msg)

	if target != nil {
		a.applyDamage(p.ID, target, boosted(p, a.cfg.MeleeDamage), state.WeaponMelee, "")
	}
	return true
}

// applyDamage resolves one hit. The attacker may have left already, in
// which case the damage still lands but nobody is credited.
func (a *Arena) applyDamage(attackerID uint32, target *state.Player, damage int, weapon state.Weapon, projectileID string) {
	if !target.Alive {
		return
	}
	shielded := target.Buffs.Shield.Active
	if shielded {
		damage = int(math.Floor(float64(damage) * shieldMultiplier))
	}
	before := target.Health
	target.Health = max(target.Health-damage, 0)
	killed := target.Health == 0

	attacker, present := a.store.Player(attackerID)
	if killed {
		target.Kill(a.cfg.RespawnDelay)
	}

	a.emit(&proto.PlayerHit{
		TargetID:     target.ID,
		AttackerID:   attackerID,
		Weapon:       string(weapon),
		ProjectileID: projectileID,
		Damage:       clampU8(damage),
		Health:       clampU8(target.Health),
		Killed:       killed,
	})
	a.deps.Metrics.Add(metricHits, 1)

	loggingCombat.PlayerHit(a.ctx(), a.deps.Publisher, a.tick, logging.PlayerRef(attackerID), logging.PlayerRef(target.ID), loggingCombat.HitPayload{
		Weapon:       string(weapon),
		Damage:       damage,
		HealthBefore: before,
		HealthAfter:  target.Health,
		Shielded:     shielded,
	})

	if !present {
		return
	}
	if !killed {
		attacker.Score += hitScore
		return
	}

	attacker.Score += killScore
	entry := state.KillFeedEntry{Killer: attacker.Name, Victim: target.Name, Weapon: weapon, At: a.now}
	a.store.AppendKill(entry)
	a.emit(&proto.KillFeed{Entry: a.killInfo(entry)})
	a.deps.Metrics.Add(metricKills, 1)

	loggingCombat.PlayerKilled(a.ctx(), a.deps.Publisher, a.tick, logging.PlayerRef(attacker.ID), logging.PlayerRef(target.ID), loggingCombat.KillPayload{
		Weapon: string(weapon),
		Killer: attacker.Name,
		Victim: target.Name,
	})
}

func (a *Arena) killInfo(entry state.KillFeedEntry) proto.KillInfo {
	at := entry.At.Sub(a.store.Round.StartedAt)
	return proto.KillInfo{
		Killer: entry.Killer,
		Victim: entry.Victim,
		Weapon: string(entry.Weapon),
		Time:   proto.DurationMillis(at),
	}
}

// advanceProjectiles moves every projectile one tick and resolves what it
// hits. A projectile is removed at most once.
func (a *Arena) advanceProjectiles(dt time.Duration) {
	seconds := dt.Seconds()
	for _, proj := range a.store.Projectiles() {
		proj.Remaining -= dt
		if proj.Remaining <= 0 {
			a.store.RemoveProjectile(proj.ID)
			continue
		}

		nextX := proj.X + proj.VX*seconds
		nextY := proj.Y + proj.VY*seconds
		next := state.CenteredRect(nextX, nextY, a.cfg.ProjectileSize)
		if !a.store.InBounds(next) {
			a.store.RemoveProjectile(proj.ID)
			continue
		}
		if a.store.CollidesTerrain(next) {
			if a.store.RemoveProjectile(proj.ID) {
				a.emit(&proto.BulletHitWall{ProjectileID: proj.ID, X: float32(proj.X), Y: float32(proj.Y)})
			}
			continue
		}
		proj.X, proj.Y = nextX, nextY

		for _, p := range a.store.Players() {
			if p.ID == proj.OwnerID || !p.Alive {
				continue
			}
			if next.Overlaps(p.Bounds(a.cfg.PlayerSize)) {
				if a.store.RemoveProjectile(proj.ID) {
					a.applyDamage(proj.OwnerID, p, proj.Damage, state.WeaponRanged, proj.ID)
				}
				break
			}
		}
	}
}
