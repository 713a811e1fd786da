package combat

import (
	"context"

	"arena/server/logging"
)

const (
	// EventPlayerHit is emitted when damage lands on a player.
	EventPlayerHit logging.EventType = "combat.player_hit"
	// EventPlayerKilled is emitted when a hit reduces a player to zero health.
	EventPlayerKilled logging.EventType = "combat.player_killed"
)

// HitPayload describes one damage application.
type HitPayload struct {
	Weapon       string `json:"weapon"`
	Damage       int    `json:"damage"`
	HealthBefore int    `json:"healthBefore"`
	HealthAfter  int    `json:"healthAfter"`
	Shielded     bool   `json:"shielded,omitempty"`
}

// KillPayload describes a kill-feed entry.
type KillPayload struct {
	Weapon string `json:"weapon"`
	Killer string `json:"killer"`
	Victim string `json:"victim"`
}

// PlayerHit publishes a debug event for a non-lethal or lethal hit.
func PlayerHit(ctx context.Context, pub logging.Publisher, tick uint64, attacker, target logging.EntityRef, payload HitPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerHit,
		Tick:     tick,
		Actor:    attacker,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// PlayerKilled publishes a kill.
func PlayerKilled(ctx context.Context, pub logging.Publisher, tick uint64, killer, victim logging.EntityRef, payload KillPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerKilled,
		Tick:     tick,
		Actor:    killer,
		Targets:  []logging.EntityRef{victim},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
