package lifecycle

import (
	"context"

	"arena/server/logging"
)

const (
	// EventPlayerJoined is emitted when a player joins the world.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a player leaves the world.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventPlayerRespawned is emitted when a dead player re-enters play.
	EventPlayerRespawned logging.EventType = "lifecycle.player_respawned"
)

// PlayerJoinedPayload captures spawn metadata for a new player.
type PlayerJoinedPayload struct {
	Name   string  `json:"name"`
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// PlayerRespawnedPayload captures the respawn position.
type PlayerRespawnedPayload struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Fallback bool    `json:"fallback,omitempty"`
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPlayerDisconnected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// PlayerRespawned publishes a debug respawn event.
func PlayerRespawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerRespawnedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerRespawned,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
