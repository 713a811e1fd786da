package round

import (
	"context"

	"arena/server/logging"
)

const (
	// EventRoundEnded is emitted when the round clock runs out.
	EventRoundEnded logging.EventType = "round.ended"
	// EventRoundReset is emitted when results expire and the world is rebuilt.
	EventRoundReset logging.EventType = "round.reset"
	// EventRoundStarted is emitted when play begins.
	EventRoundStarted logging.EventType = "round.started"
	// EventRoundSuspended is emitted when the last player leaves.
	EventRoundSuspended logging.EventType = "round.suspended"
)

// EndedPayload summarises the finished round.
type EndedPayload struct {
	Players int    `json:"players"`
	Kills   int    `json:"kills"`
	Leader  string `json:"leader,omitempty"`
	Score   int    `json:"score,omitempty"`
}

// ResetPayload describes the regenerated world.
type ResetPayload struct {
	TerrainBlocks int `json:"terrainBlocks"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    logging.WorldRef(),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRound,
		Payload:  payload,
	})
}

// Ended publishes the end of a round.
func Ended(ctx context.Context, pub logging.Publisher, tick uint64, payload EndedPayload) {
	publish(ctx, pub, EventRoundEnded, tick, payload)
}

// Reset publishes the world rebuild between rounds.
func Reset(ctx context.Context, pub logging.Publisher, tick uint64, payload ResetPayload) {
	publish(ctx, pub, EventRoundReset, tick, payload)
}

// Started publishes the start of play.
func Started(ctx context.Context, pub logging.Publisher, tick uint64) {
	publish(ctx, pub, EventRoundStarted, tick, nil)
}

// Suspended publishes the idle state entered when no players remain.
func Suspended(ctx context.Context, pub logging.Publisher, tick uint64) {
	publish(ctx, pub, EventRoundSuspended, tick, nil)
}
