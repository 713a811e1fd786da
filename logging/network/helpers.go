package network

import (
	"context"

	"arena/server/logging"
)

const (
	// EventQualityChanged is emitted when a connection moves between quality tiers.
	EventQualityChanged logging.EventType = "network.quality_changed"
	// EventMessageDropped is emitted when an inbound message is discarded.
	EventMessageDropped logging.EventType = "network.message_dropped"
	// EventConnectionClosed is emitted when the server closes a connection.
	EventConnectionClosed logging.EventType = "network.connection_closed"
)

// QualityPayload captures a tier transition.
type QualityPayload struct {
	Previous  string `json:"previous"`
	Current   string `json:"current"`
	RTTMillis int64  `json:"rttMillis"`
}

// DroppedPayload captures why an inbound message was discarded.
type DroppedPayload struct {
	Reason      string `json:"reason"`
	MessageType string `json:"messageType,omitempty"`
	Bytes       int    `json:"bytes"`
}

// ClosedPayload captures why a connection was closed by the server.
type ClosedPayload struct {
	Reason string `json:"reason"`
}

// QualityChanged publishes a debug event when a connection changes tier.
func QualityChanged(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload QualityPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventQualityChanged,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// MessageDropped publishes a warning for discarded inbound traffic.
func MessageDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload DroppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMessageDropped,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// ConnectionClosed publishes a server-initiated close.
func ConnectionClosed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ClosedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventConnectionClosed,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
