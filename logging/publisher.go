package logging

import (
	"context"
	"strconv"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

type EntityKind string

const (
	EntityKindUnknown    EntityKind = "unknown"
	EntityKindPlayer     EntityKind = "player"
	EntityKindProjectile EntityKind = "projectile"
	EntityKindPickup     EntityKind = "pickup"
	EntityKindConnection EntityKind = "connection"
	EntityKindWorld      EntityKind = "world"
)

type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// PlayerRef names a player by numeric id.
func PlayerRef(id uint32) EntityRef {
	return EntityRef{ID: strconv.FormatUint(uint64(id), 10), Kind: EntityKindPlayer}
}

// ConnectionRef names a transport connection.
func ConnectionRef(id uint64) EntityRef {
	return EntityRef{ID: strconv.FormatUint(id, 10), Kind: EntityKindConnection}
}

// WorldRef is the actor for round-level events.
func WorldRef() EntityRef {
	return EntityRef{Kind: EntityKindWorld}
}

const (
	CategoryGameplay  = "gameplay"
	CategoryCombat    = "combat"
	CategoryLifecycle = "lifecycle"
	CategoryNetwork   = "network"
	CategoryRound     = "round"
	CategorySystem    = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	p.next.Publish(ctx, withFields(event, p.fields))
}

func withFields(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	event = cloneEvent(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

func cloneEvent(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

// CloneEvent returns a copy whose Targets and Extra can be mutated freely.
func CloneEvent(event Event) Event {
	return cloneEvent(event)
}

func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldPublisher{next: p, fields: copied}
}
