package sim

import "arena/server/internal/net/proto"

// EventKind separates wire messages from hub bookkeeping signals.
type EventKind uint8

const (
	// EventMessage carries a server message for the Audience.
	EventMessage EventKind = iota
	// EventJoined binds ConnID to PlayerID; the hub answers with JOINED and
	// a baseline GAME_STATE.
	EventJoined
	// EventWorldReset asks the hub to send every connection a fresh baseline.
	EventWorldReset
)

type Audience uint8

const (
	AudienceAll Audience = iota
	// AudienceOthers excludes PlayerID.
	AudienceOthers
	// AudienceConn targets ConnID only.
	AudienceConn
)

// Event is produced during a tick and drained by the loop.
type Event struct {
	Kind     EventKind
	Tick     uint64
	Audience Audience
	ConnID   uint64
	PlayerID uint32
	Message  proto.Message
}
