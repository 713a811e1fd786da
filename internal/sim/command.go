package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandJoin    CommandType = "Join"
	CommandLeave   CommandType = "Leave"
	CommandMove    CommandType = "Move"
	CommandShoot   CommandType = "Shoot"
	CommandMelee   CommandType = "Melee"
	CommandRespawn CommandType = "Respawn"
	CommandChat    CommandType = "Chat"
)

// Lifecycle reports whether the command changes membership. Lifecycle
// commands bypass backpressure so joins and evictions are never lost.
func (t CommandType) Lifecycle() bool {
	return t == CommandJoin || t == CommandLeave
}

// JoinCommand requests a player for the connection in Command.ConnID.
type JoinCommand struct {
	Name string `json:"name"`
}

// LeaveCommand removes the actor. Reason is informational.
type LeaveCommand struct {
	Reason string `json:"reason"`
}

// MoveCommand carries the desired absolute position and facing.
type MoveCommand struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"angle"`
}

// AimCommand carries the world point a shot or swing targets.
type AimCommand struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ChatCommand struct {
	Text string `json:"text"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64        `json:"originTick"`
	ActorID    uint32        `json:"actorId"`
	ConnID     uint64        `json:"connId,omitempty"`
	Type       CommandType   `json:"type"`
	IssuedAt   time.Time     `json:"issuedAt"`
	Join       *JoinCommand  `json:"join,omitempty"`
	Leave      *LeaveCommand `json:"leave,omitempty"`
	Move       *MoveCommand  `json:"move,omitempty"`
	Aim        *AimCommand   `json:"aim,omitempty"`
	Chat       *ChatCommand  `json:"chat,omitempty"`
}
