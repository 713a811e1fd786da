// Package intake turns decoded client messages into simulation commands.
package intake

import (
	"errors"
	"fmt"
	"time"

	"arena/server/internal/net/proto"
	"arena/server/internal/sim"
)

var (
	// ErrInvalidCommand marks a message that cannot become a command, or one
	// that arrived in the wrong connection state.
	ErrInvalidCommand = errors.New("intake: invalid command")
	// ErrRateLimited marks a message dropped by its type's token bucket.
	ErrRateLimited = errors.New("intake: rate limited")
	// ErrCommandRejected wraps a backpressure reason from the command loop.
	ErrCommandRejected = errors.New("intake: command rejected")
)

// Enqueuer accepts staged commands. sim.Engine satisfies it.
type Enqueuer interface {
	Enqueue(sim.Command) (bool, string)
}

type CommandContext struct {
	Engine Enqueuer
	Tick   func() uint64
	Now    func() time.Time
}

// Translate maps a client message onto a command without an actor.
func Translate(msg proto.Message) (sim.Command, error) {
	switch m := msg.(type) {
	case *proto.Join:
		return sim.Command{Type: sim.CommandJoin, Join: &sim.JoinCommand{Name: m.Name}}, nil
	case *proto.Move:
		return sim.Command{Type: sim.CommandMove, Move: &sim.MoveCommand{
			X:     float64(m.X),
			Y:     float64(m.Y),
			Angle: float64(m.Angle),
		}}, nil
	case *proto.Shoot:
		return sim.Command{Type: sim.CommandShoot, Aim: &sim.AimCommand{X: float64(m.X), Y: float64(m.Y)}}, nil
	case *proto.Melee:
		return sim.Command{Type: sim.CommandMelee, Aim: &sim.AimCommand{X: float64(m.X), Y: float64(m.Y)}}, nil
	case *proto.Respawn:
		return sim.Command{Type: sim.CommandRespawn}, nil
	case *proto.Chat:
		return sim.Command{Type: sim.CommandChat, Chat: &sim.ChatCommand{Text: m.Text}}, nil
	default:
		return sim.Command{}, fmt.Errorf("%w: %s", ErrInvalidCommand, msg.Type())
	}
}

// StageClientCommand translates msg for the connection and enqueues it.
// actorID is zero until the connection has joined; only JOIN is accepted
// then, and JOIN is refused afterwards.
func StageClientCommand(ctx CommandContext, connID uint64, actorID uint32, msg proto.Message) (sim.Command, error) {
	var zero sim.Command

	command, err := Translate(msg)
	if err != nil {
		return zero, err
	}
	joining := command.Type == sim.CommandJoin
	if joining != (actorID == 0) {
		return zero, fmt.Errorf("%w: %s while joined=%t", ErrInvalidCommand, command.Type, actorID != 0)
	}

	command.ActorID = actorID
	command.ConnID = connID
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Engine == nil {
		return zero, fmt.Errorf("%w: %s", ErrCommandRejected, sim.CommandRejectQueueFull)
	}
	if ok, reason := ctx.Engine.Enqueue(command); !ok {
		return zero, fmt.Errorf("%w: %s", ErrCommandRejected, reason)
	}
	return command, nil
}
