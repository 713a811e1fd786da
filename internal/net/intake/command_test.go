package intake

import (
	"errors"
	"testing"
	"time"

	"arena/server/internal/config"
	"arena/server/internal/net/proto"
	"arena/server/internal/sim"
)

type fakeEngine struct {
	enqueueOK     bool
	enqueueReason string
	commands      []sim.Command
}

func (f *fakeEngine) Enqueue(cmd sim.Command) (bool, string) {
	f.commands = append(f.commands, cmd)
	if f.enqueueOK {
		return true, ""
	}
	if f.enqueueReason == "" {
		f.enqueueReason = sim.CommandRejectQueueLimit
	}
	return false, f.enqueueReason
}

func TestStageClientCommandAcceptsMove(t *testing.T) {
	engine := &fakeEngine{enqueueOK: true}
	issuedAt := time.Unix(100, 0)
	ctx := CommandContext{
		Engine: engine,
		Tick:   func() uint64 { return 42 },
		Now:    func() time.Time { return issuedAt },
	}

	cmd, err := StageClientCommand(ctx, 9, 3, &proto.Move{X: 10, Y: 20, Angle: 0.5})
	if err != nil {
		t.Fatalf("expected move to be accepted: %v", err)
	}
	if cmd.Type != sim.CommandMove || cmd.Move == nil {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if cmd.ActorID != 3 || cmd.ConnID != 9 {
		t.Fatalf("unexpected identity actor=%d conn=%d", cmd.ActorID, cmd.ConnID)
	}
	if cmd.OriginTick != 42 || !cmd.IssuedAt.Equal(issuedAt) {
		t.Fatalf("unexpected stamps tick=%d at=%s", cmd.OriginTick, cmd.IssuedAt)
	}
	if cmd.Move.X != 10 || cmd.Move.Y != 20 || cmd.Move.Angle != 0.5 {
		t.Fatalf("unexpected move payload %+v", cmd.Move)
	}
	if len(engine.commands) != 1 {
		t.Fatalf("expected one enqueued command, got %d", len(engine.commands))
	}
}

func TestStageClientCommandJoinState(t *testing.T) {
	engine := &fakeEngine{enqueueOK: true}
	ctx := CommandContext{Engine: engine}

	if _, err := StageClientCommand(ctx, 1, 0, &proto.Shoot{X: 1, Y: 1}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected shoot before join to be invalid, got %v", err)
	}
	cmd, err := StageClientCommand(ctx, 1, 0, &proto.Join{Name: "ann"})
	if err != nil {
		t.Fatalf("expected join to be accepted: %v", err)
	}
	if cmd.Type != sim.CommandJoin || cmd.Join.Name != "ann" || cmd.ConnID != 1 {
		t.Fatalf("unexpected join command %+v", cmd)
	}
	if _, err := StageClientCommand(ctx, 1, 5, &proto.Join{Name: "again"}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected second join to be invalid, got %v", err)
	}
}

func TestStageClientCommandRejectsServerMessages(t *testing.T) {
	engine := &fakeEngine{enqueueOK: true}
	if _, err := StageClientCommand(CommandContext{Engine: engine}, 1, 2, &proto.Ping{ClientTime: 1}); !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected ping to be rejected as a command, got %v", err)
	}
	if len(engine.commands) != 0 {
		t.Fatalf("expected nothing enqueued")
	}
}

func TestStageClientCommandPropagatesBackpressure(t *testing.T) {
	engine := &fakeEngine{enqueueReason: sim.CommandRejectQueueFull}
	_, err := StageClientCommand(CommandContext{Engine: engine}, 1, 2, &proto.Chat{Text: "hi"})
	if !errors.Is(err, ErrCommandRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestTranslateAimCommands(t *testing.T) {
	for _, msg := range []proto.Message{&proto.Shoot{X: 3, Y: 4}, &proto.Melee{X: 3, Y: 4}} {
		cmd, err := Translate(msg)
		if err != nil {
			t.Fatalf("translate %s: %v", msg.Type(), err)
		}
		if cmd.Aim == nil || cmd.Aim.X != 3 || cmd.Aim.Y != 4 {
			t.Fatalf("unexpected aim for %s: %+v", msg.Type(), cmd.Aim)
		}
	}
	if cmd, err := Translate(&proto.Respawn{}); err != nil || cmd.Type != sim.CommandRespawn {
		t.Fatalf("unexpected respawn translation %+v %v", cmd, err)
	}
}

func TestLimiterPerType(t *testing.T) {
	l := NewLimiter(config.RateLimits{Move: 60, Chat: 5, Ping: 2})
	now := time.Unix(100, 0)

	for i := range 5 {
		if err := l.Allow(proto.TypeChat, now); err != nil {
			t.Fatalf("chat %d rejected inside burst: %v", i, err)
		}
	}
	if err := l.Allow(proto.TypeChat, now); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected sixth chat to be limited, got %v", err)
	}
	if err := l.Allow(proto.TypeChat, now.Add(250*time.Millisecond)); err != nil {
		t.Fatalf("expected a token to refill after 200ms: %v", err)
	}

	for i := range 60 {
		if err := l.Allow(proto.TypeMove, now); err != nil {
			t.Fatalf("move %d rejected inside burst: %v", i, err)
		}
	}
	if err := l.Allow(proto.TypeMove, now); err == nil {
		t.Fatalf("expected move burst to be exhausted")
	}

	for range 100 {
		if err := l.Allow(proto.TypeShoot, now); err != nil {
			t.Fatalf("shoot must never be limited: %v", err)
		}
	}
}

func TestLimiterZeroDisables(t *testing.T) {
	l := NewLimiter(config.RateLimits{})
	now := time.Unix(100, 0)
	for range 1000 {
		if err := l.Allow(proto.TypeChat, now); err != nil {
			t.Fatalf("expected no limit: %v", err)
		}
	}
}
