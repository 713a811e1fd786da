package sim

import "testing"

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{ActorID: 1},
		{ActorID: 2},
		{ActorID: 3},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{ActorID: 99}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != cmds[i].ActorID {
			t.Fatalf("expected drain order %v, got %v", cmds[i].ActorID, cmd.ActorID)
		}
	}
	// Push again to ensure the indices wrap correctly.
	for _, cmd := range []Command{{ActorID: 4}, {ActorID: 5}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 {
		t.Fatalf("expected 2 commands after wraparound, got %d", len(wrapped))
	}
	if wrapped[0].ActorID != 4 || wrapped[1].ActorID != 5 {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
}

func TestCommandBufferOverflow(t *testing.T) {
	buffer := NewCommandBuffer(1, nil)
	if !buffer.Push(Command{ActorID: 1}) {
		t.Fatalf("expected initial push to succeed")
	}
	if buffer.Push(Command{ActorID: 2}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	drained := buffer.Drain()
	if len(drained) != 1 || drained[0].ActorID != 1 {
		t.Fatalf("unexpected drained commands: %+v", drained)
	}
}

func TestCommandBufferLifecycleBypassesCapacity(t *testing.T) {
	buffer := NewCommandBuffer(1, nil)
	if !buffer.Push(Command{ActorID: 1, Type: CommandMove}) {
		t.Fatalf("expected initial push to succeed")
	}
	buffer.PushLifecycle(Command{ActorID: 1, Type: CommandLeave})
	buffer.PushLifecycle(Command{ConnID: 7, Type: CommandJoin})
	if got := buffer.Len(); got != 3 {
		t.Fatalf("expected 3 staged commands, got %d", got)
	}
	drained := buffer.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained commands, got %d", len(drained))
	}
	if drained[0].Type != CommandLeave || drained[1].Type != CommandJoin || drained[2].Type != CommandMove {
		t.Fatalf("expected lifecycle commands first, got %+v", drained)
	}
	if buffer.Len() != 0 {
		t.Fatalf("expected empty buffer after drain")
	}
}
