package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arena/server/internal/delta"
	"arena/server/internal/net/proto"
	"arena/server/internal/netquality"
	"arena/server/internal/telemetry"
)

type recordingSender struct {
	mu       sync.Mutex
	payloads [][]byte
	refuse   bool
}

func (r *recordingSender) Send(payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refuse {
		return false
	}
	r.payloads = append(r.payloads, payload)
	return true
}

func (r *recordingSender) sent() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.payloads...)
}

type tiers map[uint64]netquality.Tier

func (t tiers) Tier(connID uint64) netquality.Tier { return t[connID] }

func frame(full bool, marker uint32) delta.Frame {
	return delta.Frame{Full: full, Payload: proto.MustEncode(&proto.Pong{ClientTime: marker})}
}

func markers(t *testing.T, payload []byte) []uint32 {
	t.Helper()
	parts, err := proto.Unbatch(payload)
	require.NoError(t, err)
	var out []uint32
	for _, part := range parts {
		msg, err := proto.Decode(part)
		require.NoError(t, err)
		out = append(out, msg.(*proto.Pong).ClientTime)
	}
	return out
}

func TestIncrementalRequiresBaseline(t *testing.T) {
	s := NewScheduler(Config{}, Options{})
	sender := &recordingSender{}
	s.Register(1, sender)

	require.ErrorIs(t, s.Enqueue(1, frame(false, 1)), ErrNoBaseline)
	assert.False(t, s.HasBaseline(1))

	require.NoError(t, s.SendBaseline(1, proto.MustEncode(&proto.Pong{ClientTime: 99})))
	assert.True(t, s.HasBaseline(1))
	require.NoError(t, s.Enqueue(1, frame(false, 2)))

	require.ErrorIs(t, s.Enqueue(7, frame(true, 1)), ErrUnknownConnection)
}

func TestFullFrameOpensGate(t *testing.T) {
	s := NewScheduler(Config{}, Options{})
	s.Register(1, &recordingSender{})
	require.NoError(t, s.Enqueue(1, frame(true, 1)))
	require.NoError(t, s.Enqueue(1, frame(false, 2)))
}

func TestFlushBatchesInOrder(t *testing.T) {
	s := NewScheduler(Config{}, Options{})
	sender := &recordingSender{}
	s.Register(1, sender)

	s.EnqueueAll(frame(true, 1))
	s.EnqueueAll(frame(false, 2))
	s.EnqueueAll(frame(false, 3))
	s.Flush()

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, byte(proto.TypeBatch), sent[0][0])
	assert.Equal(t, []uint32{1, 2, 3}, markers(t, sent[0]))

	s.EnqueueAll(frame(false, 4))
	s.Flush()
	sent = sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, byte(proto.TypePong), sent[1][0], "single frame is not wrapped")

	s.Flush()
	assert.Len(t, sender.sent(), 2, "empty queue sends nothing")
}

func TestPoorConnectionDropsOldestIncrementals(t *testing.T) {
	policy := delta.NewResyncPolicy(0.25)
	s := NewScheduler(Config{PoorQueueCap: 2}, Options{
		Quality: tiers{1: netquality.TierPoor},
		Policy:  policy,
	})
	poor := &recordingSender{}
	good := &recordingSender{}
	s.Register(1, poor)
	s.Register(2, good)

	s.EnqueueAll(frame(true, 1))
	for marker := uint32(2); marker <= 5; marker++ {
		s.EnqueueAll(frame(false, marker))
	}
	assert.Equal(t, 7, s.Stats().Queued)

	// Poor connections flush every fourth round.
	for range 3 {
		s.Flush()
	}
	assert.Empty(t, poor.sent())
	require.Len(t, good.sent(), 1)
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, markers(t, good.sent()[0]))

	s.Flush()
	require.Len(t, poor.sent(), 1)
	assert.Equal(t, []uint32{1, 5}, markers(t, poor.sent()[0]))

	signal, ok := policy.Consume()
	require.True(t, ok)
	assert.Equal(t, uint64(3), signal.Dropped)
}

func TestBacklogLosingFullClosesGate(t *testing.T) {
	s := NewScheduler(Config{}, Options{})
	sender := &recordingSender{refuse: true}
	s.Register(1, sender)

	require.NoError(t, s.Enqueue(1, frame(true, 1)))
	s.Flush()
	assert.False(t, s.HasBaseline(1))
	require.ErrorIs(t, s.Enqueue(1, frame(false, 2)), ErrNoBaseline)

	require.ErrorIs(t, s.SendBaseline(1, frame(true, 3).Payload), ErrBackpressure)
}

func TestBaselineDuringFlushDiscardsTakenFrames(t *testing.T) {
	counters := telemetry.NewCounters()
	s := NewScheduler(Config{}, Options{Metrics: counters})
	sender := &recordingSender{}
	s.Register(1, sender)

	require.NoError(t, s.SendBaseline(1, frame(true, 1).Payload))
	require.NoError(t, s.Enqueue(1, frame(false, 2)))
	require.NoError(t, s.Enqueue(1, frame(false, 3)))

	// The flush has taken the queue but not written it yet when a world
	// reset hands the connection a fresh snapshot.
	due := s.takeDue()
	require.Len(t, due, 1)
	require.NoError(t, s.SendBaseline(1, frame(true, 10).Payload))
	s.deliver(due[0])

	sent := sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []uint32{10}, markers(t, sent[1]), "snapshot is the last frame written")
	assert.Equal(t, uint64(2), counters.Get(metricStale))
	assert.True(t, s.HasBaseline(1))

	require.NoError(t, s.Enqueue(1, frame(false, 11)))
	s.Flush()
	sent = sender.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, []uint32{11}, markers(t, sent[2]))
}

func TestBroadcastFilter(t *testing.T) {
	s := NewScheduler(Config{}, Options{})
	a, b := &recordingSender{}, &recordingSender{}
	s.Register(1, a)
	s.Register(2, b)

	n := s.Broadcast(frame(false, 1).Payload, func(id uint64) bool { return id != 2 })
	assert.Equal(t, 1, n)
	assert.Len(t, a.sent(), 1)
	assert.Empty(t, b.sent())

	assert.Equal(t, 2, s.Broadcast(frame(false, 2).Payload, nil))
	require.NoError(t, s.Send(2, frame(false, 3).Payload))

	s.Unregister(2)
	require.ErrorIs(t, s.Send(2, frame(false, 4).Payload), ErrUnknownConnection)
	assert.Equal(t, 1, s.Stats().Connections)
}
