package ws

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"arena/server/internal/config"
	"arena/server/internal/net/intake"
	"arena/server/internal/net/proto"
	"arena/server/internal/telemetry"
	"arena/server/logging"
	loggingNetwork "arena/server/logging/network"
)

var (
	// ErrConnectionTimeout closes connections that never joined.
	ErrConnectionTimeout = errors.New("ws: join timeout")
	// ErrHeartbeatLost closes connections whose read deadline expired.
	ErrHeartbeatLost = errors.New("ws: heartbeat lost")
	// ErrProtocolViolation closes connections over a strike limit.
	ErrProtocolViolation = errors.New("ws: protocol violation")
	// ErrShutdown closes connections when the server stops.
	ErrShutdown = errors.New("ws: server shutdown")
)

// Hub is the lifecycle surface a session drives.
type Hub interface {
	// Connect registers the session and returns its connection id.
	Connect(s *Session) uint64
	// Receive stages a decoded client command.
	Receive(connID uint64, msg proto.Message) error
	ObserveRTT(connID uint64, rtt time.Duration)
	Disconnect(connID uint64, reason error)
}

// Session owns one websocket. Reads happen on the serving goroutine and all
// writes on a dedicated writer goroutine fed by a buffered channel.
type Session struct {
	id      uint64
	key     string
	conn    *websocket.Conn
	cfg     config.Server
	limiter *intake.Limiter
	logger  telemetry.Logger
	pub     logging.Publisher

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	final     atomic.Pointer[[]byte]
	cause     atomic.Pointer[error]
	joined    atomic.Bool

	oversized int
	malformed int
}

func newSession(conn *websocket.Conn, key string, cfg config.Server, limits config.RateLimits, logger telemetry.Logger, pub logging.Publisher) *Session {
	queue := cfg.SendQueue
	if queue <= 0 {
		queue = 256
	}
	return &Session{
		key:     key,
		conn:    conn,
		cfg:     cfg,
		limiter: intake.NewLimiter(limits),
		logger:  logger,
		pub:     pub,
		send:    make(chan []byte, queue),
		done:    make(chan struct{}),
	}
}

func (s *Session) ID() uint64 { return s.id }

// Key is the session's log correlation id.
func (s *Session) Key() string { return s.key }

// Send queues payload for the writer without blocking. It reports false
// when the queue is full or the session is closing.
func (s *Session) Send(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// MarkJoined stops the join timer from closing the session.
func (s *Session) MarkJoined() {
	s.joined.Store(true)
}

func (s *Session) Joined() bool {
	return s.joined.Load()
}

// CloseWithError sends an ERROR frame and closes the connection.
func (s *Session) CloseWithError(code uint16, cause error) {
	s.closeOnce.Do(func() {
		frame, err := proto.Encode(&proto.Error{Code: code, Reason: cause.Error()})
		if err == nil {
			s.final.Store(&frame)
		}
		s.cause.Store(&cause)
		loggingNetwork.ConnectionClosed(context.Background(), s.pub, logging.ConnectionRef(s.id), loggingNetwork.ClosedPayload{Reason: cause.Error()})
		close(s.done)
	})
}

// Close shuts the connection down without an ERROR frame.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

func (s *Session) closeCause(fallback error) error {
	if cause := s.cause.Load(); cause != nil {
		return *cause
	}
	return fallback
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			if err := s.write(websocket.BinaryMessage, payload); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.ping(); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			if frame := s.final.Load(); frame != nil {
				_ = s.write(websocket.BinaryMessage, *frame)
			}
			_ = s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) write(messageType int, payload []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	return s.conn.WriteMessage(messageType, payload)
}

// ping carries the send time so the pong handler can compute RTT without
// per-probe bookkeeping.
func (s *Session) ping() error {
	var stamp [8]byte
	binary.LittleEndian.PutUint64(stamp[:], uint64(time.Now().UnixNano()))
	return s.conn.WriteControl(websocket.PingMessage, stamp[:], time.Now().Add(s.cfg.WriteWait))
}

func (s *Session) extendDeadline() {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.HeartbeatTimeout))
}

func (s *Session) readLoop(hub Hub) error {
	s.conn.SetReadLimit(int64(max(s.cfg.MaxFrameBytes, s.cfg.MaxMessageBytes)))
	s.extendDeadline()
	s.conn.SetPongHandler(func(data string) error {
		s.extendDeadline()
		if len(data) != 8 {
			return nil
		}
		sent := int64(binary.LittleEndian.Uint64([]byte(data)))
		if rtt := time.Since(time.Unix(0, sent)); rtt >= 0 {
			hub.ObserveRTT(s.id, rtt)
		}
		return nil
	})

	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ErrHeartbeatLost
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				s.dropped("frame_limit", "", s.cfg.MaxFrameBytes)
				s.CloseWithError(proto.ErrorCodeOversized, ErrProtocolViolation)
				return ErrProtocolViolation
			}
			return err
		}
		s.extendDeadline()
		if messageType != websocket.BinaryMessage {
			if s.strikeMalformed(len(payload), "text frame") {
				return ErrProtocolViolation
			}
			continue
		}
		if stop := s.handle(hub, payload); stop != nil {
			return stop
		}
	}
}

// handle returns a non-nil error only when the session must close.
func (s *Session) handle(hub Hub, payload []byte) error {
	msg, err := proto.DecodeLimited(payload, s.cfg.MaxMessageBytes)
	switch {
	case errors.Is(err, proto.ErrOversizedMessage):
		s.oversized++
		s.dropped("oversized", "", len(payload))
		if s.cfg.MaxOversized > 0 && s.oversized >= s.cfg.MaxOversized {
			s.CloseWithError(proto.ErrorCodeOversized, ErrProtocolViolation)
			return ErrProtocolViolation
		}
		return nil
	case err != nil:
		if s.strikeMalformed(len(payload), err.Error()) {
			return ErrProtocolViolation
		}
		return nil
	}

	if !msg.Type().ClientOriginated() {
		if s.strikeMalformed(len(payload), "server message type") {
			return ErrProtocolViolation
		}
		return nil
	}
	if err := s.limiter.Allow(msg.Type(), time.Now()); err != nil {
		s.dropped("rate_limited", msg.Type().String(), len(payload))
		return nil
	}

	if ping, ok := msg.(*proto.Ping); ok {
		pong, err := proto.Encode(&proto.Pong{ClientTime: ping.ClientTime, ServerTime: proto.Millis(time.Now())})
		if err == nil {
			s.Send(pong)
		}
		return nil
	}

	if err := hub.Receive(s.id, msg); err != nil {
		reason := "rejected"
		switch {
		case errors.Is(err, intake.ErrInvalidCommand):
			reason = "invalid"
		case errors.Is(err, intake.ErrCommandRejected):
			reason = "backpressure"
		}
		s.dropped(reason, msg.Type().String(), len(payload))
	}
	return nil
}

func (s *Session) strikeMalformed(size int, reason string) bool {
	s.malformed++
	s.dropped("malformed", reason, size)
	if s.cfg.MaxMalformed > 0 && s.malformed >= s.cfg.MaxMalformed {
		s.CloseWithError(proto.ErrorCodeMalformed, ErrProtocolViolation)
		return true
	}
	return false
}

func (s *Session) dropped(reason, messageType string, size int) {
	loggingNetwork.MessageDropped(context.Background(), s.pub, logging.ConnectionRef(s.id), loggingNetwork.DroppedPayload{
		Reason:      reason,
		MessageType: messageType,
		Bytes:       size,
	})
}
