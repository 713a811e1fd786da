// Package ws serves game connections over websockets.
package ws

import (
	nethttp "net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"

	"arena/server/internal/config"
	"arena/server/internal/net/proto"
	"arena/server/internal/telemetry"
	"arena/server/logging"
)

type HandlerConfig struct {
	Server     config.Server
	RateLimits config.RateLimits
	Logger     telemetry.Logger
	Publisher  logging.Publisher
}

type Handler struct {
	hub      Hub
	cfg      HandlerConfig
	logger   telemetry.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

func NewHandler(hub Hub, cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Nop()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	defaults := config.Default().Server
	if cfg.Server.ProbeInterval <= 0 {
		cfg.Server.ProbeInterval = defaults.ProbeInterval
	}
	if cfg.Server.HeartbeatTimeout <= 0 {
		cfg.Server.HeartbeatTimeout = defaults.HeartbeatTimeout
	}
	if cfg.Server.WriteWait <= 0 {
		cfg.Server.WriteWait = defaults.WriteWait
	}
	if cfg.Server.MaxMessageBytes <= 0 {
		cfg.Server.MaxMessageBytes = defaults.MaxMessageBytes
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		cfg:      cfg,
		logger:   cfg.Logger,
		upgrader: upgrader,
		sessions: make(map[*Session]struct{}),
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}

	s := newSession(conn, ksuid.New().String(), h.cfg.Server, h.cfg.RateLimits, h.logger, h.cfg.Publisher)
	if !h.track(s) {
		frame := proto.MustEncode(&proto.Error{Code: proto.ErrorCodeShutdown, Reason: ErrShutdown.Error()})
		conn.WriteMessage(websocket.BinaryMessage, frame)
		conn.Close()
		return
	}
	defer h.untrack(s)

	s.id = h.hub.Connect(s)
	h.logger.Printf("[ws] connection %d open session=%s remote=%s", s.id, s.key, r.RemoteAddr)

	s.Send(proto.MustEncode(&proto.Connected{Version: proto.Version, ServerTime: proto.Millis(time.Now())}))
	go s.writeLoop()

	if timeout := h.cfg.Server.JoinTimeout; timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			if !s.Joined() {
				s.CloseWithError(proto.ErrorCodeJoinTimeout, ErrConnectionTimeout)
			}
		})
		defer timer.Stop()
	}

	err = s.readLoop(h.hub)
	s.Close()
	reason := s.closeCause(err)
	h.hub.Disconnect(s.id, reason)
	h.logger.Printf("[ws] connection %d closed session=%s: %v", s.id, s.key, reason)
}

// Shutdown sends ERROR to every open session and refuses new ones.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.CloseWithError(proto.ErrorCodeShutdown, ErrShutdown)
	}
}

// Sessions reports the number of open sessions.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Handler) track(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	return true
}

func (h *Handler) untrack(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}
