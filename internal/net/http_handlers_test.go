package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	server "arena/server"
	"arena/server/internal/config"
	"arena/server/internal/net/proto"
	"arena/server/internal/net/ws"
)

func newTestHandler(t *testing.T) (*server.Hub, http.Handler) {
	t.Helper()
	cfg := server.DefaultHubConfig()
	cfg.Seed = 3
	hub, err := server.NewHub(cfg)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	sockets := ws.NewHandler(hub, ws.HandlerConfig{
		Server:     config.Default().Server,
		RateLimits: config.Default().RateLimits,
	})
	return hub, NewHTTPHandler(hub, sockets, HTTPHandlerConfig{})
}

func TestHealth(t *testing.T) {
	_, handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func TestDiagnosticsReportsHubStats(t *testing.T) {
	_, handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if contentType := rec.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected application/json, got %q", contentType)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected status %v", payload["status"])
	}
	if _, ok := payload["hub"].(map[string]any); !ok {
		t.Fatalf("expected hub stats, payload=%s", rec.Body.String())
	}
}

func TestDiagnosticsRejectsPost(t *testing.T) {
	_, handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/diagnostics", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

// TestWebsocketJoinRoundTrip drives a real connection through the hub with
// a running simulation.
func TestWebsocketJoinRoundTrip(t *testing.T) {
	hub, handler := newTestHandler(t)
	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	t.Cleanup(func() { close(stop) })

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	read := func() proto.Message {
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		msg, err := proto.Decode(payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type() != proto.TypeConnected {
		t.Fatalf("expected CONNECTED first, got %s", msg.Type())
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, proto.MustEncode(&proto.Join{Name: "ann"})); err != nil {
		t.Fatalf("write join: %v", err)
	}
	joined, ok := read().(*proto.Joined)
	if !ok {
		t.Fatalf("expected JOINED")
	}
	state, ok := read().(*proto.GameState)
	if !ok {
		t.Fatalf("expected GAME_STATE after JOINED")
	}
	if len(state.Players) != 1 || state.Players[0].ID != joined.PlayerID {
		t.Fatalf("unexpected baseline players %+v", state.Players)
	}
}
