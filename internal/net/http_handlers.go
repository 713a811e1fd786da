// Package net assembles the HTTP surface: the websocket endpoint plus
// health and diagnostics routes.
package net

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/dustin/go-humanize"

	server "arena/server"
	"arena/server/internal/net/ws"
	"arena/server/internal/observability"
	"arena/server/internal/telemetry"
	"arena/server/logging"
)

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Observability observability.Config
	// Router is optional; its counters are reported by /diagnostics.
	Router *logging.Router
	// Started is the process start time reported as uptime.
	Started time.Time
}

func NewHTTPHandler(hub *server.Hub, sockets *ws.Handler, cfg HTTPHandlerConfig) nethttp.Handler {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Nop()
	}
	if cfg.Started.IsZero() {
		cfg.Started = time.Now()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		payload := struct {
			Status     string              `json:"status"`
			ServerTime int64               `json:"serverTime"`
			Uptime     string              `json:"uptime"`
			Sessions   int                 `json:"sessions"`
			Hub        server.Stats        `json:"hub"`
			Logging    logging.RouterStats `json:"logging"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Uptime:     humanize.RelTime(cfg.Started, time.Now(), "", ""),
			Sessions:   sockets.Sessions(),
			Hub:        hub.Stats(),
			Logging:    cfg.Router.Stats(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			cfg.Logger.Printf("[http] diagnostics encode failed: %v", err)
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/ws", sockets.Handle)

	observability.Mount(mux, cfg.Observability)
	return mux
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	w.Write([]byte(message))
}
