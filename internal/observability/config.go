// Package observability mounts opt-in runtime diagnostics on the HTTP mux.
package observability

import (
	nethttp "net/http"
	"net/http/pprof"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	EnablePprof bool
}

// Mount registers the enabled diagnostics on mux.
func Mount(mux *nethttp.ServeMux, cfg Config) {
	if mux == nil || !cfg.EnablePprof {
		return
	}
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
