// Package router assembles the HTTP muxes for the two frontends and
// wraps them with access logging.
package router

import (
	"net/http"

	"github.com/rs/zerolog"
)

// CalDAV mounts the DAV handler at the root, since CalDAV paths span
// /.well-known, /caldav, /principals and /calendar.
func CalDAV(h http.Handler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.Handle("/", h)
	return withAccessLog(mux, logger)
}

// MCP mounts the JSON-RPC handler at /mcp.
func MCP(h http.Handler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.Handle("/mcp", h)
	return withAccessLog(mux, logger)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
