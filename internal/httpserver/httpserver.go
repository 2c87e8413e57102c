// Package httpserver wires storage and the two protocol frontends into
// listening HTTP servers.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/caldav-mcp/internal/config"
	"github.com/sonroyaalmerol/caldav-mcp/internal/dav/caldav"
	"github.com/sonroyaalmerol/caldav-mcp/internal/mcp"
	"github.com/sonroyaalmerol/caldav-mcp/internal/router"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage/postgres"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage/sqlite"
)

// Server runs the CalDAV and MCP frontends on separate listeners over
// one shared store.
type Server struct {
	caldav *http.Server
	mcp    *http.Server
	logger zerolog.Logger
}

func OpenStore(cfg *config.Config, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresURL, logger)
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLitePath, logger)
	default:
		return nil, errors.New("unknown storage type: " + cfg.Storage.Type)
	}
}

func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, func(), error) {
	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	davHandler := caldav.New(store, logger, cfg.HTTP.MaxICSBytes)
	mcpHandler := mcp.NewServer(store, logger, cfg.MCP.ToolMode)

	srv := &Server{
		caldav: &http.Server{
			Addr:         cfg.HTTP.CalDAVAddr,
			Handler:      router.CalDAV(davHandler, logger),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		mcp: &http.Server{
			Addr:        cfg.HTTP.MCPAddr,
			Handler:     router.MCP(mcpHandler, logger),
			ReadTimeout: 30 * time.Second,
			// No write timeout: GET /mcp holds an event stream open.
			IdleTimeout: 120 * time.Second,
		},
		logger: logger,
	}
	cleanup := func() {
		store.Close()
	}
	logger.Info().
		Str("caldav_addr", cfg.HTTP.CalDAVAddr).
		Str("mcp_addr", cfg.HTTP.MCPAddr).
		Str("storage", cfg.Storage.Type).
		Str("tool_mode", cfg.MCP.ToolMode).
		Msg("listening")
	return srv, cleanup, nil
}

// Start blocks until either listener fails.
func (s *Server) Start() error {
	errCh := make(chan error, 2)
	go func() { errCh <- s.caldav.ListenAndServe() }()
	go func() { errCh <- s.mcp.ListenAndServe() }()
	return <-errCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	davErr := s.caldav.Shutdown(ctx)
	mcpErr := s.mcp.Shutdown(ctx)
	if davErr != nil {
		return davErr
	}
	return mcpErr
}
