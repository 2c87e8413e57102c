// Package mcp implements the MCP frontend: a Bearer-authenticated
// JSON-RPC 2.0 endpoint exposing calendar tools over streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/caldav-mcp/internal/auth"
	"github.com/sonroyaalmerol/caldav-mcp/internal/mcp/tools"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

const (
	protocolVersion = "2025-03-26"
	serverName      = "caldav-mcp-server"
	serverVersion   = "0.3.0"

	// rpcBodyLimit caps POST bodies.
	rpcBodyLimit = 1 << 20
)

const fullInstructions = "This MCP server provides tools to manage CalDAV calendars and events. " +
	"Use list_calendars to see available calendars, then create_event, query_events, etc. to manage events."

const simpleInstructions = "Calendar tools: list_events shows events, add_event creates one, delete_event removes one."

type Server struct {
	logger   zerolog.Logger
	sessions *SessionManager
	bearer   *auth.BearerAuth
	registry *tools.Registry
}

func NewServer(store storage.Store, logger zerolog.Logger, toolMode string) *Server {
	return &Server{
		logger:   logger,
		sessions: NewSessionManager(),
		bearer:   auth.NewBearerAuth(store, logger),
		registry: tools.NewRegistry(store, toolMode),
	}
}

// ServeHTTP authenticates the Bearer token before any JSON is parsed,
// then dispatches on the transport method.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	p, err := s.bearer.Authenticate(r.Context(), raw)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r, p)
	case http.MethodGet:
		s.handleGet(w)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	body, err := io.ReadAll(io.LimitReader(r.Body, rpcBodyLimit))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, "", errorResponse(nil, codeParseError, fmt.Sprintf("Parse error: %v", err)))
		return
	}

	resp, sessionID := s.handleRequest(r.Context(), p.UserID, &req)
	if req.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeResponse(w, sessionID, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, sessionID string, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if sessionID != "" {
		w.Header().Set("Mcp-Session-Id", sessionID)
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("Writing JSON-RPC response failed")
	}
}

// handleGet opens the server-streamed channel. The stream stays idle;
// there are no server-initiated messages yet.
func (s *Server) handleGet(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if sessionID := r.Header.Get("Mcp-Session-Id"); sessionID != "" {
		s.sessions.Remove(sessionID)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Session terminated"))
}

// handleRequest dispatches one JSON-RPC message. The returned session
// id is non-empty only for initialize.
func (s *Server) handleRequest(ctx context.Context, userID string, req *Request) (*Response, string) {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "Invalid request"), ""
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(userID, req)
	case "notifications/initialized":
		return nil, ""
	case "ping":
		return successResponse(req.ID, map[string]any{}), ""
	case "tools/list":
		return successResponse(req.ID, map[string]any{"tools": s.registry.Definitions()}), ""
	case "tools/call":
		return s.handleToolsCall(ctx, userID, req), ""
	default:
		return errorResponse(req.ID, codeMethodNotFound, "Method not found"), ""
	}
}

func (s *Server) handleInitialize(userID string, req *Request) (*Response, string) {
	sessionID := s.sessions.Create(userID)

	instructions := fullInstructions
	if s.registry.Mode() == tools.ModeSimple {
		instructions = simpleInstructions
	}

	result := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
		"instructions": instructions,
	}
	return successResponse(req.ID, result), sessionID
}

func (s *Server) handleToolsCall(ctx context.Context, userID string, req *Request) *Response {
	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "Missing 'name' in params")
	}

	result, err := s.registry.Call(ctx, userID, params.Name, params.Arguments)
	if err != nil {
		s.logger.Debug().Str("tool", params.Name).Err(err).Msg("Tool call failed")
		return errorResponse(req.ID, codeAppError, err.Error())
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(req.ID, codeAppError, "Failed to encode tool result")
	}
	return successResponse(req.ID, map[string]any{
		"content":           []map[string]any{{"type": "text", "text": string(text)}},
		"structuredContent": result,
		"isError":           false,
	})
}
