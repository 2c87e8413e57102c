// Package tools implements the MCP tool surface: calendar and event
// CRUD, sharing, and the reduced simple mode aimed at small local
// models. Every tool runs against the shared store with the token's
// user as the effective caller.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

// Tool modes selected by configuration.
const (
	ModeFull   = "full"
	ModeSimple = "simple"
)

// Definition is one entry in the tools/list response.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type handlerFunc func(ctx context.Context, userID string, args map[string]any) (any, error)

type Registry struct {
	store    storage.Store
	mode     string
	defs     []Definition
	handlers map[string]handlerFunc
}

func NewRegistry(store storage.Store, mode string) *Registry {
	r := &Registry{store: store, mode: mode, handlers: make(map[string]handlerFunc)}
	if mode == ModeSimple {
		r.registerSimpleTools()
	} else {
		r.registerCalendarTools()
		r.registerEventTools()
		r.registerSharingTools()
	}
	return r
}

func (r *Registry) register(def Definition, fn handlerFunc) {
	r.defs = append(r.defs, def)
	r.handlers[def.Name] = fn
}

func (r *Registry) Definitions() []Definition { return r.defs }

func (r *Registry) Mode() string { return r.mode }

// Call runs the named tool. Errors are application failures the
// dispatcher maps to JSON-RPC code -32000.
func (r *Registry) Call(ctx context.Context, userID, name string, args map[string]any) (any, error) {
	fn, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return fn(ctx, userID, args)
}

// requireAccess checks the caller owns or holds a share on the calendar.
func (r *Registry) requireAccess(ctx context.Context, userID, calendarID string) error {
	_, err := r.store.Permission(ctx, calendarID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("calendar %q not found or access denied", calendarID)
	}
	return err
}

// requireWrite additionally rejects read-only shares.
func (r *Registry) requireWrite(ctx context.Context, userID, calendarID string) error {
	perm, err := r.store.Permission(ctx, calendarID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("calendar %q not found or access denied", calendarID)
	}
	if err != nil {
		return err
	}
	if perm != storage.PermissionReadWrite {
		return fmt.Errorf("calendar %q is read-only for this user", calendarID)
	}
	return nil
}

// requireOwner restricts the operation to the calendar's owner.
func (r *Registry) requireOwner(ctx context.Context, userID, calendarID string) (*storage.Calendar, error) {
	cal, err := r.store.GetCalendar(ctx, calendarID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("calendar %q not found", calendarID)
	}
	if err != nil {
		return nil, err
	}
	if cal.OwnerID != userID {
		return nil, fmt.Errorf("only the owner may modify calendar %q", calendarID)
	}
	return cal, nil
}

func strArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing %s", key)
	}
	return v, nil
}

func optStrArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// limitArg reads the result cap. JSON numbers decode as float64.
func limitArg(args map[string]any, fallback, max int) int {
	v, ok := args["limit"].(float64)
	if !ok {
		return fallback
	}
	n := int(v)
	if n < 1 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}

// normalizeTime accepts iCal basic or ISO 8601 and returns iCal basic.
// ISO 8601 inputs are converted to UTC.
func normalizeTime(s string) string {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format("20060102T150405Z")
	}
	return s
}
