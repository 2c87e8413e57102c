package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

func (r *Registry) registerCalendarTools() {
	r.register(Definition{
		Name:        "list_calendars",
		Description: "List all calendars accessible to the authenticated user (owned + shared)",
		InputSchema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
	}, r.listCalendars)

	r.register(Definition{
		Name:        "get_calendar",
		Description: "Get details about a specific calendar",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The calendar ID"},
			},
			"required":             []string{"calendar_id"},
			"additionalProperties": false,
		},
	}, r.getCalendar)

	r.register(Definition{
		Name:        "create_calendar",
		Description: "Create a new calendar",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":        map[string]any{"type": "string", "description": "Calendar display name"},
				"description": map[string]any{"type": "string", "description": "Calendar description"},
				"color":       map[string]any{"type": "string", "description": "Calendar color (hex, e.g. #FF0000)"},
				"timezone":    map[string]any{"type": "string", "description": "Calendar timezone (e.g. America/New_York)"},
			},
			"required":             []string{"name"},
			"additionalProperties": false,
		},
	}, r.createCalendar)

	r.register(Definition{
		Name:        "delete_calendar",
		Description: "Delete a calendar and all its events",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The calendar ID to delete"},
			},
			"required":             []string{"calendar_id"},
			"additionalProperties": false,
		},
	}, r.deleteCalendar)
}

func (r *Registry) listCalendars(ctx context.Context, userID string, _ map[string]any) (any, error) {
	cals, err := r.store.ListCalendarsVisibleTo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	out := make([]map[string]any, 0, len(cals))
	for _, c := range cals {
		out = append(out, map[string]any{
			"id":          c.ID,
			"name":        c.Name,
			"description": c.Description,
			"color":       c.Color,
			"timezone":    c.Timezone,
			"owner_id":    c.OwnerID,
		})
	}
	return map[string]any{"calendars": out}, nil
}

func (r *Registry) getCalendar(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
	if err := r.requireAccess(ctx, userID, calendarID); err != nil {
		return nil, err
	}

	cal, err := r.store.GetCalendar(ctx, calendarID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("calendar %q not found", calendarID)
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"id":          cal.ID,
		"name":        cal.Name,
		"description": cal.Description,
		"color":       cal.Color,
		"timezone":    cal.Timezone,
		"owner_id":    cal.OwnerID,
		"ctag":        cal.CTag,
	}, nil
}

func (r *Registry) createCalendar(ctx context.Context, userID string, args map[string]any) (any, error) {
	name, err := strArg(args, "name")
	if err != nil {
		return nil, err
	}
	description := optStrArg(args, "description", "")
	color := optStrArg(args, "color", storage.DefaultColor)
	timezone := optStrArg(args, "timezone", storage.DefaultTimezone)

	cal, err := r.store.CreateCalendar(ctx, userID, name, description, color, timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar: %w", err)
	}

	return map[string]any{
		"id":          cal.ID,
		"name":        cal.Name,
		"description": cal.Description,
		"color":       cal.Color,
		"timezone":    cal.Timezone,
	}, nil
}

func (r *Registry) deleteCalendar(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
	if _, err := r.requireOwner(ctx, userID, calendarID); err != nil {
		return nil, err
	}

	if err := r.store.DeleteCalendar(ctx, calendarID); err != nil {
		return nil, fmt.Errorf("failed to delete calendar: %w", err)
	}
	return map[string]any{"deleted": true, "calendar_id": calendarID}, nil
}
