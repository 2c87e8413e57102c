package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
	"github.com/sonroyaalmerol/caldav-mcp/pkg/ical"
)

// Simple mode hides calendar management behind three terse tools so
// small local models can drive the server without juggling calendar
// ids. Every call auto-resolves to the user's first visible calendar.
func (r *Registry) registerSimpleTools() {
	r.register(Definition{
		Name:        "add_event",
		Description: "Add a calendar event.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string", "description": "Event title"},
				"start":       map[string]any{"type": "string", "description": "Start time, e.g. 20260301T090000Z"},
				"end":         map[string]any{"type": "string", "description": "End time, e.g. 20260301T100000Z"},
				"timezone":    map[string]any{"type": "string", "description": "IANA timezone name for local times; omit for UTC with a Z suffix"},
				"description": map[string]any{"type": "string"},
				"location":    map[string]any{"type": "string"},
			},
			"required":             []string{"title", "start", "end"},
			"additionalProperties": false,
		},
	}, r.simpleAdd)

	r.register(Definition{
		Name:        "delete_event",
		Description: "Delete a calendar event by its UID.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"event_uid": map[string]any{"type": "string", "description": "Event UID to delete"},
			},
			"required":             []string{"event_uid"},
			"additionalProperties": false,
		},
	}, r.simpleDelete)

	r.register(Definition{
		Name:        "list_events",
		Description: "List upcoming calendar events. Optionally filter by time range.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start": map[string]any{"type": "string", "description": "Range start, e.g. 20260301T000000Z"},
				"end":   map[string]any{"type": "string", "description": "Range end, e.g. 20260331T235959Z"},
				"limit": map[string]any{"type": "integer", "description": "Max results (default 50)", "minimum": 1, "maximum": 500},
			},
			"additionalProperties": false,
		},
	}, r.simpleList)
}

// resolveCalendar returns the user's first visible calendar, creating
// a default one when none exist.
func (r *Registry) resolveCalendar(ctx context.Context, userID string) (string, error) {
	cals, err := r.store.ListCalendarsVisibleTo(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to list calendars: %w", err)
	}
	if len(cals) > 0 {
		return cals[0].ID, nil
	}

	cal, err := r.store.CreateCalendar(ctx, userID, "Calendar", "", storage.DefaultColor, storage.DefaultTimezone)
	if err != nil {
		return "", fmt.Errorf("failed to create default calendar: %w", err)
	}
	return cal.ID, nil
}

func (r *Registry) simpleAdd(ctx context.Context, userID string, args map[string]any) (any, error) {
	title, err := strArg(args, "title")
	if err != nil {
		return nil, err
	}
	start, err := strArg(args, "start")
	if err != nil {
		return nil, err
	}
	end, err := strArg(args, "end")
	if err != nil {
		return nil, err
	}

	calendarID, err := r.resolveCalendar(ctx, userID)
	if err != nil {
		return nil, err
	}

	start, end = normalizeTime(start), normalizeTime(end)
	uid := ical.GenerateUID()
	if _, err := r.putEvent(ctx, calendarID, uid, title, start, end, args); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return map[string]any{
		"uid":   uid,
		"title": title,
		"start": start,
		"end":   end,
	}, nil
}

func (r *Registry) simpleDelete(ctx context.Context, userID string, args map[string]any) (any, error) {
	uid, err := strArg(args, "event_uid")
	if err != nil {
		return nil, err
	}

	calendarID, err := r.resolveCalendar(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := r.store.DeleteObject(ctx, calendarID, uid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("event %q not found", uid)
		}
		return nil, fmt.Errorf("failed to delete event: %w", err)
	}
	return map[string]any{"deleted": true, "event_uid": uid}, nil
}

func (r *Registry) simpleList(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := r.resolveCalendar(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := limitArg(args, 50, 500)
	start := optStrArg(args, "start", "")
	end := optStrArg(args, "end", "")

	var objs []*storage.Object
	if start != "" && end != "" {
		objs, err = r.store.ListObjectsInRange(ctx, calendarID, normalizeTime(start), normalizeTime(end))
	} else {
		objs, err = r.store.ListObjects(ctx, calendarID)
	}
	if err != nil {
		return nil, err
	}

	if len(objs) > limit {
		objs = objs[:limit]
	}
	events := make([]map[string]any, 0, len(objs))
	for _, obj := range objs {
		events = append(events, map[string]any{
			"uid":     obj.UID,
			"summary": obj.Summary,
			"start":   obj.DTStart,
			"end":     obj.DTEnd,
		})
	}

	return map[string]any{
		"count":  len(events),
		"events": events,
	}, nil
}
