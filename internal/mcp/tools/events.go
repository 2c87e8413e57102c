package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
	"github.com/sonroyaalmerol/caldav-mcp/pkg/ical"
)

func (r *Registry) registerEventTools() {
	r.register(Definition{
		Name:        "create_event",
		Description: "Create a new calendar event",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The target calendar ID"},
				"title":       map[string]any{"type": "string", "description": "Event title/summary"},
				"start":       map[string]any{"type": "string", "description": "Start time, iCal basic (20260301T090000Z) or ISO 8601 (2026-03-01T09:00:00Z)"},
				"end":         map[string]any{"type": "string", "description": "End time, same formats as start"},
				"timezone":    map[string]any{"type": "string", "description": "IANA timezone, e.g. America/Los_Angeles. Omit for UTC times with a Z suffix."},
				"description": map[string]any{"type": "string", "description": "Event description"},
				"location":    map[string]any{"type": "string", "description": "Event location"},
			},
			"required":             []string{"calendar_id", "title", "start", "end"},
			"additionalProperties": false,
		},
	}, r.createEvent)

	r.register(Definition{
		Name:        "get_event",
		Description: "Get a specific event by its UID",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The calendar ID"},
				"event_uid":   map[string]any{"type": "string", "description": "The event UID"},
			},
			"required":             []string{"calendar_id", "event_uid"},
			"additionalProperties": false,
		},
	}, r.getEvent)

	r.register(Definition{
		Name:        "update_event",
		Description: "Update an existing event (replaces the entire event)",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The calendar ID"},
				"event_uid":   map[string]any{"type": "string", "description": "The event UID to update"},
				"title":       map[string]any{"type": "string", "description": "New event title"},
				"start":       map[string]any{"type": "string", "description": "New start time"},
				"end":         map[string]any{"type": "string", "description": "New end time"},
				"timezone":    map[string]any{"type": "string", "description": "IANA timezone, e.g. America/Los_Angeles"},
				"description": map[string]any{"type": "string", "description": "New description"},
				"location":    map[string]any{"type": "string", "description": "New location"},
			},
			"required":             []string{"calendar_id", "event_uid", "title", "start", "end"},
			"additionalProperties": false,
		},
	}, r.updateEvent)

	r.register(Definition{
		Name:        "delete_event",
		Description: "Delete a calendar event",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The calendar ID"},
				"event_uid":   map[string]any{"type": "string", "description": "The event UID to delete"},
			},
			"required":             []string{"calendar_id", "event_uid"},
			"additionalProperties": false,
		},
	}, r.deleteEvent)

	r.register(Definition{
		Name:        "query_events",
		Description: "Query events in a calendar, optionally filtered by time range",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The calendar ID"},
				"start":       map[string]any{"type": "string", "description": "Range start (e.g. 20260301T000000Z)"},
				"end":         map[string]any{"type": "string", "description": "Range end"},
				"limit":       map[string]any{"type": "integer", "description": "Max events to return (default 50)", "minimum": 1, "maximum": 500},
			},
			"required":             []string{"calendar_id"},
			"additionalProperties": false,
		},
	}, r.queryEvents)
}

// putEvent builds the iCalendar body and upserts it with its indexed
// fields, shared by create and update.
func (r *Registry) putEvent(ctx context.Context, calendarID, uid, title, start, end string, args map[string]any) (*storage.Object, error) {
	data := ical.BuildEvent(ical.EventParams{
		UID:         uid,
		Summary:     title,
		DTStart:     start,
		DTEnd:       end,
		Description: optStrArg(args, "description", ""),
		Location:    optStrArg(args, "location", ""),
		Timezone:    optStrArg(args, "timezone", ""),
	})

	obj, _, err := r.store.PutObject(ctx, calendarID, uid, data, storage.ObjectFields{
		Component: "VEVENT",
		DTStart:   &start,
		DTEnd:     &end,
		Summary:   &title,
	})
	return obj, err
}

func (r *Registry) createEvent(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
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
	if err := r.requireWrite(ctx, userID, calendarID); err != nil {
		return nil, err
	}

	start, end = normalizeTime(start), normalizeTime(end)
	uid := ical.GenerateUID()
	obj, err := r.putEvent(ctx, calendarID, uid, title, start, end, args)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return map[string]any{
		"uid":         obj.UID,
		"calendar_id": calendarID,
		"title":       title,
		"start":       start,
		"end":         end,
		"etag":        obj.ETag,
	}, nil
}

func (r *Registry) getEvent(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
	uid, err := strArg(args, "event_uid")
	if err != nil {
		return nil, err
	}
	if err := r.requireAccess(ctx, userID, calendarID); err != nil {
		return nil, err
	}

	obj, err := r.store.GetObject(ctx, calendarID, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("event %q not found", uid)
	}
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"uid":         obj.UID,
		"calendar_id": obj.CalendarID,
		"summary":     obj.Summary,
		"dtstart":     obj.DTStart,
		"dtend":       obj.DTEnd,
		"etag":        obj.ETag,
		"ical_data":   obj.ICalData,
	}, nil
}

func (r *Registry) updateEvent(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
	uid, err := strArg(args, "event_uid")
	if err != nil {
		return nil, err
	}
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
	if err := r.requireWrite(ctx, userID, calendarID); err != nil {
		return nil, err
	}

	if _, err := r.store.GetObject(ctx, calendarID, uid); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("event %q not found", uid)
		}
		return nil, err
	}

	start, end = normalizeTime(start), normalizeTime(end)
	obj, err := r.putEvent(ctx, calendarID, uid, title, start, end, args)
	if err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}

	return map[string]any{
		"uid":         obj.UID,
		"calendar_id": calendarID,
		"title":       title,
		"etag":        obj.ETag,
		"updated":     true,
	}, nil
}

func (r *Registry) deleteEvent(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
	uid, err := strArg(args, "event_uid")
	if err != nil {
		return nil, err
	}
	if err := r.requireWrite(ctx, userID, calendarID); err != nil {
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

func (r *Registry) queryEvents(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
	if err := r.requireAccess(ctx, userID, calendarID); err != nil {
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
			"dtstart": obj.DTStart,
			"dtend":   obj.DTEnd,
			"etag":    obj.ETag,
		})
	}

	return map[string]any{
		"calendar_id": calendarID,
		"count":       len(events),
		"events":      events,
	}, nil
}
