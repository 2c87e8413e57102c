package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

func (r *Registry) registerSharingTools() {
	r.register(Definition{
		Name:        "share_calendar",
		Description: "Share a calendar with another user",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The calendar ID to share"},
				"username":    map[string]any{"type": "string", "description": "Username of the user to share with"},
				"permission":  map[string]any{"type": "string", "enum": []string{"read", "read-write"}, "description": "Access level to grant"},
			},
			"required":             []string{"calendar_id", "username", "permission"},
			"additionalProperties": false,
		},
	}, r.shareCalendar)

	r.register(Definition{
		Name:        "unshare_calendar",
		Description: "Revoke a user's access to a shared calendar",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"calendar_id": map[string]any{"type": "string", "description": "The calendar ID"},
				"username":    map[string]any{"type": "string", "description": "Username to revoke access from"},
			},
			"required":             []string{"calendar_id", "username"},
			"additionalProperties": false,
		},
	}, r.unshareCalendar)

	r.register(Definition{
		Name:        "list_shared_calendars",
		Description: "List calendars shared with the authenticated user",
		InputSchema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
	}, r.listSharedCalendars)
}

func (r *Registry) shareCalendar(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
	username, err := strArg(args, "username")
	if err != nil {
		return nil, err
	}
	permission, err := strArg(args, "permission")
	if err != nil {
		return nil, err
	}
	if permission != storage.PermissionRead && permission != storage.PermissionReadWrite {
		return nil, fmt.Errorf("invalid permission %q", permission)
	}

	if _, err := r.requireOwner(ctx, userID, calendarID); err != nil {
		return nil, err
	}

	target, err := r.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return nil, err
	}

	share, err := r.store.CreateShare(ctx, calendarID, target.ID, permission)
	if err != nil {
		return nil, fmt.Errorf("failed to share calendar: %w", err)
	}

	return map[string]any{
		"calendar_id": share.CalendarID,
		"shared_with": username,
		"permission":  share.Permission,
	}, nil
}

func (r *Registry) unshareCalendar(ctx context.Context, userID string, args map[string]any) (any, error) {
	calendarID, err := strArg(args, "calendar_id")
	if err != nil {
		return nil, err
	}
	username, err := strArg(args, "username")
	if err != nil {
		return nil, err
	}
	if _, err := r.requireOwner(ctx, userID, calendarID); err != nil {
		return nil, err
	}

	target, err := r.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("user %q not found", username)
	}
	if err != nil {
		return nil, err
	}

	if err := r.store.DeleteShare(ctx, calendarID, target.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to unshare calendar: %w", err)
	}
	return map[string]any{"unshared": true, "calendar_id": calendarID, "username": username}, nil
}

func (r *Registry) listSharedCalendars(ctx context.Context, userID string, _ map[string]any) (any, error) {
	shared, err := r.store.ListSharedCalendars(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(shared))
	for _, sc := range shared {
		out = append(out, map[string]any{
			"id":         sc.Calendar.ID,
			"name":       sc.Calendar.Name,
			"owner_id":   sc.Calendar.OwnerID,
			"permission": sc.Permission,
			"color":      sc.Calendar.Color,
		})
	}
	return map[string]any{"shared_calendars": out}, nil
}
