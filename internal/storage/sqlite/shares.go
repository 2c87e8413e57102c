package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

func (s *Store) CreateShare(ctx context.Context, calendarID, userID, permission string) (*storage.Share, error) {
	sh := &storage.Share{
		ID:         storage.NewID(),
		CalendarID: calendarID,
		UserID:     userID,
		Permission: permission,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_shares (id, calendar_id, user_id, permission, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(calendar_id, user_id) DO UPDATE SET permission = excluded.permission
	`, sh.ID, sh.CalendarID, sh.UserID, sh.Permission, sh.CreatedAt)
	if err != nil {
		return nil, err
	}

	// Re-read so callers see the surviving row on permission updates.
	row := s.db.QueryRowContext(ctx, `
		SELECT id, calendar_id, user_id, permission, created_at
		FROM calendar_shares WHERE calendar_id = ? AND user_id = ?`, calendarID, userID)
	var out storage.Share
	if err := row.Scan(&out.ID, &out.CalendarID, &out.UserID, &out.Permission, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) DeleteShare(ctx context.Context, calendarID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM calendar_shares WHERE calendar_id = ? AND user_id = ?
	`, calendarID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListSharedCalendars(ctx context.Context, userID string) ([]storage.SharedCalendar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.owner_id, c.name, c.description, c.color, c.timezone, c.ctag, c.sync_token, c.created_at, c.updated_at,
		       sh.permission
		FROM calendar_shares sh
		JOIN calendars c ON c.id = sh.calendar_id
		WHERE sh.user_id = ?
		ORDER BY c.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.SharedCalendar
	for rows.Next() {
		var c storage.Calendar
		var perm string
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Color, &c.Timezone, &c.CTag, &c.SyncToken, &c.CreatedAt, &c.UpdatedAt, &perm); err != nil {
			return nil, err
		}
		out = append(out, storage.SharedCalendar{Calendar: &c, Permission: perm})
	}
	return out, rows.Err()
}

func (s *Store) Permission(ctx context.Context, calendarID, userID string) (string, error) {
	var ownerID string
	err := s.db.QueryRowContext(ctx, `SELECT owner_id FROM calendars WHERE id = ?`, calendarID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if ownerID == userID {
		return storage.PermissionReadWrite, nil
	}

	var perm string
	err = s.db.QueryRowContext(ctx, `
		SELECT permission FROM calendar_shares WHERE calendar_id = ? AND user_id = ?
	`, calendarID, userID).Scan(&perm)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return perm, nil
}
