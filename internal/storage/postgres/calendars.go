package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

const calendarColumns = `id, owner_id, name, description, color, timezone, ctag, sync_token, created_at, updated_at`

func (s *Store) CreateCalendar(ctx context.Context, ownerID, name, description, color, timezone string) (*storage.Calendar, error) {
	return s.CreateCalendarWithID(ctx, storage.NewID(), ownerID, name, description, color, timezone)
}

func (s *Store) CreateCalendarWithID(ctx context.Context, id, ownerID, name, description, color, timezone string) (*storage.Calendar, error) {
	if color == "" {
		color = storage.DefaultColor
	}
	if timezone == "" {
		timezone = storage.DefaultTimezone
	}
	token := storage.NewSyncToken()
	now := time.Now().UTC()
	c := &storage.Calendar{
		ID:          id,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Color:       color,
		Timezone:    timezone,
		CTag:        token,
		SyncToken:   token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO calendars (`+calendarColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.OwnerID, c.Name, c.Description, c.Color, c.Timezone, c.CTag, c.SyncToken, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) GetCalendar(ctx context.Context, id string) (*storage.Calendar, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+calendarColumns+` FROM calendars WHERE id = $1`, id)
	var c storage.Calendar
	if err := scanCalendar(row.Scan, &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCalendarsVisibleTo(ctx context.Context, userID string) ([]*storage.Calendar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+calendarColumns+` FROM calendars WHERE owner_id = $1
		UNION
		SELECT c.id, c.owner_id, c.name, c.description, c.color, c.timezone, c.ctag, c.sync_token, c.created_at, c.updated_at
		FROM calendars c
		JOIN calendar_shares sh ON sh.calendar_id = c.id
		WHERE sh.user_id = $2
		ORDER BY name`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Calendar
	for rows.Next() {
		var c storage.Calendar
		if err := scanCalendar(rows.Scan, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// UpdateCalendarProps updates the given properties, leaving nil ones alone,
// and rotates ctag and sync_token as a calendar-level mutation.
func (s *Store) UpdateCalendarProps(ctx context.Context, id string, name, description, color *string) (*storage.Calendar, error) {
	var out *storage.Calendar
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+calendarColumns+` FROM calendars WHERE id = $1 FOR UPDATE`, id)
		var c storage.Calendar
		if err := scanCalendar(row.Scan, &c); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return err
		}
		if name != nil {
			c.Name = *name
		}
		if description != nil {
			c.Description = *description
		}
		if color != nil {
			c.Color = *color
		}
		token := storage.NewSyncToken()
		c.CTag = token
		c.SyncToken = token
		c.UpdatedAt = time.Now().UTC()
		_, err := tx.Exec(ctx, `
			UPDATE calendars
			SET name = $1, description = $2, color = $3, ctag = $4, sync_token = $5, updated_at = $6
			WHERE id = $7
		`, c.Name, c.Description, c.Color, c.CTag, c.SyncToken, c.UpdatedAt, c.ID)
		if err != nil {
			return err
		}
		out = &c
		return nil
	})
	return out, err
}

func (s *Store) DeleteCalendar(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM calendars WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// rotateCalendar assigns a fresh token to the calendar and records the change
// row carrying it. Must run inside the mutation's transaction.
func rotateCalendar(ctx context.Context, tx pgx.Tx, calendarID, objectUID, changeType string) error {
	token := storage.NewSyncToken()
	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE calendars SET ctag = $1, sync_token = $2, updated_at = $3 WHERE id = $4
	`, token, token, now, calendarID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sync_changes (calendar_id, object_uid, change_type, sync_token, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, calendarID, objectUID, changeType, token, now)
	return err
}

func (s *Store) ChangesSince(ctx context.Context, calendarID, token string) ([]storage.SyncChange, bool, error) {
	var anchor int64
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM sync_changes
		WHERE calendar_id = $1 AND sync_token = $2
		ORDER BY id ASC LIMIT 1
	`, calendarID, token).Scan(&anchor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, calendar_id, object_uid, change_type, sync_token, created_at
		FROM sync_changes
		WHERE calendar_id = $1 AND id > $2
		ORDER BY id ASC
	`, calendarID, anchor)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []storage.SyncChange
	for rows.Next() {
		var c storage.SyncChange
		if err := rows.Scan(&c.ID, &c.CalendarID, &c.ObjectUID, &c.ChangeType, &c.SyncToken, &c.CreatedAt); err != nil {
			return nil, false, err
		}
		out = append(out, c)
	}
	return out, true, rows.Err()
}

func scanCalendar(scan func(dest ...any) error, c *storage.Calendar) error {
	return scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.Color, &c.Timezone, &c.CTag, &c.SyncToken, &c.CreatedAt, &c.UpdatedAt)
}
