package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

const objectColumns = `id, calendar_id, uid, etag, ical_data, component_type, dtstart, dtend, summary, created_at, updated_at`

func (s *Store) PutObject(ctx context.Context, calendarID, uid, icalData string, fields storage.ObjectFields) (*storage.Object, bool, error) {
	component := fields.Component
	if component == "" {
		component = "VEVENT"
	}

	var obj *storage.Object
	var isNew bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var exists int
		err := tx.QueryRow(ctx, `SELECT 1 FROM calendars WHERE id = $1 FOR UPDATE`, calendarID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `SELECT 1 FROM calendar_objects WHERE calendar_id = $1 AND uid = $2`, calendarID, uid).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			isNew = true
		} else if err != nil {
			return err
		}

		now := time.Now().UTC()
		o := &storage.Object{
			ID:         storage.NewID(),
			CalendarID: calendarID,
			UID:        uid,
			ETag:       storage.NewETag(),
			ICalData:   icalData,
			Component:  component,
			DTStart:    fields.DTStart,
			DTEnd:      fields.DTEnd,
			Summary:    fields.Summary,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO calendar_objects (`+objectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (calendar_id, uid) DO UPDATE SET
				etag = excluded.etag,
				ical_data = excluded.ical_data,
				component_type = excluded.component_type,
				dtstart = excluded.dtstart,
				dtend = excluded.dtend,
				summary = excluded.summary,
				updated_at = excluded.updated_at
		`, o.ID, o.CalendarID, o.UID, o.ETag, o.ICalData, o.Component, o.DTStart, o.DTEnd, o.Summary, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return err
		}

		changeType := "modified"
		if isNew {
			changeType = "created"
		}
		if err := rotateCalendar(ctx, tx, calendarID, uid, changeType); err != nil {
			return err
		}
		obj = o
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return obj, isNew, nil
}

func (s *Store) GetObject(ctx context.Context, calendarID, uid string) (*storage.Object, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+objectColumns+` FROM calendar_objects
		WHERE calendar_id = $1 AND uid = $2`, calendarID, uid)
	var o storage.Object
	if err := scanObject(row.Scan, &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListObjects(ctx context.Context, calendarID string) ([]*storage.Object, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+objectColumns+` FROM calendar_objects
		WHERE calendar_id = $1 ORDER BY uid`, calendarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObjects(rows)
}

// ListObjectsInRange returns objects overlapping [start, end). Bounds compare
// lexically, which is correct for the basic UTC iCal forms the index stores.
func (s *Store) ListObjectsInRange(ctx context.Context, calendarID, start, end string) ([]*storage.Object, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+objectColumns+` FROM calendar_objects
		WHERE calendar_id = $1
		  AND dtstart IS NOT NULL AND dtend IS NOT NULL
		  AND dtstart < $2 AND dtend > $3
		ORDER BY dtstart`, calendarID, end, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObjects(rows)
}

func (s *Store) GetObjectsByUIDs(ctx context.Context, calendarID string, uids []string) ([]*storage.Object, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+objectColumns+` FROM calendar_objects
		WHERE calendar_id = $1 AND uid = ANY($2)
		ORDER BY uid`, calendarID, uids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObjects(rows)
}

func (s *Store) DeleteObject(ctx context.Context, calendarID, uid string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM calendar_objects WHERE calendar_id = $1 AND uid = $2
		`, calendarID, uid)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return rotateCalendar(ctx, tx, calendarID, uid, "deleted")
	})
}

func collectObjects(rows pgx.Rows) ([]*storage.Object, error) {
	defer rows.Close()
	var out []*storage.Object
	for rows.Next() {
		var o storage.Object
		if err := scanObject(rows.Scan, &o); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func scanObject(scan func(dest ...any) error, o *storage.Object) error {
	return scan(&o.ID, &o.CalendarID, &o.UID, &o.ETag, &o.ICalData, &o.Component, &o.DTStart, &o.DTEnd, &o.Summary, &o.CreatedAt, &o.UpdatedAt)
}
