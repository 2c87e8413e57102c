package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRow(`SELECT 1 FROM calendars WHERE id = ?`, calendarID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		err = tx.QueryRow(`SELECT 1 FROM calendar_objects WHERE calendar_id = ? AND uid = ?`, calendarID, uid).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
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
		_, err = tx.Exec(`
			INSERT INTO calendar_objects (`+objectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(calendar_id, uid) DO UPDATE SET
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
		if err := rotateCalendar(tx, calendarID, uid, changeType); err != nil {
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
	row := s.db.QueryRowContext(ctx, `
		SELECT `+objectColumns+` FROM calendar_objects
		WHERE calendar_id = ? AND uid = ?`, calendarID, uid)
	var o storage.Object
	if err := scanObject(row.Scan, &o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListObjects(ctx context.Context, calendarID string) ([]*storage.Object, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+objectColumns+` FROM calendar_objects
		WHERE calendar_id = ? ORDER BY uid`, calendarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObjects(rows)
}

// ListObjectsInRange returns objects overlapping [start, end). Bounds compare
// lexically, which is correct for the basic UTC iCal forms the index stores.
func (s *Store) ListObjectsInRange(ctx context.Context, calendarID, start, end string) ([]*storage.Object, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+objectColumns+` FROM calendar_objects
		WHERE calendar_id = ?
		  AND dtstart IS NOT NULL AND dtend IS NOT NULL
		  AND dtstart < ? AND dtend > ?
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
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(uids)), ", ")
	args := make([]any, 0, len(uids)+1)
	args = append(args, calendarID)
	for _, uid := range uids {
		args = append(args, uid)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+objectColumns+` FROM calendar_objects
		WHERE calendar_id = ? AND uid IN (`+placeholders+`)
		ORDER BY uid`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectObjects(rows)
}

func (s *Store) DeleteObject(ctx context.Context, calendarID, uid string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			DELETE FROM calendar_objects WHERE calendar_id = ? AND uid = ?
		`, calendarID, uid)
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
		return rotateCalendar(tx, calendarID, uid, "deleted")
	})
}

func collectObjects(rows *sql.Rows) ([]*storage.Object, error) {
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
