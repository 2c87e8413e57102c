package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

func (s *Store) CreateToken(ctx context.Context, userID, tokenHash, name string) (*storage.Token, error) {
	t := &storage.Token{
		ID:        storage.NewID(),
		UserID:    userID,
		TokenHash: tokenHash,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mcp_tokens (id, user_id, token_hash, name, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`, t.ID, t.UserID, t.TokenHash, t.Name, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTokens(ctx context.Context, userID string) ([]*storage.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at
		FROM mcp_tokens WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (s *Store) ListActiveTokens(ctx context.Context) ([]*storage.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at
		FROM mcp_tokens WHERE expires_at IS NULL OR expires_at > ?`, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func (s *Store) DeleteToken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mcp_tokens WHERE id = ?`, id)
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

func collectTokens(rows *sql.Rows) ([]*storage.Token, error) {
	var out []*storage.Token
	for rows.Next() {
		var t storage.Token
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Name, &t.CreatedAt, &t.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
