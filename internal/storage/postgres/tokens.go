package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

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
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mcp_tokens (id, user_id, token_hash, name, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, NULL)
	`, t.ID, t.UserID, t.TokenHash, t.Name, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTokens(ctx context.Context, userID string) ([]*storage.Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at
		FROM mcp_tokens WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return collectTokens(rows)
}

func (s *Store) ListActiveTokens(ctx context.Context) ([]*storage.Token, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, token_hash, name, created_at, expires_at
		FROM mcp_tokens WHERE expires_at IS NULL OR expires_at > $1`, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return collectTokens(rows)
}

func (s *Store) DeleteToken(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mcp_tokens WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func collectTokens(rows pgx.Rows) ([]*storage.Token, error) {
	defer rows.Close()
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
