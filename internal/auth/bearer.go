package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/caldav-mcp/internal/cache"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

// bearerCacheTTL bounds how long a verified token skips hash checks.
// Deleted tokens stay usable for at most this long.
const bearerCacheTTL = time.Minute

type BearerAuth struct {
	store  storage.Store
	logger zerolog.Logger

	// verified maps raw token to user id. Argon2 verification against
	// every active token is too slow to repeat on each request.
	verified *cache.Cache[string, string]
}

func NewBearerAuth(store storage.Store, logger zerolog.Logger) *BearerAuth {
	return &BearerAuth{
		store:    store,
		logger:   logger,
		verified: cache.New[string, string](bearerCacheTTL),
	}
}

// Authenticate resolves a raw bearer token to its owning user. Tokens
// are stored hashed, so each active hash is tried in turn.
func (b *BearerAuth) Authenticate(ctx context.Context, raw string) (*Principal, error) {
	if !strings.HasPrefix(raw, tokenPrefix) {
		return nil, ErrUnauthorized
	}

	if userID, ok := b.verified.Get(raw); ok {
		return b.principalFor(ctx, userID)
	}

	tokens, err := b.store.ListActiveTokens(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tokens {
		match, err := VerifyPassword(raw, t.TokenHash)
		if err != nil {
			b.logger.Warn().Str("token_id", t.ID).Err(err).Msg("Stored token hash is unreadable")
			continue
		}
		if !match {
			continue
		}
		b.verified.Set(raw, t.UserID)
		return b.principalFor(ctx, t.UserID)
	}
	return nil, ErrUnauthorized
}

func (b *BearerAuth) principalFor(ctx context.Context, userID string) (*Principal, error) {
	user, err := b.store.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	p := &Principal{UserID: user.ID, Username: user.Username}
	if user.Email != nil {
		p.Email = *user.Email
	}
	return p, nil
}
