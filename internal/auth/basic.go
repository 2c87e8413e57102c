package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

var ErrUnauthorized = errors.New("unauthorized")

type BasicAuth struct {
	Store  storage.Store
	Logger zerolog.Logger
}

// ParseBasic splits an Authorization header into the Basic credentials.
func ParseBasic(header string) (username, password string, ok bool) {
	if header == "" {
		return "", "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "basic") {
		return "", "", false
	}
	dec, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", false
	}
	creds := strings.SplitN(string(dec), ":", 2)
	if len(creds) != 2 {
		return "", "", false
	}
	return creds[0], creds[1], true
}

// Authenticate verifies Basic credentials against the user store. The
// login name may be either a username or an email address.
func (b *BasicAuth) Authenticate(ctx context.Context, header string) (*Principal, error) {
	username, password, ok := ParseBasic(header)
	if !ok {
		return nil, ErrUnauthorized
	}
	return b.VerifyCredentials(ctx, username, password)
}

func (b *BasicAuth) VerifyCredentials(ctx context.Context, login, password string) (*Principal, error) {
	user, err := b.Store.GetUserByUsername(ctx, login)
	if errors.Is(err, storage.ErrNotFound) {
		user, err = b.Store.GetUserByEmail(ctx, login)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		b.Logger.Warn().Str("user", user.Username).Err(err).Msg("Stored password hash is unreadable")
		return nil, ErrUnauthorized
	}
	if !match {
		return nil, ErrUnauthorized
	}

	p := &Principal{UserID: user.ID, Username: user.Username}
	if user.Email != nil {
		p.Email = *user.Email
	}
	return p, nil
}
