package auth

import (
	"crypto/rand"
	"encoding/base64"
)

const tokenPrefix = "mcp_"

// GenerateToken returns a new raw bearer token and its Argon2id hash.
// The raw token is shown to the user exactly once; only the hash is
// persisted.
func GenerateToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = tokenPrefix + base64.RawURLEncoding.EncodeToString(buf)
	hash, err = HashPassword(raw)
	if err != nil {
		return "", "", err
	}
	return raw, hash, nil
}
