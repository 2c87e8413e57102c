package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"))

	ok, err := VerifyPassword("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordRejectsGarbage(t *testing.T) {
	_, err := VerifyPassword("secret", "not-a-phc-string")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = VerifyPassword("secret", "$bcrypt$v=19$m=1,t=1,p=1$abc$def")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	h1, err := HashPassword("same")
	require.NoError(t, err)
	h2, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestGenerateToken(t *testing.T) {
	raw, hash, err := GenerateToken()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "mcp_"))
	// 32 bytes of entropy is 43 unpadded base64url characters.
	assert.Len(t, raw, len("mcp_")+43)
	assert.NotContains(t, raw, "=")

	ok, err := VerifyPassword(raw, hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseBasic(t *testing.T) {
	user, pass, ok := ParseBasic("Basic YWxpY2U6cGFzc3dvcmQ=")
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "password", pass)

	// Password may itself contain a colon.
	user, pass, ok = ParseBasic("Basic YWxpY2U6cGE6c3M=")
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "pa:ss", pass)

	_, _, ok = ParseBasic("")
	assert.False(t, ok)
	_, _, ok = ParseBasic("Bearer mcp_abc")
	assert.False(t, ok)
	_, _, ok = ParseBasic("Basic %%%")
	assert.False(t, ok)
}
