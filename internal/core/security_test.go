// AngelaMos | 2026
// security_test.go

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPasswordTimingSafe_MissingHash(t *testing.T) {
	ok, rehash, err := VerifyPasswordTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, rehash)
}

func TestNewOpaqueToken(t *testing.T) {
	token, hash, err := NewOpaqueToken()
	require.NoError(t, err)

	assert.NotEmpty(t, token)
	assert.Equal(t, HashToken(token), hash)
	assert.NotEqual(t, HashToken(token+"x"), hash)

	other, _, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestVerifyPasswordWithRehash_OlderCosts(t *testing.T) {
	old := passwordHash{
		params: argonParams{memory: 8 * 1024, time: 1, threads: 1, keyLen: 32},
		salt:   []byte("0123456789abcdef"),
	}
	old.key = derive("s3cret-pass", old.salt, old.params)

	ok, rehash, err := VerifyPasswordWithRehash("s3cret-pass", old.encode())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, rehash)

	upgraded, err := parsePasswordHash(rehash)
	require.NoError(t, err)
	assert.Equal(t, currentParams, upgraded.params)

	ok, rehash, err = VerifyPasswordWithRehash("s3cret-pass", rehash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, rehash)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=900$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$a2V5",
	} {
		ok, err := VerifyPassword("pw", encoded)
		assert.Error(t, err, encoded)
		assert.False(t, ok, encoded)
	}
}
