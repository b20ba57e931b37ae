package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("secret")

	tok, exp, err := GenerateToken("user-1", "scanner", secret, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := ParseToken(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "scanner", claims.Role)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestParseToken_Rejects(t *testing.T) {
	secret := []byte("secret")

	tok, _, err := GenerateToken("user-1", "hr", secret, time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(tok, []byte("other"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := GenerateToken("user-1", "hr", secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("not-a-token", secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "x"})
	s, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(s, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("changeme")
	require.NoError(t, err)
	assert.NotEqual(t, "changeme", hash)
	assert.True(t, CheckPassword(hash, "changeme"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
