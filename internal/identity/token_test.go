package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vico_home/callcore/internal/domain"
)

func sign(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestTokenProvider_VerifiedUserID(t *testing.T) {
	tok := sign(t, "s3cret", Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	id, err := NewTokenProvider(tok, "s3cret").CurrentUserID()
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
}

func TestTokenProvider_FallsBackToSubject(t *testing.T) {
	tok := sign(t, "other", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-2"}})

	id, err := NewTokenProvider(tok, "").CurrentUserID()
	require.NoError(t, err)
	assert.Equal(t, "u-2", id)
}

func TestTokenProvider_WrongSecret(t *testing.T) {
	tok := sign(t, "a", Claims{UserID: "u-1"})

	_, err := NewTokenProvider(tok, "b").CurrentUserID()
	assert.ErrorIs(t, err, domain.ErrNoIdentity)
}

func TestTokenProvider_ExpiredUnverified(t *testing.T) {
	tok := sign(t, "a", Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := NewTokenProvider(tok, "").CurrentUserID()
	assert.ErrorIs(t, err, domain.ErrNoIdentity)
}

func TestTokenProvider_EmptyAndRefresh(t *testing.T) {
	p := NewTokenProvider("", "")
	_, err := p.CurrentUserID()
	assert.ErrorIs(t, err, domain.ErrNoIdentity)

	p.SetToken(sign(t, "a", Claims{UserID: "u-3"}))
	id, err := p.CurrentUserID()
	require.NoError(t, err)
	assert.Equal(t, "u-3", id)
}

func TestStatic(t *testing.T) {
	id, err := Static("me").CurrentUserID()
	require.NoError(t, err)
	assert.Equal(t, "me", id)

	_, err = Static("").CurrentUserID()
	assert.ErrorIs(t, err, domain.ErrNoIdentity)
}
