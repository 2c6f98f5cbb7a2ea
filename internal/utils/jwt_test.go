package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *TokenService {
	return NewTokenService("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestTokenService()

	tok, err := s.IssueAccessToken("user-1", "ann@example.com", "ann")
	require.NoError(t, err)

	claims, err := s.VerifyAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ann@example.com", claims.Email)
	assert.Equal(t, "ann", claims.Name)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestTokenService()

	tok, err := s.IssueRefreshToken("user-1")
	require.NoError(t, err)

	claims, err := s.VerifyRefreshToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestTokens_AreUniquePerIssue(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestTokenService().WithClock(func() time.Time { return fixed })

	a, err := s.IssueRefreshToken("user-1")
	require.NoError(t, err)
	b, err := s.IssueRefreshToken("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	now := time.Now()
	s := newTestTokenService().WithClock(func() time.Time { return now })

	tok, err := s.IssueAccessToken("user-1", "", "ann")
	require.NoError(t, err)

	s.WithClock(func() time.Time { return now.Add(2 * time.Hour) })
	_, err = s.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()
	s := newTestTokenService()
	other := NewTokenService("other", "other", time.Hour, time.Hour)

	tok, err := other.IssueAccessToken("user-1", "", "ann")
	require.NoError(t, err)

	_, err = s.VerifyAccessToken(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_KindsAreNotInterchangeable(t *testing.T) {
	t.Parallel()
	// Same secret for both kinds so only the type claim tells them apart.
	s := NewTokenService("same", "same", time.Hour, time.Hour)

	refresh, err := s.IssueRefreshToken("user-1")
	require.NoError(t, err)
	_, err = s.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	access, err := s.IssueAccessToken("user-1", "", "ann")
	require.NoError(t, err)
	_, err = s.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()
	_, err := newTestTokenService().VerifyAccessToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()
	claims := &AccessClaims{UserID: "user-1", Type: tokenTypeAccess}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestTokenService().VerifyAccessToken(tok)
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}
