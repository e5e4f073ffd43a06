package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateAccess_RejectsRefreshToken(t *testing.T) {
	iss, v := newTestIssuer(t)

	pair, err := iss.IssueTokenPair(1, "a@example.com", nil)
	require.NoError(t, err)

	_, err = v.ValidateAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenMalformed)

	_, err = v.ValidateRefresh(pair.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenMalformed)
}

func TestValidator_IsExpired_FailsClosed(t *testing.T) {
	codec, clock := newTestCodec(t, 0)
	iss := NewIssuer(codec, time.Minute, time.Hour, WithClock(clock))
	v := NewValidator(codec)

	token, _, err := iss.IssueAccessToken(1, "", nil)
	require.NoError(t, err)

	assert.False(t, v.IsExpired(token))
	assert.True(t, v.IsExpired("garbage"))
	assert.True(t, v.IsExpired(""))

	clock.Advance(2 * time.Minute)
	assert.True(t, v.IsExpired(token))
}

func TestValidator_Extractors(t *testing.T) {
	iss, v := newTestIssuer(t)

	token, _, err := iss.IssueAccessToken(42, "alice@example.com", map[string]any{
		ClaimEmailVerified: false,
		ClaimOAuthProvider: "google",
	})
	require.NoError(t, err)

	sub, err := v.ExtractSubject(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sub)

	email, err := v.ExtractEmail(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	provider, err := v.ExtractClaim(token, ClaimOAuthProvider)
	require.NoError(t, err)
	assert.Equal(t, "google", provider)

	verified, err := v.ExtractClaim(token, ClaimEmailVerified)
	require.NoError(t, err)
	assert.Equal(t, false, verified)

	jti, err := v.ExtractClaim(token, "jti")
	require.NoError(t, err)
	assert.Equal(t, "jti-1", jti)

	_, err = v.ExtractClaim(token, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestValidator_ExtractorsRevalidate(t *testing.T) {
	codec, clock := newTestCodec(t, 0)
	iss := NewIssuer(codec, time.Minute, time.Hour, WithClock(clock))
	v := NewValidator(codec)

	token, _, err := iss.IssueAccessToken(5, "e@example.com", nil)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	_, err = v.ExtractSubject(token)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	_, err = v.ExtractEmail(token)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	_, err = v.ExtractClaim(token, "email")
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	_, err = v.ExtractSubject("not.a.jwt")
	assert.ErrorIs(t, err, common.ErrTokenMalformed)
}
