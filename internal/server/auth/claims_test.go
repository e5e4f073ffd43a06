package auth

import (
	"encoding/json"
	"testing"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaims_JSONFlattensExtra(t *testing.T) {
	c := Claims{
		Email:            "a@example.com",
		TokenUse:         UseAccess,
		Extra:            map[string]any{"tenant": "acme", "email": "shadow@example.com"},
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	}

	b, err := json.Marshal(c)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "acme", m["tenant"])
	assert.Equal(t, "a@example.com", m["email"])
	assert.Equal(t, "1", m["sub"])
	assert.NotContains(t, m, "Extra")

	var back Claims
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, map[string]any{"tenant": "acme"}, back.Extra)
	assert.Equal(t, "a@example.com", back.Email)
}

func TestClaims_SubjectID(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "9001"}}
	id, err := c.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, int64(9001), id)

	c.Subject = "alice"
	_, err = c.SubjectID()
	assert.ErrorIs(t, err, common.ErrTokenMalformed)
}

func TestIsReservedClaim(t *testing.T) {
	for _, k := range []string{"iss", "sub", "aud", "exp", "nbf", "iat", "jti", "email", "authenticated", "token_use"} {
		assert.True(t, IsReservedClaim(k), k)
	}
	assert.False(t, IsReservedClaim(ClaimEmailVerified))
}
