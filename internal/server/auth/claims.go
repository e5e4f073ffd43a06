package auth

import (
	"encoding/json"
	"strconv"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Values of the token_use claim.
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// Well-known extra claims attached to access tokens at login.
const (
	ClaimEmailVerified = "email_verified"
	ClaimOAuthProvider = "oauth_provider"
)

// Claims is the payload of both token kinds. Refresh tokens carry only the
// registered claims and token_use.
//
// Extra claims are flattened into the top-level JSON object on encode and
// collected back into Extra on decode. They can never shadow a reserved key.
type Claims struct {
	Email         string         `json:"email,omitempty"`
	Authenticated bool           `json:"authenticated,omitempty"`
	TokenUse      string         `json:"token_use"`
	Extra         map[string]any `json:"-"`
	jwt.RegisteredClaims
}

var reservedClaims = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
	"email": {}, "authenticated": {}, "token_use": {},
}

// IsReservedClaim reports whether key is owned by the codec and cannot be
// set through Extra.
func IsReservedClaim(key string) bool {
	_, ok := reservedClaims[key]
	return ok
}

type plainClaims Claims

func (c Claims) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(plainClaims(c))
	if err != nil || len(c.Extra) == 0 {
		return b, err
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if IsReservedClaim(k) {
			continue
		}
		m[k] = v
	}
	return json.Marshal(m)
}

func (c *Claims) UnmarshalJSON(b []byte) error {
	var p plainClaims
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for k := range m {
		if IsReservedClaim(k) {
			delete(m, k)
		}
	}
	if len(m) > 0 {
		p.Extra = m
	}
	*c = Claims(p)
	return nil
}

// SubjectID parses the sub claim as a numeric principal ID.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrTokenMalformed
	}
	return id, nil
}

// Claim returns the value stored under key, looking at the typed fields
// first and then at Extra.
func (c *Claims) Claim(key string) (any, bool) {
	switch key {
	case "iss":
		return c.Issuer, c.Issuer != ""
	case "sub":
		return c.Subject, c.Subject != ""
	case "aud":
		return []string(c.Audience), len(c.Audience) > 0
	case "jti":
		return c.ID, c.ID != ""
	case "exp":
		return numericDate(c.ExpiresAt)
	case "iat":
		return numericDate(c.IssuedAt)
	case "nbf":
		return numericDate(c.NotBefore)
	case "email":
		return c.Email, c.Email != ""
	case "authenticated":
		return c.Authenticated, true
	case "token_use":
		return c.TokenUse, c.TokenUse != ""
	}
	v, ok := c.Extra[key]
	return v, ok
}

func numericDate(d *jwt.NumericDate) (any, bool) {
	if d == nil {
		return nil, false
	}
	return d.Time, true
}
