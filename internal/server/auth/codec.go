package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and decodes tokens with a single SigningKey.
type Codec struct {
	key    *SigningKey
	clock  timex.Clock
	parser *jwt.Parser
}

// NewCodec builds a codec that tolerates leeway of clock skew when checking
// expiry. A nil clock means the system clock.
func NewCodec(key *SigningKey, leeway time.Duration, clock timex.Clock) *Codec {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &Codec{
		key:   key,
		clock: clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{key.Algorithm()}),
			jwt.WithLeeway(leeway),
			jwt.WithTimeFunc(clock.Now),
			jwt.WithIssuer(key.issuer),
			jwt.WithAudience(key.audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// Sign stamps iss, aud and exp (and iat when unset) onto a copy of claims
// and returns the signed compact token. expiresAt must be after iat.
func (c *Codec) Sign(claims *Claims, expiresAt time.Time) (string, error) {
	cl := *claims
	cl.Issuer = c.key.issuer
	cl.Audience = jwt.ClaimStrings{c.key.audience}
	if cl.IssuedAt == nil {
		cl.IssuedAt = jwt.NewNumericDate(c.clock.Now())
	}
	cl.ExpiresAt = jwt.NewNumericDate(expiresAt)
	if !cl.ExpiresAt.After(cl.IssuedAt.Time) {
		return "", errors.New("token expiry must be after issue time")
	}

	token, err := jwt.NewWithClaims(c.key.method, cl).SignedString(c.key.secret)
	if err != nil {
		return "", fmt.Errorf("%w: sign token: %w", common.ErrorInternal, err)
	}
	return token, nil
}

// Decode verifies the signature and registered claims and returns the
// payload. Failures are exactly one of common.ErrTokenBadSignature,
// common.ErrTokenMalformed or common.ErrTokenExpired.
func (c *Codec) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(token, claims, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return c.key.secret, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", common.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", common.ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %w", common.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", common.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %w", common.ErrTokenMalformed, err)
	}
}
