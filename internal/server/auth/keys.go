// Package auth implements token signing, issuance and validation for the
// session layer. Nothing here performs I/O; time and IDs come from
// collaborators so results are deterministic under test.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyLength is the minimum HS256 secret size in bytes.
const MinKeyLength = 32

var ErrWeakKey = fmt.Errorf("signing key must be at least %d bytes", MinKeyLength)

// SigningKey is the process-wide symmetric key together with the issuer and
// audience every token is stamped with. It is immutable once built.
//
// There is no key rotation: replacing the secret invalidates every
// outstanding token.
type SigningKey struct {
	secret   []byte
	method   jwt.SigningMethod
	issuer   string
	audience string
}

func NewSigningKey(secret []byte, issuer, audience string) (*SigningKey, error) {
	if len(secret) < MinKeyLength {
		return nil, ErrWeakKey
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("issuer and audience must be set")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &SigningKey{
		secret:   s,
		method:   jwt.SigningMethodHS256,
		issuer:   issuer,
		audience: audience,
	}, nil
}

func (k *SigningKey) Issuer() string    { return k.issuer }
func (k *SigningKey) Audience() string  { return k.audience }
func (k *SigningKey) Algorithm() string { return k.method.Alg() }
