package auth

import (
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// Validator checks tokens and extracts their claims. Every accessor
// re-validates; there is no path that reads an unverified token.
type Validator struct {
	codec *Codec
}

func NewValidator(codec *Codec) *Validator {
	return &Validator{codec: codec}
}

// Validate verifies token and returns its claims, failing with one of
// common.ErrTokenExpired, common.ErrTokenMalformed or
// common.ErrTokenBadSignature.
func (v *Validator) Validate(token string) (*Claims, error) {
	return v.codec.Decode(token)
}

// ValidateAccess is Validate restricted to access tokens.
func (v *Validator) ValidateAccess(token string) (*Claims, error) {
	return v.validateUse(token, UseAccess)
}

// ValidateRefresh is Validate restricted to refresh tokens.
func (v *Validator) ValidateRefresh(token string) (*Claims, error) {
	return v.validateUse(token, UseRefresh)
}

func (v *Validator) validateUse(token, use string) (*Claims, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenUse != use {
		return nil, fmt.Errorf("%w: token_use %q, want %q", common.ErrTokenMalformed, claims.TokenUse, use)
	}
	return claims, nil
}

// IsExpired never fails: any validation error counts as expired.
func (v *Validator) IsExpired(token string) bool {
	_, err := v.codec.Decode(token)
	return err != nil
}

func (v *Validator) ExtractSubject(token string) (int64, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return 0, err
	}
	return claims.SubjectID()
}

func (v *Validator) ExtractEmail(token string) (string, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

// ExtractClaim returns a single claim by its JSON name. An absent claim
// yields common.ErrorNotFound.
func (v *Validator) ExtractClaim(token, key string) (any, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	val, ok := claims.Claim(key)
	if !ok {
		return nil, fmt.Errorf("claim %q: %w", key, common.ErrorNotFound)
	}
	return val, nil
}
