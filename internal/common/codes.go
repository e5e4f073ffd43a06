package common

import "errors"

// Stable error codes handed to clients. They never change once published.
const (
	CodeOK                  = "OK"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeAccountDeactivated  = "AUTH_ACCOUNT_DEACTIVATED"
	CodeInvalidRefreshToken = "AUTH_INVALID_REFRESH_TOKEN"
	CodeRefreshTokenExpired = "AUTH_REFRESH_TOKEN_EXPIRED"
	CodeRefreshTokenRevoked = "AUTH_REFRESH_TOKEN_REVOKED"
	CodeInvalidAccessToken  = "AUTH_INVALID_ACCESS_TOKEN"
	CodeAccessTokenExpired  = "AUTH_ACCESS_TOKEN_EXPIRED"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInternal            = "INTERNAL_ERROR"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidCredentials, CodeInvalidCredentials},
	{ErrAccountDeactivated, CodeAccountDeactivated},
	{ErrInvalidRefreshToken, CodeInvalidRefreshToken},
	{ErrRefreshTokenExpired, CodeRefreshTokenExpired},
	{ErrRefreshTokenRevoked, CodeRefreshTokenRevoked},
	{ErrInvalidAccessToken, CodeInvalidAccessToken},
	{ErrTokenExpired, CodeAccessTokenExpired},
}

// Code maps err to its stable client code. Unknown and infrastructure
// errors map to CodeInternal; a nil error maps to CodeOK.
func Code(err error) string {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// FromCode is the inverse of Code, used by clients to turn a received code
// back into a sentinel. Unknown codes yield ErrorInternal.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	if code == CodeOK {
		return nil
	}
	return ErrorInternal
}
