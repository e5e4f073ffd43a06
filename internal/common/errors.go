// Package common defines shared constants and sentinel errors used across
// the server, its transports and the CLI client. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrDuplicateToken = errors.New("duplicate token")
	ErrDuplicateEmail = errors.New("email already registered")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Codec errors. Exactly one of these is returned by a failed decode.
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")

	// Session errors surfaced to clients.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDeactivated  = errors.New("account deactivated")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
	ErrInvalidAccessToken  = errors.New("invalid access token")
)
