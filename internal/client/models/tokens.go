// Package models holds the CLI's local types.
package models

import "time"

// Tokens is the pair the CLI keeps between invocations.
type Tokens struct {
	Email            string    `json:"email,omitempty"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Empty reports whether no refresh token is held.
func (t *Tokens) Empty() bool {
	return t == nil || t.RefreshToken == ""
}

// Session is one refresh token as reported by the server.
type Session struct {
	ID        int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	IPAddress string
	UserAgent string
}

// Status is "revoked", "expired" or "active" relative to now.
func (s Session) Status(now time.Time) string {
	switch {
	case s.RevokedAt != nil:
		return "revoked"
	case !now.Before(s.ExpiresAt):
		return "expired"
	default:
		return "active"
	}
}
