// Package models holds the server's persisted domain types.
package models

import "time"

// TokenState is the lifecycle position of a refresh token:
// Active → Revoked | Expired → Deleted. Transitions are one-way.
type TokenState int

const (
	TokenActive TokenState = iota
	TokenRevoked
	TokenExpired
	TokenDeleted
)

func (s TokenState) String() string {
	switch s {
	case TokenActive:
		return "active"
	case TokenRevoked:
		return "revoked"
	case TokenExpired:
		return "expired"
	case TokenDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// RefreshToken is one issued refresh token and its lifecycle stamps.
// Token, SubjectID, IssuedAt, ExpiresAt, IPAddress and UserAgent are
// write-once. RevokedAt and DeletedAt, once set, are never cleared.
type RefreshToken struct {
	ID        int64
	Token     string
	SubjectID int64
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	DeletedAt *time.Time
	IPAddress string
	UserAgent string
}

func (t *RefreshToken) IsRevoked() bool { return t.RevokedAt != nil }
func (t *RefreshToken) IsDeleted() bool { return t.DeletedAt != nil }

// IsExpired reports whether now is at or past ExpiresAt.
func (t *RefreshToken) IsExpired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// IsValid is the single validity predicate: live, not revoked, not expired.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.IsDeleted() && !t.IsRevoked() && !t.IsExpired(now)
}

// State reports the token's position in the lifecycle. Revocation wins
// over expiry because it is the stronger signal.
func (t *RefreshToken) State(now time.Time) TokenState {
	switch {
	case t.IsDeleted():
		return TokenDeleted
	case t.IsRevoked():
		return TokenRevoked
	case t.IsExpired(now):
		return TokenExpired
	default:
		return TokenActive
	}
}
