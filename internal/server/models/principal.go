package models

import "time"

// Principal is an account that can log in. The session layer reads it and
// flips IsActive; registration lives elsewhere.
type Principal struct {
	ID              int64
	Email           string
	PasswordHash    string
	IsActive        bool
	IsEmailVerified bool
	OAuthProvider   string
	CreatedAt       time.Time
}
