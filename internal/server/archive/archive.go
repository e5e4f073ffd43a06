// Package archive keeps an audit trail of refresh tokens removed by the
// cleanup sweep.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

type Archiver interface {
	// Archive persists rows and returns where they went. An empty slice is
	// a no-op.
	Archive(ctx context.Context, rows []*models.RefreshToken) (string, error)
}

// Nop discards everything. It is used when no bucket is configured.
type Nop struct{}

func (Nop) Archive(context.Context, []*models.RefreshToken) (string, error) { return "", nil }

// Record is the archived form of a refresh token row. The token itself is
// never written, only its fingerprint.
type Record struct {
	ID          int64      `json:"id"`
	SubjectID   int64      `json:"subject_id"`
	Fingerprint string     `json:"token_sha256"`
	IssuedAt    time.Time  `json:"issued_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
}

func NewRecord(t *models.RefreshToken) Record {
	return Record{
		ID:          t.ID,
		SubjectID:   t.SubjectID,
		Fingerprint: Fingerprint(t.Token),
		IssuedAt:    t.IssuedAt,
		ExpiresAt:   t.ExpiresAt,
		RevokedAt:   t.RevokedAt,
		DeletedAt:   t.DeletedAt,
		IPAddress:   t.IPAddress,
		UserAgent:   t.UserAgent,
	}
}

// Fingerprint is the hex SHA-256 of a token string.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
