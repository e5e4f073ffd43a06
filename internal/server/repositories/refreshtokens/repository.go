// Package refreshtokens declares the server-side repository contract for
// refresh tokens and provides PostgreSQL and in-memory implementations.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// Repository stores refresh tokens. Every write is a single atomic
// statement; multi-step use cases compose them inside a transaction.
type Repository interface {
	// FindValid returns the row for token only if it is live, not revoked
	// and not expired at now. Otherwise it returns common.ErrorNotFound.
	FindValid(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error)

	// Find returns the live (not soft-deleted) row for token in any
	// revoke/expiry state. It exists to explain a FindValid miss and must
	// not be used to decide validity.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Insert stores a new row and sets its ID. A live row with the same
	// token yields common.ErrDuplicateToken.
	Insert(ctx context.Context, row *models.RefreshToken) error

	// Revoke stamps revoked_at on the live, unrevoked row for token and
	// reports whether a row changed. Unknown, revoked or deleted tokens
	// are a successful no-op.
	Revoke(ctx context.Context, token string, at time.Time) (bool, error)

	// RevokeAllForSubject revokes every live, unrevoked row of subjectID
	// and returns how many changed. Already revoked rows keep their stamp.
	RevokeAllForSubject(ctx context.Context, subjectID int64, at time.Time) (int64, error)

	// SweepExpired soft-deletes every live row with expires_at < cutoff,
	// regardless of revocation, and returns the swept rows.
	SweepExpired(ctx context.Context, cutoff, deletedAt time.Time) ([]*models.RefreshToken, error)

	// ListForSubject returns the live rows of subjectID, newest first.
	ListForSubject(ctx context.Context, subjectID int64) ([]*models.RefreshToken, error)
}
