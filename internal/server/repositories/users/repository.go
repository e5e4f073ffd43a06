// Package users gives the session layer read access to principals plus
// the few writes it needs: creating seed accounts and toggling activation.
package users

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	FindByID(ctx context.Context, id int64) (*models.Principal, error)
	// LockForUpdate is FindByID that also holds a row lock until the
	// surrounding transaction ends. Outside a transaction it behaves as
	// FindByID.
	LockForUpdate(ctx context.Context, id int64) (*models.Principal, error)
	SetActive(ctx context.Context, id int64, active bool) error
}
