// Package repomanager bundles the repositories the session layer needs and
// runs multi-step use cases atomically against a single backend.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// Repositories is a set of repositories bound to one connection or
// transaction.
type Repositories interface {
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
}

type RepositoryManager interface {
	Repositories

	RunMigrations(ctx context.Context) error

	// WithTx runs fn with repositories bound to a single transaction.
	// It commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	Close() error
}
