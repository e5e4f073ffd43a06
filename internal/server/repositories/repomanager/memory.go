package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory. Transactions
// are serialized on one mutex and rolled back from a snapshot.
type MemoryRepositoryManager struct {
	mu     sync.Mutex
	users  *users.MemoryStore
	tokens *refreshtokens.MemoryStore
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:  users.NewMemoryStore(),
		tokens: refreshtokens.NewMemoryStore(),
	}
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

type memRepos struct {
	users  users.Repository
	tokens refreshtokens.Repository
}

func (r memRepos) Users() users.Repository                 { return r.users }
func (r memRepos) RefreshTokens() refreshtokens.Repository { return r.tokens }

func (m *MemoryRepositoryManager) Users() users.Repository {
	return users.NewMemoryRepository(m.users, &m.mu)
}

func (m *MemoryRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return refreshtokens.NewMemoryRepository(m.tokens, &m.mu)
}

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usersSnap, tokensSnap := m.users.Snapshot(), m.tokens.Snapshot()
	defer func() {
		if p := recover(); p != nil {
			m.users.Restore(usersSnap)
			m.tokens.Restore(tokensSnap)
			panic(p)
		}
		if err != nil {
			m.users.Restore(usersSnap)
			m.tokens.Restore(tokensSnap)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, memRepos{
		users:  users.NewMemoryRepository(m.users, noLock{}),
		tokens: refreshtokens.NewMemoryRepository(m.tokens, noLock{}),
	})
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }
