package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/tokenkeeper/internal/timex"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "correct horse battery staple"
	accessTTL    = 15 * time.Minute
	refreshTTL   = 7 * 24 * time.Hour
	skew         = 5 * time.Minute
)

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc       *SessionService
	repos     *faultyManager
	clock     *timex.FakeClock
	issuer    *auth.Issuer
	validator *auth.Validator
	hasher    *countingHasher
}

func newTestEnv(t *testing.T, opts ...SessionOption) *testEnv {
	t.Helper()

	clock := timex.NewFakeClock(start)
	key, err := auth.NewSigningKey([]byte(testSecret), "tokenkeeper-test", "tokenkeeper-test-clients")
	require.NoError(t, err)
	codec := auth.NewCodec(key, skew, clock)

	env := &testEnv{
		repos:     &faultyManager{MemoryRepositoryManager: repomanager.NewMemoryRepositoryManager()},
		clock:     clock,
		issuer:    auth.NewIssuer(codec, accessTTL, refreshTTL, auth.WithClock(clock)),
		validator: auth.NewValidator(codec),
		hasher:    &countingHasher{inner: auth.BcryptHasher{Cost: bcrypt.MinCost}},
	}
	opts = append([]SessionOption{WithSessionClock(clock)}, opts...)
	env.svc = NewSessionService(env.repos, env.issuer, env.validator, env.hasher, opts...)
	return env
}

// addPrincipal stores an active principal with testPassword.
func (e *testEnv) addPrincipal(t *testing.T, id int64, email string, mutate ...func(*models.Principal)) *models.Principal {
	t.Helper()
	hash, err := e.hasher.inner.Hash(testPassword)
	require.NoError(t, err)

	p := &models.Principal{ID: id, Email: email, PasswordHash: hash, IsActive: true}
	for _, m := range mutate {
		m(p)
	}
	p, err = e.repos.MemoryRepositoryManager.Users().Create(context.Background(), p)
	require.NoError(t, err)
	return p
}

func (e *testEnv) login(t *testing.T, email string) *auth.TokenPair {
	t.Helper()
	pair, err := e.svc.Login(context.Background(), LoginRequest{Email: email, Password: testPassword, IPAddress: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	return pair
}

func (e *testEnv) refresh(token string) (*auth.TokenPair, error) {
	return e.svc.Refresh(context.Background(), RefreshRequest{RefreshToken: token, IPAddress: "10.0.0.2", UserAgent: "test"})
}

type countingHasher struct {
	inner auth.BcryptHasher

	mu       sync.Mutex
	compared []string
}

func (h *countingHasher) Compare(hashed, plain string) bool {
	h.mu.Lock()
	h.compared = append(h.compared, hashed)
	h.mu.Unlock()
	return h.inner.Compare(hashed, plain)
}

func (h *countingHasher) DummyHash() string { return h.inner.DummyHash() }

// faultyManager wraps the memory backend and can inject failures or record
// calls, both inside and outside transactions.
type faultyManager struct {
	*repomanager.MemoryRepositoryManager

	usersErr   error
	insertErr  error
	revokeNoop bool

	mu     sync.Mutex
	locked []int64
	found  []int64
}

func (m *faultyManager) Users() users.Repository {
	return &faultyUsers{Repository: m.MemoryRepositoryManager.Users(), m: m}
}

func (m *faultyManager) RefreshTokens() refreshtokens.Repository {
	return &faultyTokens{Repository: m.MemoryRepositoryManager.RefreshTokens(), m: m}
}

func (m *faultyManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	return m.MemoryRepositoryManager.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		return fn(ctx, faultyRepos{inner: r, m: m})
	})
}

type faultyRepos struct {
	inner repomanager.Repositories
	m     *faultyManager
}

func (r faultyRepos) Users() users.Repository {
	return &faultyUsers{Repository: r.inner.Users(), m: r.m}
}

func (r faultyRepos) RefreshTokens() refreshtokens.Repository {
	return &faultyTokens{Repository: r.inner.RefreshTokens(), m: r.m}
}

type faultyUsers struct {
	users.Repository
	m *faultyManager
}

func (u *faultyUsers) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	if u.m.usersErr != nil {
		return nil, u.m.usersErr
	}
	return u.Repository.FindByEmail(ctx, email)
}

func (u *faultyUsers) FindByID(ctx context.Context, id int64) (*models.Principal, error) {
	u.m.mu.Lock()
	u.m.found = append(u.m.found, id)
	u.m.mu.Unlock()
	if u.m.usersErr != nil {
		return nil, u.m.usersErr
	}
	return u.Repository.FindByID(ctx, id)
}

func (u *faultyUsers) LockForUpdate(ctx context.Context, id int64) (*models.Principal, error) {
	u.m.mu.Lock()
	u.m.locked = append(u.m.locked, id)
	u.m.mu.Unlock()
	if u.m.usersErr != nil {
		return nil, u.m.usersErr
	}
	return u.Repository.LockForUpdate(ctx, id)
}

type faultyTokens struct {
	refreshtokens.Repository
	m *faultyManager
}

func (r *faultyTokens) Insert(ctx context.Context, row *models.RefreshToken) error {
	if r.m.insertErr != nil {
		return r.m.insertErr
	}
	return r.Repository.Insert(ctx, row)
}

func (r *faultyTokens) Revoke(ctx context.Context, token string, at time.Time) (bool, error) {
	if r.m.revokeNoop {
		return false, nil
	}
	return r.Repository.Revoke(ctx, token, at)
}
