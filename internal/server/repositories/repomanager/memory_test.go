package repomanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMemoryManager_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepositoryManager()

	err := m.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Users().Create(ctx, &models.Principal{Email: "a@example.com", IsActive: true}); err != nil {
			return err
		}
		return repos.RefreshTokens().Insert(ctx, &models.RefreshToken{Token: "t", SubjectID: 1, IssuedAt: at, ExpiresAt: at.Add(time.Hour)})
	})
	require.NoError(t, err)

	_, err = m.Users().FindByEmail(ctx, "a@example.com")
	assert.NoError(t, err)
	_, err = m.RefreshTokens().FindValid(ctx, "t", at)
	assert.NoError(t, err)
}

func TestMemoryManager_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepositoryManager()
	require.NoError(t, m.RefreshTokens().Insert(ctx, &models.RefreshToken{Token: "old", SubjectID: 1, IssuedAt: at, ExpiresAt: at.Add(time.Hour)}))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.RefreshTokens().Revoke(ctx, "old", at); err != nil {
			return err
		}
		if err := repos.RefreshTokens().Insert(ctx, &models.RefreshToken{Token: "new", SubjectID: 1, IssuedAt: at, ExpiresAt: at.Add(time.Hour)}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = m.RefreshTokens().FindValid(ctx, "old", at)
	assert.NoError(t, err, "revocation rolled back")
	_, err = m.RefreshTokens().Find(ctx, "new")
	assert.ErrorIs(t, err, common.ErrorNotFound, "insert rolled back")
}

func TestMemoryManager_WithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepositoryManager()

	assert.Panics(t, func() {
		_ = m.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
			_, _ = repos.Users().Create(ctx, &models.Principal{Email: "p@example.com"})
			panic("kaboom")
		})
	})

	_, err := m.Users().FindByEmail(ctx, "p@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	// lock was released
	_, err = m.Users().Create(ctx, &models.Principal{Email: "q@example.com"})
	assert.NoError(t, err)
}

func TestMemoryManager_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewMemoryRepositoryManager().WithTx(ctx, func(context.Context, Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryManager_TransactionsAreSerialized(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepositoryManager()
	require.NoError(t, m.RefreshTokens().Insert(ctx, &models.RefreshToken{Token: "r", SubjectID: 1, IssuedAt: at, ExpiresAt: at.Add(time.Hour)}))

	// Each goroutine tries to rotate the same token; only one may win.
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithTx(ctx, func(ctx context.Context, repos Repositories) error {
				if _, err := repos.RefreshTokens().FindValid(ctx, "r", at); err != nil {
					return err
				}
				changed, err := repos.RefreshTokens().Revoke(ctx, "r", at)
				if err != nil {
					return err
				}
				if !changed {
					return common.ErrRefreshTokenRevoked
				}
				return nil
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryManager_NoopLifecycle(t *testing.T) {
	m := NewMemoryRepositoryManager()
	assert.NoError(t, m.RunMigrations(context.Background()))
	assert.NoError(t, m.Close())
	var _ RepositoryManager = m
}
