package refreshtokens

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// MemoryStore is the backing state of MemoryRepository. It is not safe for
// concurrent use on its own; callers guard it with the lock handed to
// NewMemoryRepository.
type MemoryStore struct {
	rows   []*models.RefreshToken
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Snapshot returns a deep copy used to roll back a failed transaction.
func (s *MemoryStore) Snapshot() *MemoryStore {
	cp := &MemoryStore{rows: make([]*models.RefreshToken, len(s.rows)), nextID: s.nextID}
	for i, r := range s.rows {
		cp.rows[i] = clone(r)
	}
	return cp
}

// Restore replaces the state with a snapshot.
func (s *MemoryStore) Restore(from *MemoryStore) {
	s.rows = from.rows
	s.nextID = from.nextID
}

// MemoryRepository implements Repository in process memory.
type MemoryRepository struct {
	store *MemoryStore
	lock  sync.Locker
}

// NewMemoryRepository binds a repository to store. Each call takes lock;
// pass a no-op locker when the caller already holds it.
func NewMemoryRepository(store *MemoryStore, lock sync.Locker) *MemoryRepository {
	return &MemoryRepository{store: store, lock: lock}
}

func (r *MemoryRepository) FindValid(_ context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if row := r.live(token); row != nil && row.IsValid(now) {
		return clone(row), nil
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if row := r.live(token); row != nil {
		return clone(row), nil
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) Insert(_ context.Context, row *models.RefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.live(row.Token) != nil {
		return common.ErrDuplicateToken
	}
	row.ID = r.store.nextID
	r.store.nextID++
	r.store.rows = append(r.store.rows, clone(row))
	return nil
}

func (r *MemoryRepository) Revoke(_ context.Context, token string, at time.Time) (bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	row := r.live(token)
	if row == nil || row.IsRevoked() {
		return false, nil
	}
	row.RevokedAt = &at
	return true, nil
}

func (r *MemoryRepository) RevokeAllForSubject(_ context.Context, subjectID int64, at time.Time) (int64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var n int64
	for _, row := range r.store.rows {
		if row.SubjectID == subjectID && !row.IsDeleted() && !row.IsRevoked() {
			stamp := at
			row.RevokedAt = &stamp
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) SweepExpired(_ context.Context, cutoff, deletedAt time.Time) ([]*models.RefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var swept []*models.RefreshToken
	for _, row := range r.store.rows {
		if !row.IsDeleted() && row.ExpiresAt.Before(cutoff) {
			stamp := deletedAt
			row.DeletedAt = &stamp
			swept = append(swept, clone(row))
		}
	}
	return swept, nil
}

func (r *MemoryRepository) ListForSubject(_ context.Context, subjectID int64) ([]*models.RefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var out []*models.RefreshToken
	for _, row := range r.store.rows {
		if row.SubjectID == subjectID && !row.IsDeleted() {
			out = append(out, clone(row))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	return out, nil
}

// live returns the stored (not copied) live row for token.
func (r *MemoryRepository) live(token string) *models.RefreshToken {
	for _, row := range r.store.rows {
		if row.Token == token && !row.IsDeleted() {
			return row
		}
	}
	return nil
}

func clone(t *models.RefreshToken) *models.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		v := *t.RevokedAt
		c.RevokedAt = &v
	}
	if t.DeletedAt != nil {
		v := *t.DeletedAt
		c.DeletedAt = &v
	}
	return &c
}
