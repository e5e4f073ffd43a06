package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// MemoryStore holds principals for MemoryRepository. Guard it with the lock
// passed to NewMemoryRepository.
type MemoryStore struct {
	byID   map[int64]*models.Principal
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[int64]*models.Principal{}, nextID: 1}
}

func (s *MemoryStore) Snapshot() *MemoryStore {
	cp := &MemoryStore{byID: make(map[int64]*models.Principal, len(s.byID)), nextID: s.nextID}
	for id, p := range s.byID {
		c := *p
		cp.byID[id] = &c
	}
	return cp
}

func (s *MemoryStore) Restore(from *MemoryStore) {
	s.byID = from.byID
	s.nextID = from.nextID
}

type MemoryRepository struct {
	store *MemoryStore
	lock  sync.Locker
	now   func() time.Time
}

func NewMemoryRepository(store *MemoryStore, lock sync.Locker) *MemoryRepository {
	return &MemoryRepository{store: store, lock: lock, now: func() time.Time { return time.Now().UTC() }}
}

func (r *MemoryRepository) Create(_ context.Context, p *models.Principal) (*models.Principal, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	email := normalizeEmail(p.Email)
	for _, existing := range r.store.byID {
		if existing.Email == email {
			return nil, common.ErrDuplicateEmail
		}
	}

	// a preset ID is kept so fixtures can pin subjects
	if p.ID == 0 {
		p.ID = r.store.nextID
	} else if _, taken := r.store.byID[p.ID]; taken {
		return nil, common.ErrDuplicateEmail
	}
	if p.ID >= r.store.nextID {
		r.store.nextID = p.ID + 1
	}
	p.Email = email
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}

	c := *p
	r.store.byID[p.ID] = &c
	return p, nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	email = normalizeEmail(email)
	for _, p := range r.store.byID {
		if p.Email == email {
			c := *p
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*models.Principal, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	p, ok := r.store.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

// LockForUpdate needs no row lock here: memory transactions already hold
// the store-wide lock.
func (r *MemoryRepository) LockForUpdate(ctx context.Context, id int64) (*models.Principal, error) {
	return r.FindByID(ctx, id)
}

func (r *MemoryRepository) SetActive(_ context.Context, id int64, active bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	p, ok := r.store.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	p.IsActive = active
	return nil
}
