package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/models"
)

// InMemoryRepository mirrors the PostgreSQL semantics for tests: active-only
// lookups, case-insensitive email uniqueness, soft deletes.
type InMemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{accounts: make(map[string]*models.Account)}
}

func (r *InMemoryRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if !a.Deleted() && strings.EqualFold(a.Email, account.Email) {
			return nil, common.ErrDuplicateEmail
		}
	}

	stored := cloneAccount(account)
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.accounts[stored.ID] = stored

	return cloneAccount(stored), nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok || a.Deleted() {
		return nil, common.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (r *InMemoryRepository) GetBySubject(ctx context.Context, subjectID string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if !a.Deleted() && a.SubjectID == subjectID {
			return cloneAccount(a), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if !a.Deleted() && strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *InMemoryRepository) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.accounts[account.ID]
	if !ok || existing.Deleted() {
		return nil, common.ErrNotFound
	}

	for _, a := range r.accounts {
		if a.ID != account.ID && !a.Deleted() && strings.EqualFold(a.Email, account.Email) {
			return nil, common.ErrDuplicateEmail
		}
	}

	stored := cloneAccount(account)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	r.accounts[stored.ID] = stored

	return cloneAccount(stored), nil
}

func (r *InMemoryRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok || a.Deleted() {
		return common.ErrNotFound
	}

	now := time.Now().UTC()
	a.DeletedAt = &now
	a.UpdatedAt = now
	return nil
}

// Checkpoint captures the current state and returns a function restoring it.
// The in-memory manager uses it to mimic transaction rollback.
func (r *InMemoryRepository) Checkpoint() func() {
	r.mu.RLock()
	saved := make(map[string]*models.Account, len(r.accounts))
	for id, a := range r.accounts {
		saved[id] = cloneAccount(a)
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.accounts = saved
		r.mu.Unlock()
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.TopStrengths = append([]string(nil), a.TopStrengths...)
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}
