package backups

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/models"
)

type InMemoryRepository struct {
	mu      sync.RWMutex
	backups map[string]*models.ConversationBackup
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{backups: make(map[string]*models.ConversationBackup)}
}

func (r *InMemoryRepository) Create(ctx context.Context, backup *models.ConversationBackup) (*models.ConversationBackup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneBackup(backup)
	stored.CreatedAt = time.Now().UTC()
	r.backups[stored.ID] = stored
	backup.CreatedAt = stored.CreatedAt

	return cloneBackup(stored), nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id, accountID string) (*models.ConversationBackup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backups[id]
	if !ok || b.AccountID != accountID {
		return nil, common.ErrNotFound
	}
	return cloneBackup(b), nil
}

func (r *InMemoryRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.ConversationBackup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.ConversationBackup
	for _, b := range r.backups {
		if b.AccountID != accountID {
			continue
		}
		c := cloneBackup(b)
		c.Payload = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) MarkRestored(ctx context.Context, id string, restoredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.backups[id]
	if !ok {
		return common.ErrNotFound
	}
	at := restoredAt
	b.RestoredAt = &at
	return nil
}

func (r *InMemoryRepository) RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var moved int64
	for _, b := range r.backups {
		if b.AccountID == fromAccountID {
			b.AccountID = toAccountID
			moved++
		}
	}
	return moved, nil
}

// Checkpoint captures the current state and returns a function restoring it.
// The in-memory manager uses it to mimic transaction rollback.
func (r *InMemoryRepository) Checkpoint() func() {
	r.mu.RLock()
	saved := make(map[string]*models.ConversationBackup, len(r.backups))
	for id, b := range r.backups {
		saved[id] = cloneBackup(b)
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.backups = saved
		r.mu.Unlock()
	}
}

func cloneBackup(b *models.ConversationBackup) *models.ConversationBackup {
	c := *b
	c.Payload = append([]byte(nil), b.Payload...)
	if b.RestoredAt != nil {
		at := *b.RestoredAt
		c.RestoredAt = &at
	}
	return &c
}
