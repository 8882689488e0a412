package teammembers

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
	members map[string]*models.TeamMember
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{members: make(map[string]*models.TeamMember)}
}

func (r *InMemoryRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.TeamMember
	for _, m := range r.members {
		if m.AccountID == accountID {
			out = append(out, cloneMember(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) Create(ctx context.Context, member *models.TeamMember) (*models.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nameTaken(member.AccountID, member.Name, "") {
		return nil, common.ErrDuplicateName
	}

	stored := cloneMember(member)
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.members[stored.ID] = stored

	return cloneMember(stored), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, member *models.TeamMember) (*models.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.members[member.ID]
	if !ok || existing.AccountID != member.AccountID {
		return nil, common.ErrNotFound
	}
	if r.nameTaken(member.AccountID, member.Name, member.ID) {
		return nil, common.ErrDuplicateName
	}

	stored := cloneMember(member)
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	r.members[stored.ID] = stored

	return cloneMember(stored), nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok || m.AccountID != accountID {
		return common.ErrNotFound
	}
	delete(r.members, id)
	return nil
}

func (r *InMemoryRepository) RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := make(map[string]struct{})
	for _, m := range r.members {
		if m.AccountID == toAccountID {
			taken[m.Name] = struct{}{}
		}
	}

	var moved int64
	for id, m := range r.members {
		if m.AccountID != fromAccountID {
			continue
		}
		if _, collides := taken[m.Name]; collides {
			delete(r.members, id)
			continue
		}
		m.AccountID = toAccountID
		m.UpdatedAt = time.Now().UTC()
		moved++
	}
	return moved, nil
}

// Checkpoint captures the current state and returns a function restoring it.
// The in-memory manager uses it to mimic transaction rollback.
func (r *InMemoryRepository) Checkpoint() func() {
	r.mu.RLock()
	saved := make(map[string]*models.TeamMember, len(r.members))
	for id, m := range r.members {
		saved[id] = cloneMember(m)
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.members = saved
		r.mu.Unlock()
	}
}

func (r *InMemoryRepository) nameTaken(accountID, name, excludeID string) bool {
	for _, m := range r.members {
		if m.ID != excludeID && m.AccountID == accountID && m.Name == name {
			return true
		}
	}
	return false
}

func cloneMember(m *models.TeamMember) *models.TeamMember {
	c := *m
	c.Strengths = append([]string(nil), m.Strengths...)
	return &c
}
