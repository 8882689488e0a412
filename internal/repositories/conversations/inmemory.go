package conversations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/models"
)

// InMemoryRepository mirrors the PostgreSQL semantics for tests: owner-scoped
// reads, activity ordering, cascade delete of messages.
type InMemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message // conversation id → messages
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
	}
}

func (r *InMemoryRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Conversation, error) {
	return r.listWhere(accountID, false)
}

func (r *InMemoryRepository) ListAllByAccount(ctx context.Context, accountID string) ([]*models.Conversation, error) {
	return r.listWhere(accountID, true)
}

func (r *InMemoryRepository) Get(ctx context.Context, id, accountID string) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok || c.AccountID != accountID {
		return nil, common.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (r *InMemoryRepository) Create(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := cloneConversation(conversation)
	now := time.Now().UTC()
	stored.CreatedAt = now
	if stored.LastActivityAt.IsZero() {
		stored.LastActivityAt = now
	}
	r.conversations[stored.ID] = stored
	conversation.CreatedAt = stored.CreatedAt
	conversation.LastActivityAt = stored.LastActivityAt

	return cloneConversation(stored), nil
}

func (r *InMemoryRepository) Rename(ctx context.Context, id, accountID, title string) error {
	return r.mutateOwned(id, accountID, func(c *models.Conversation) {
		c.Title = title
	})
}

func (r *InMemoryRepository) Archive(ctx context.Context, id, accountID string) error {
	return r.mutateOwned(id, accountID, func(c *models.Conversation) {
		c.Archived = true
	})
}

func (r *InMemoryRepository) Delete(ctx context.Context, id, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok || c.AccountID != accountID {
		return common.ErrNotFound
	}
	delete(r.conversations, id)
	delete(r.messages, id)
	return nil
}

func (r *InMemoryRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conversations[id]; ok {
		c.LastActivityAt = at
	}
	return nil
}

func (r *InMemoryRepository) RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var moved int64
	for _, c := range r.conversations {
		if c.AccountID == fromAccountID {
			c.AccountID = toAccountID
			moved++
		}
	}
	return moved, nil
}

func (r *InMemoryRepository) LocalIDs(ctx context.Context, accountID string) (map[string]struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make(map[string]struct{})
	for _, c := range r.conversations {
		if c.AccountID != accountID {
			continue
		}
		if localID, ok := c.Metadata[models.MetaLocalID]; ok {
			ids[localID] = struct{}{}
		}
	}
	return ids, nil
}

func (r *InMemoryRepository) AddMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *message
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], &stored)

	out := stored
	return &out, nil
}

func (r *InMemoryRepository) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[conversationID]
	out := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Checkpoint captures the current state and returns a function restoring it.
// The in-memory manager uses it to mimic transaction rollback.
func (r *InMemoryRepository) Checkpoint() func() {
	r.mu.RLock()
	conversations := make(map[string]*models.Conversation, len(r.conversations))
	for id, c := range r.conversations {
		conversations[id] = cloneConversation(c)
	}
	messages := make(map[string][]*models.Message, len(r.messages))
	for id, msgs := range r.messages {
		copied := make([]*models.Message, len(msgs))
		for i, m := range msgs {
			c := *m
			copied[i] = &c
		}
		messages[id] = copied
	}
	r.mu.RUnlock()

	return func() {
		r.mu.Lock()
		r.conversations = conversations
		r.messages = messages
		r.mu.Unlock()
	}
}

func (r *InMemoryRepository) listWhere(accountID string, includeArchived bool) ([]*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Conversation
	for _, c := range r.conversations {
		if c.AccountID != accountID {
			continue
		}
		if !includeArchived && c.Archived {
			continue
		}
		out = append(out, cloneConversation(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

func (r *InMemoryRepository) mutateOwned(id, accountID string, fn func(*models.Conversation)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok || c.AccountID != accountID {
		return common.ErrNotFound
	}
	fn(c)
	return nil
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	clone := *c
	if c.Metadata != nil {
		clone.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
