package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msavelyev-dev/teamcoach/internal/cache"
	"github.com/msavelyev-dev/teamcoach/internal/logging"
	"github.com/msavelyev-dev/teamcoach/internal/models"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/repomanager"
)

// timeNow is a seam for tests.
var timeNow = time.Now

// ConversationService owns conversation and message access. The per-account
// conversation listing is cache-fronted; messages are always read from the
// store. Every operation is scoped by the requesting account id.
type ConversationService struct {
	repomanager repomanager.RepositoryManager
	listCache   *cache.Cache[[]*models.Conversation]
	log         logging.Logger
}

func NewConversationService(rm repomanager.RepositoryManager, listCache *cache.Cache[[]*models.Conversation], log logging.Logger) *ConversationService {
	return &ConversationService{
		repomanager: rm,
		listCache:   listCache,
		log:         log.With("service", "conversations"),
	}
}

// List returns the account's non-archived conversations, most recent
// activity first.
func (s *ConversationService) List(ctx context.Context, accountID string) ([]*models.Conversation, error) {
	if cached, ok := s.listCache.Get(accountID); ok {
		return cached, nil
	}

	list, err := s.repomanager.Conversations(nil).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	s.listCache.Set(accountID, list)
	return list, nil
}

// Get returns the conversation and its messages in timestamp order. A
// conversation owned by another account is reported as not found.
func (s *ConversationService) Get(ctx context.Context, id, accountID string) (*models.Conversation, []*models.Message, error) {
	repo := s.repomanager.Conversations(nil)

	c, err := repo.Get(ctx, id, accountID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := repo.ListMessages(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	return c, messages, nil
}

func (s *ConversationService) Create(ctx context.Context, accountID, title, mode string) (*models.Conversation, error) {
	if !models.ValidMode(mode) {
		return nil, fmt.Errorf("invalid conversation mode %q", mode)
	}

	c := &models.Conversation{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Title:     title,
		Mode:      mode,
	}
	created, err := s.repomanager.Conversations(nil).Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.listCache.Invalidate(accountID)
	return created, nil
}

// AddMessage appends a message to an owned conversation and bumps its
// activity timestamp, which reorders the account's listing.
func (s *ConversationService) AddMessage(ctx context.Context, conversationID, accountID, role, content string) (*models.Message, error) {
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("invalid message role %q", role)
	}

	repo := s.repomanager.Conversations(nil)

	// Ownership check before the write.
	if _, err := repo.Get(ctx, conversationID, accountID); err != nil {
		return nil, err
	}

	now := timeNow().UTC()
	m := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}
	added, err := repo.AddMessage(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := repo.TouchActivity(ctx, conversationID, now); err != nil {
		return nil, err
	}
	s.listCache.Invalidate(accountID)
	return added, nil
}

func (s *ConversationService) Rename(ctx context.Context, id, accountID, title string) error {
	if err := s.repomanager.Conversations(nil).Rename(ctx, id, accountID, title); err != nil {
		return err
	}
	s.listCache.Invalidate(accountID)
	return nil
}

func (s *ConversationService) Archive(ctx context.Context, id, accountID string) error {
	if err := s.repomanager.Conversations(nil).Archive(ctx, id, accountID); err != nil {
		return err
	}
	s.listCache.Invalidate(accountID)
	return nil
}

func (s *ConversationService) Delete(ctx context.Context, id, accountID string) error {
	if err := s.repomanager.Conversations(nil).Delete(ctx, id, accountID); err != nil {
		return err
	}
	s.listCache.Invalidate(accountID)
	s.log.Info(ctx, "conversation deleted", "conversation_id", id, "account_id", accountID)
	return nil
}

// InvalidateCached drops the account's cached listing. Used by identity
// resolution after a merge repoints conversations.
func (s *ConversationService) InvalidateCached(accountID string) {
	s.listCache.Invalidate(accountID)
}
