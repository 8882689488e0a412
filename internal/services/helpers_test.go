package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/cache"
	"github.com/msavelyev-dev/teamcoach/internal/logging"
	"github.com/msavelyev-dev/teamcoach/internal/models"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/repomanager"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// testEnv wires every service against the in-memory repositories.
type testEnv struct {
	rm            *repomanager.InMemoryRepositoryManager
	accountCache  *cache.Cache[*models.Account]
	listCache     *cache.Cache[[]*models.Conversation]
	accounts      *AccountService
	conversations *ConversationService
	identity      *IdentityService
	history       *HistoryService
}

func newTestEnv(archiver Archiver) *testEnv {
	rm := repomanager.NewInMemoryRepositoryManager()
	accountCache := cache.New[*models.Account](time.Minute, 100)
	listCache := cache.New[[]*models.Conversation](time.Minute, 100)
	log := testLogger()

	accounts := NewAccountService(rm, accountCache, log)
	conversations := NewConversationService(rm, listCache, log)

	return &testEnv{
		rm:            rm,
		accountCache:  accountCache,
		listCache:     listCache,
		accounts:      accounts,
		conversations: conversations,
		identity:      NewIdentityService(rm, accounts, conversations, log),
		history:       NewHistoryService(rm, listCache, archiver, log),
	}
}

func (e *testEnv) mustAccount(ctx context.Context, a *models.Account) *models.Account {
	created, err := e.accounts.Create(ctx, a)
	if err != nil {
		panic(err)
	}
	return created
}
