package repomanager

import (
	"context"

	"github.com/msavelyev-dev/teamcoach/internal/dbx"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/accounts"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/backups"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/conversations"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/teammembers"
)

// InMemoryRepositoryManager backs service tests. The accessors always return
// the same shared instances; WithinTx runs fn directly against them and rolls
// the repositories back to a checkpoint when fn fails.
type InMemoryRepositoryManager struct {
	accounts      *accounts.InMemoryRepository
	teamMembers   *teammembers.InMemoryRepository
	conversations *conversations.InMemoryRepository
	backups       *backups.InMemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		accounts:      accounts.NewInMemoryRepository(),
		teamMembers:   teammembers.NewInMemoryRepository(),
		conversations: conversations.NewInMemoryRepository(),
		backups:       backups.NewInMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	restores := []func(){
		m.accounts.Checkpoint(),
		m.teamMembers.Checkpoint(),
		m.conversations.Checkpoint(),
		m.backups.Checkpoint(),
	}

	if err := fn(ctx, nil); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

func (m *InMemoryRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return m.accounts
}

func (m *InMemoryRepositoryManager) TeamMembers(db dbx.DBTX) teammembers.Repository {
	return m.teamMembers
}

func (m *InMemoryRepositoryManager) Conversations(db dbx.DBTX) conversations.Repository {
	return m.conversations
}

func (m *InMemoryRepositoryManager) Backups(db dbx.DBTX) backups.Repository {
	return m.backups
}

func (m *InMemoryRepositoryManager) Close() error {
	return nil
}
