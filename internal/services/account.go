// Package services implements the operations of the persistence core on top
// of the repository layer: account management, identity resolution,
// conversation access, and history migration/backup.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/msavelyev-dev/teamcoach/internal/cache"
	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/logging"
	"github.com/msavelyev-dev/teamcoach/internal/models"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/repomanager"
)

// AccountService is the account store. Reads by id go through a bounded
// TTL+LRU cache; every mutation invalidates the cached entry before
// returning, so a caller never observes a pre-mutation value after a write.
type AccountService struct {
	repomanager repomanager.RepositoryManager
	cache       *cache.Cache[*models.Account]
	log         logging.Logger
}

func NewAccountService(rm repomanager.RepositoryManager, c *cache.Cache[*models.Account], log logging.Logger) *AccountService {
	return &AccountService{
		repomanager: rm,
		cache:       c,
		log:         log.With("service", "accounts"),
	}
}

func (s *AccountService) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if a, ok := s.cache.Get(id); ok {
		return a, nil
	}

	a, err := s.repomanager.Accounts(nil).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(a.ID, a)
	return a, nil
}

// GetByEmail bypasses the cache: email is a secondary lookup used by identity
// resolution, and resolution must see the freshest row.
func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.repomanager.Accounts(nil).GetByEmail(ctx, email)
}

func (s *AccountService) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if account.Email == "" {
		return nil, fmt.Errorf("%w: empty email", common.ErrInvalidClaim)
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.SubjectID == "" {
		account.SubjectID = account.ID
	}

	created, err := s.repomanager.Accounts(nil).Create(ctx, account)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "account created", "account_id", created.ID)
	return created, nil
}

func (s *AccountService) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	updated, err := s.repomanager.Accounts(nil).Update(ctx, account)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(updated.ID)
	return updated, nil
}

// CompleteOnboarding marks the account onboarded with its ordered strength
// selections. At most models.MaxTopStrengths entries are accepted.
func (s *AccountService) CompleteOnboarding(ctx context.Context, accountID string, topStrengths []string) (*models.Account, error) {
	if len(topStrengths) > models.MaxTopStrengths {
		return nil, fmt.Errorf("at most %d top strengths allowed, got %d", models.MaxTopStrengths, len(topStrengths))
	}

	a, err := s.repomanager.Accounts(nil).GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	a.Onboarded = true
	a.TopStrengths = topStrengths

	return s.Update(ctx, a)
}

func (s *AccountService) SetAdmin(ctx context.Context, accountID string, isAdmin bool) (*models.Account, error) {
	a, err := s.repomanager.Accounts(nil).GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	a.IsAdmin = isAdmin

	return s.Update(ctx, a)
}

func (s *AccountService) Delete(ctx context.Context, accountID string) error {
	if err := s.repomanager.Accounts(nil).SoftDelete(ctx, accountID); err != nil {
		return err
	}
	s.cache.Invalidate(accountID)
	s.log.Info(ctx, "account deleted", "account_id", accountID)
	return nil
}

// InvalidateCached drops the cached entry for accountID. Used by identity
// resolution, whose merges mutate accounts through their own transaction.
func (s *AccountService) InvalidateCached(accountID string) {
	s.cache.Invalidate(accountID)
}

func (s *AccountService) ListTeamMembers(ctx context.Context, accountID string) ([]*models.TeamMember, error) {
	return s.repomanager.TeamMembers(nil).ListByAccount(ctx, accountID)
}

func (s *AccountService) AddTeamMember(ctx context.Context, accountID, name string, strengths []string) (*models.TeamMember, error) {
	if err := validateMember(name, strengths); err != nil {
		return nil, err
	}

	m := &models.TeamMember{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      name,
		Strengths: strengths,
	}
	return s.repomanager.TeamMembers(nil).Create(ctx, m)
}

func (s *AccountService) UpdateTeamMember(ctx context.Context, accountID, memberID, name string, strengths []string) (*models.TeamMember, error) {
	if err := validateMember(name, strengths); err != nil {
		return nil, err
	}

	m := &models.TeamMember{
		ID:        memberID,
		AccountID: accountID,
		Name:      name,
		Strengths: strengths,
	}
	return s.repomanager.TeamMembers(nil).Update(ctx, m)
}

func (s *AccountService) RemoveTeamMember(ctx context.Context, accountID, memberID string) error {
	return s.repomanager.TeamMembers(nil).Delete(ctx, memberID, accountID)
}

func validateMember(name string, strengths []string) error {
	if name == "" {
		return fmt.Errorf("team member name must not be empty")
	}
	if len(strengths) > models.MaxTopStrengths {
		return fmt.Errorf("at most %d strengths allowed, got %d", models.MaxTopStrengths, len(strengths))
	}
	return nil
}
