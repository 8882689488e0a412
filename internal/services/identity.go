package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/dbx"
	"github.com/msavelyev-dev/teamcoach/internal/logging"
	"github.com/msavelyev-dev/teamcoach/internal/models"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/repomanager"
)

// IdentityService reconciles identity-provider claims with stored accounts.
// Resolve is called on every authenticated request, so the common case (the
// claim's subject already matches an account) must stay a single indexed
// lookup; rotation and merge are the rare slow paths.
type IdentityService struct {
	repomanager   repomanager.RepositoryManager
	accounts      *AccountService
	conversations *ConversationService
	log           logging.Logger
}

func NewIdentityService(rm repomanager.RepositoryManager, accounts *AccountService, conversations *ConversationService, log logging.Logger) *IdentityService {
	return &IdentityService{
		repomanager:   rm,
		accounts:      accounts,
		conversations: conversations,
		log:           log.With("service", "identity"),
	}
}

// Resolve maps the claim to exactly one active account, creating, rotating
// the subject of, or merging accounts as needed. Concurrent first-time logins
// for the same person can race on the unique indexes; one retry re-reads and
// lands on whichever account won.
func (s *IdentityService) Resolve(ctx context.Context, claim *models.IdentityClaim) (*models.Account, error) {
	if claim == nil || claim.SubjectID == "" || claim.Email == "" {
		return nil, common.ErrInvalidClaim
	}

	var resolved *models.Account
	backoff := retry.WithMaxRetries(1, retry.NewConstant(10*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		a, err := s.resolveOnce(ctx, claim)
		if err != nil {
			if errors.Is(err, common.ErrDuplicateEmail) || errors.Is(err, common.ErrNotFound) {
				return retry.RetryableError(err)
			}
			return err
		}
		resolved = a
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIdentityResolutionFailed, err)
	}
	return resolved, nil
}

func (s *IdentityService) resolveOnce(ctx context.Context, claim *models.IdentityClaim) (*models.Account, error) {
	repo := s.repomanager.Accounts(nil)

	bySubject, err := repo.GetBySubject(ctx, claim.SubjectID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	byEmail, err := repo.GetByEmail(ctx, claim.Email)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	switch {
	case bySubject == nil && byEmail == nil:
		return s.accounts.Create(ctx, &models.Account{
			ID:        claim.SubjectID,
			SubjectID: claim.SubjectID,
			Email:     claim.Email,
			FirstName: claim.FirstName,
			LastName:  claim.LastName,
			AvatarURL: claim.AvatarURL,
		})

	case bySubject != nil && (byEmail == nil || byEmail.ID == bySubject.ID):
		return s.refreshProfile(ctx, bySubject, claim)

	case bySubject == nil:
		// The provider rotated this person's subject: same email, new
		// subject. Rewrite the subject and profile; role, onboarding state
		// and strengths are untouched.
		s.log.Info(ctx, "subject rotation", "account_id", byEmail.ID)
		byEmail.SubjectID = claim.SubjectID
		return s.refreshProfile(ctx, byEmail, claim)

	default:
		return s.merge(ctx, bySubject, byEmail, claim)
	}
}

// refreshProfile pushes the claim's profile fields to the account when any of
// them changed. The claim is authoritative for email and profile, never for
// admin, onboarding or strengths.
func (s *IdentityService) refreshProfile(ctx context.Context, a *models.Account, claim *models.IdentityClaim) (*models.Account, error) {
	if a.Email == claim.Email && a.FirstName == claim.FirstName &&
		a.LastName == claim.LastName && a.AvatarURL == claim.AvatarURL &&
		a.SubjectID == claim.SubjectID {
		return a, nil
	}

	a.Email = claim.Email
	a.FirstName = claim.FirstName
	a.LastName = claim.LastName
	a.AvatarURL = claim.AvatarURL

	return s.accounts.Update(ctx, a)
}

// merge collapses two accounts that turned out to be the same person: the
// claim's subject matches one account while its email matches another. All
// writes happen in one transaction; either the merge completes or neither
// account changes.
func (s *IdentityService) merge(ctx context.Context, bySubject, byEmail *models.Account, claim *models.IdentityClaim) (*models.Account, error) {
	survivor, loser := pickSurvivor(bySubject, byEmail)
	absorbProfile(survivor, loser)
	survivor.SubjectID = claim.SubjectID
	survivor.Email = claim.Email

	log := s.log.With("survivor_id", survivor.ID, "loser_id", loser.ID)

	err := s.repomanager.WithinTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Accounts(tx).SoftDelete(ctx, loser.ID); err != nil {
			return err
		}

		movedConversations, err := s.repomanager.Conversations(tx).RepointOwner(ctx, loser.ID, survivor.ID)
		if err != nil {
			return err
		}
		movedMembers, err := s.repomanager.TeamMembers(tx).RepointOwner(ctx, loser.ID, survivor.ID)
		if err != nil {
			return err
		}
		movedBackups, err := s.repomanager.Backups(tx).RepointOwner(ctx, loser.ID, survivor.ID)
		if err != nil {
			return err
		}

		if _, err := s.repomanager.Accounts(tx).Update(ctx, survivor); err != nil {
			return err
		}

		log.Info(ctx, "accounts merged",
			"conversations_moved", movedConversations,
			"team_members_moved", movedMembers,
			"backups_moved", movedBackups,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.accounts.InvalidateCached(survivor.ID)
	s.accounts.InvalidateCached(loser.ID)
	s.conversations.InvalidateCached(survivor.ID)
	s.conversations.InvalidateCached(loser.ID)

	return survivor, nil
}
