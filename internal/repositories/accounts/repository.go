// Package accounts persists account records. All getters see only
// non-deleted accounts; the losing side of a merge is soft-deleted and
// disappears from every lookup.
package accounts

import (
	"context"

	"github.com/msavelyev-dev/teamcoach/internal/models"
)

type Repository interface {
	// Create inserts a new account. Returns common.ErrDuplicateEmail when an
	// active account already holds the email.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// GetByID returns the active account with the given internal id, or
	// common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// GetBySubject returns the active account whose current provider subject
	// matches subjectID, or common.ErrNotFound.
	GetBySubject(ctx context.Context, subjectID string) (*models.Account, error)

	// GetByEmail returns the active account with the given email
	// (case-insensitive), or common.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// Update persists all mutable fields of account. Returns
	// common.ErrDuplicateEmail when the email would collide with another
	// active account, common.ErrNotFound when the account is gone.
	Update(ctx context.Context, account *models.Account) (*models.Account, error)

	// SoftDelete removes the account from all lookups while keeping the row.
	SoftDelete(ctx context.Context, id string) error
}
