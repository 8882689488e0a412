// Package teammembers persists roster members. A member belongs to exactly
// one account and its name is unique within that account.
package teammembers

import (
	"context"

	"github.com/msavelyev-dev/teamcoach/internal/models"
)

type Repository interface {
	// ListByAccount returns the account's members ordered by name.
	ListByAccount(ctx context.Context, accountID string) ([]*models.TeamMember, error)

	// Create inserts a member. Returns common.ErrDuplicateName when the owner
	// already has a member with that name.
	Create(ctx context.Context, member *models.TeamMember) (*models.TeamMember, error)

	// Update persists name and strengths. The member must belong to
	// member.AccountID or common.ErrNotFound is returned.
	Update(ctx context.Context, member *models.TeamMember) (*models.TeamMember, error)

	// Delete removes the member if owned by accountID.
	Delete(ctx context.Context, id, accountID string) error

	// RepointOwner moves every member of fromAccountID to toAccountID,
	// dropping members whose name already exists under the target owner.
	// Returns the number of members moved. Run inside the merge transaction.
	RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error)
}
