// Package backups persists point-in-time conversation snapshots.
package backups

import (
	"context"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/models"
)

type Repository interface {
	// Create inserts a snapshot row.
	Create(ctx context.Context, backup *models.ConversationBackup) (*models.ConversationBackup, error)

	// Get returns the backup if owned by accountID, otherwise common.ErrNotFound.
	Get(ctx context.Context, id, accountID string) (*models.ConversationBackup, error)

	// ListByAccount returns the account's backups, newest first, without payloads.
	ListByAccount(ctx context.Context, accountID string) ([]*models.ConversationBackup, error)

	// MarkRestored stamps the backup with the time it was last restored.
	MarkRestored(ctx context.Context, id string, restoredAt time.Time) error

	// RepointOwner moves every backup of fromAccountID to toAccountID.
	// Returns the number moved. Run inside the merge transaction.
	RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error)
}
