// Package conversations persists conversations and their ordered messages.
// Every read is scoped by owner account id; a conversation id alone is never
// sufficient to reach another account's data.
package conversations

import (
	"context"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/models"
)

type Repository interface {
	// ListByAccount returns the account's non-archived conversations,
	// most-recent-activity first.
	ListByAccount(ctx context.Context, accountID string) ([]*models.Conversation, error)

	// ListAllByAccount returns every conversation of the account, archived
	// included, most-recent-activity first. Used by backups.
	ListAllByAccount(ctx context.Context, accountID string) ([]*models.Conversation, error)

	// Get returns the conversation if it exists and belongs to accountID;
	// otherwise common.ErrNotFound.
	Get(ctx context.Context, id, accountID string) (*models.Conversation, error)

	// Create inserts a conversation.
	Create(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error)

	// Rename updates the title if owned by accountID.
	Rename(ctx context.Context, id, accountID, title string) error

	// Archive soft-hides the conversation from ListByAccount.
	Archive(ctx context.Context, id, accountID string) error

	// Delete removes the conversation and, by cascade, its messages.
	Delete(ctx context.Context, id, accountID string) error

	// TouchActivity bumps the conversation's last-activity timestamp.
	TouchActivity(ctx context.Context, id string, at time.Time) error

	// RepointOwner moves all conversations of fromAccountID to toAccountID.
	// Returns the number moved. Run inside the merge transaction.
	RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error)

	// LocalIDs returns the set of client-generated local ids recorded in the
	// account's conversation metadata. This is the migration dedup key.
	LocalIDs(ctx context.Context, accountID string) (map[string]struct{}, error)

	// AddMessage appends a message to its conversation.
	AddMessage(ctx context.Context, message *models.Message) (*models.Message, error)

	// ListMessages returns the conversation's messages in increasing
	// timestamp order.
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
}
