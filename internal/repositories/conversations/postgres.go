package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/dbx"
	"github.com/msavelyev-dev/teamcoach/internal/models"
)

const conversationColumns = `id, account_id, title, mode, archived, metadata, last_activity_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		 FROM conversations
		 WHERE account_id = $1 AND archived = false
		 ORDER BY last_activity_at DESC
		 `
	return r.list(ctx, query, accountID)
}

func (r *PostgresRepository) ListAllByAccount(ctx context.Context, accountID string) ([]*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		 FROM conversations
		 WHERE account_id = $1
		 ORDER BY last_activity_at DESC
		 `
	return r.list(ctx, query, accountID)
}

func (r *PostgresRepository) Get(ctx context.Context, id, accountID string) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		 FROM conversations
		 WHERE id = $1 AND account_id = $2
		 `

	c, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error) {
	metadata, err := marshalMetadata(conversation.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	now := time.Now().UTC()
	if conversation.LastActivityAt.IsZero() {
		conversation.LastActivityAt = now
	}

	query :=
		`INSERT INTO conversations (id, account_id, title, mode, archived, metadata, last_activity_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		conversation.ID, conversation.AccountID, conversation.Title, conversation.Mode,
		conversation.Archived, metadata, conversation.LastActivityAt,
	).Scan(&conversation.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return conversation, nil
}

func (r *PostgresRepository) Rename(ctx context.Context, id, accountID, title string) error {
	query := `UPDATE conversations SET title = $3 WHERE id = $1 AND account_id = $2`
	return r.execOwned(ctx, query, id, accountID, title)
}

func (r *PostgresRepository) Archive(ctx context.Context, id, accountID string) error {
	query := `UPDATE conversations SET archived = true WHERE id = $1 AND account_id = $2`
	return r.execOwned(ctx, query, id, accountID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, accountID string) error {
	query := `DELETE FROM conversations WHERE id = $1 AND account_id = $2`
	return r.execOwned(ctx, query, id, accountID)
}

func (r *PostgresRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE conversations SET last_activity_at = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *PostgresRepository) RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error) {
	query := `UPDATE conversations SET account_id = $2 WHERE account_id = $1`

	result, err := r.db.ExecContext(ctx, query, fromAccountID, toAccountID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return moved, nil
}

func (r *PostgresRepository) LocalIDs(ctx context.Context, accountID string) (map[string]struct{}, error) {
	query :=
		`SELECT metadata ->> 'local_id'
		 FROM conversations
		 WHERE account_id = $1 AND metadata ? 'local_id'
		 `

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return ids, nil
}

func (r *PostgresRepository) AddMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	query :=
		`INSERT INTO messages (id, conversation_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 `

	_, err := r.db.ExecContext(ctx, query,
		message.ID, message.ConversationID, message.Role, message.Content, message.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return message, nil
}

func (r *PostgresRepository) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	query :=
		`SELECT id, conversation_id, role, content, created_at
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at, id
		 `

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return messages, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		c, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return conversations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOne(row rowScanner) (*models.Conversation, error) {
	c := &models.Conversation{}
	var metadata []byte

	err := row.Scan(&c.ID, &c.AccountID, &c.Title, &c.Mode, &c.Archived,
		&metadata, &c.LastActivityAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) execOwned(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}
