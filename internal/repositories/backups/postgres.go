package backups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msavelyev-dev/teamcoach/internal/common"
	"github.com/msavelyev-dev/teamcoach/internal/dbx"
	"github.com/msavelyev-dev/teamcoach/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, backup *models.ConversationBackup) (*models.ConversationBackup, error) {
	query :=
		`INSERT INTO conversation_backups (id, account_id, payload, storage_key)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		backup.ID, backup.AccountID, backup.Payload, backup.StorageKey,
	).Scan(&backup.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return backup, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id, accountID string) (*models.ConversationBackup, error) {
	query :=
		`SELECT id, account_id, payload, storage_key, created_at, restored_at
		 FROM conversation_backups
		 WHERE id = $1 AND account_id = $2
		 `

	b := &models.ConversationBackup{}
	err := r.db.QueryRowContext(ctx, query, id, accountID).
		Scan(&b.ID, &b.AccountID, &b.Payload, &b.StorageKey, &b.CreatedAt, &b.RestoredAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return b, nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.ConversationBackup, error) {
	// Payloads can be large; listings only carry the envelope.
	query :=
		`SELECT id, account_id, storage_key, created_at, restored_at
		 FROM conversation_backups
		 WHERE account_id = $1
		 ORDER BY created_at DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var backups []*models.ConversationBackup
	for rows.Next() {
		b := &models.ConversationBackup{}
		if err := rows.Scan(&b.ID, &b.AccountID, &b.StorageKey, &b.CreatedAt, &b.RestoredAt); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return backups, nil
}

func (r *PostgresRepository) RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error) {
	query := `UPDATE conversation_backups SET account_id = $2 WHERE account_id = $1`

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

func (r *PostgresRepository) MarkRestored(ctx context.Context, id string, restoredAt time.Time) error {
	query := `UPDATE conversation_backups SET restored_at = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, restoredAt)
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
