package accounts

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

const accountColumns = `id, subject_id, email, first_name, last_name, avatar_url,
	 is_admin, onboarded, top_strengths, created_at, updated_at, deleted_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	strengths, err := json.Marshal(nonNil(account.TopStrengths))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	now := time.Now().UTC()
	query :=
		`INSERT INTO accounts (id, subject_id, email, first_name, last_name, avatar_url,
		                       is_admin, onboarded, top_strengths, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 RETURNING created_at, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		account.ID, account.SubjectID, account.Email, account.FirstName, account.LastName,
		account.AvatarURL, account.IsAdmin, account.Onboarded, strengths, now,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return account, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		 FROM accounts
		 WHERE id = $1 AND deleted_at IS NULL
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) GetBySubject(ctx context.Context, subjectID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		 FROM accounts
		 WHERE subject_id = $1 AND deleted_at IS NULL
		 `
	return r.getOne(ctx, query, subjectID)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		 FROM accounts
		 WHERE lower(email) = lower($1) AND deleted_at IS NULL
		 `
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) Update(ctx context.Context, account *models.Account) (*models.Account, error) {
	strengths, err := json.Marshal(nonNil(account.TopStrengths))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	query :=
		`UPDATE accounts
		 SET subject_id = $2, email = $3, first_name = $4, last_name = $5,
		     avatar_url = $6, is_admin = $7, onboarded = $8, top_strengths = $9,
		     updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		account.ID, account.SubjectID, account.Email, account.FirstName, account.LastName,
		account.AvatarURL, account.IsAdmin, account.Onboarded, strengths,
	).Scan(&account.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return account, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	query :=
		`UPDATE accounts
		 SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL
		 `

	result, err := r.db.ExecContext(ctx, query, id)
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

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	account := &models.Account{}
	var strengths []byte

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID, &account.SubjectID, &account.Email, &account.FirstName,
		&account.LastName, &account.AvatarURL, &account.IsAdmin, &account.Onboarded,
		&strengths, &account.CreatedAt, &account.UpdatedAt, &account.DeletedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	if err := json.Unmarshal(strengths, &account.TopStrengths); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return account, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
