package teammembers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

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

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.TeamMember, error) {
	query :=
		`SELECT id, account_id, name, strengths, created_at, updated_at
		 FROM team_members
		 WHERE account_id = $1
		 ORDER BY name
		 `

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var members []*models.TeamMember
	for rows.Next() {
		m := &models.TeamMember{}
		var strengths []byte
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Name, &strengths, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		if err := json.Unmarshal(strengths, &m.Strengths); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return members, nil
}

func (r *PostgresRepository) Create(ctx context.Context, member *models.TeamMember) (*models.TeamMember, error) {
	strengths, err := json.Marshal(member.Strengths)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if member.Strengths == nil {
		strengths = []byte(`[]`)
	}

	query :=
		`INSERT INTO team_members (id, account_id, name, strengths)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		member.ID, member.AccountID, member.Name, strengths,
	).Scan(&member.CreatedAt, &member.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateName
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return member, nil
}

func (r *PostgresRepository) Update(ctx context.Context, member *models.TeamMember) (*models.TeamMember, error) {
	strengths, err := json.Marshal(member.Strengths)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if member.Strengths == nil {
		strengths = []byte(`[]`)
	}

	query :=
		`UPDATE team_members
		 SET name = $3, strengths = $4, updated_at = now()
		 WHERE id = $1 AND account_id = $2
		 RETURNING updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		member.ID, member.AccountID, member.Name, strengths,
	).Scan(&member.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateName
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	return member, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, accountID string) error {
	query := `DELETE FROM team_members WHERE id = $1 AND account_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, accountID)
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

func (r *PostgresRepository) RepointOwner(ctx context.Context, fromAccountID, toAccountID string) (int64, error) {
	// Same name under what is about to become one owner is the same person
	// twice; keep the survivor's copy.
	dropQuery :=
		`DELETE FROM team_members tm
		 WHERE tm.account_id = $1
		   AND EXISTS (
		       SELECT 1 FROM team_members s
		       WHERE s.account_id = $2 AND s.name = tm.name
		   )
		 `
	if _, err := r.db.ExecContext(ctx, dropQuery, fromAccountID, toAccountID); err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	moveQuery :=
		`UPDATE team_members
		 SET account_id = $2, updated_at = now()
		 WHERE account_id = $1
		 `
	result, err := r.db.ExecContext(ctx, moveQuery, fromAccountID, toAccountID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return moved, nil
}
