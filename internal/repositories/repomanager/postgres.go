package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/msavelyev-dev/teamcoach/internal/dbx"
	"github.com/msavelyev-dev/teamcoach/internal/migrations"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/accounts"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/backups"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/conversations"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/teammembers"
)

type PostgresRepositoryManager struct {
	db *sql.DB
}

func NewPostgresRepositoryManager(dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &PostgresRepositoryManager{db: db}, nil
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (m *PostgresRepositoryManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, m.db, nil, fn)
}

// handle resolves the accessor argument: nil means pool-bound.
func (m *PostgresRepositoryManager) handle(db dbx.DBTX) dbx.DBTX {
	if db == nil {
		return m.db
	}
	return db
}

func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(m.handle(db))
}

func (m *PostgresRepositoryManager) TeamMembers(db dbx.DBTX) teammembers.Repository {
	return teammembers.NewPostgresRepository(m.handle(db))
}

func (m *PostgresRepositoryManager) Conversations(db dbx.DBTX) conversations.Repository {
	return conversations.NewPostgresRepository(m.handle(db))
}

func (m *PostgresRepositoryManager) Backups(db dbx.DBTX) backups.Repository {
	return backups.NewPostgresRepository(m.handle(db))
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}
