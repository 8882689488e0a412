// Package repomanager vends repositories bound either to the connection pool
// or to an in-flight transaction. Services that need multi-repository
// atomicity (the identity merge) obtain transactional instances through
// WithinTx.
package repomanager

import (
	"context"

	"github.com/msavelyev-dev/teamcoach/internal/dbx"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/accounts"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/backups"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/conversations"
	"github.com/msavelyev-dev/teamcoach/internal/repositories/teammembers"
)

type RepositoryManager interface {
	// RunMigrations brings the schema up to date.
	RunMigrations(ctx context.Context) error

	// WithinTx runs fn inside a transaction; pass the tx handle to the
	// repository accessors to get transactional instances. Commit on nil
	// return, rollback otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error

	// Accessors return a repository bound to db, or to the pool when db is nil.
	Accounts(db dbx.DBTX) accounts.Repository
	TeamMembers(db dbx.DBTX) teammembers.Repository
	Conversations(db dbx.DBTX) conversations.Repository
	Backups(db dbx.DBTX) backups.Repository

	Close() error
}
