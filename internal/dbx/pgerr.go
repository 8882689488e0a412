package dbx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// unique_violation, https://www.postgresql.org/docs/current/errcodes-appendix.html
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
