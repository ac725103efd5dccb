package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is what the memory store returns for an id or order number
// that is already taken. Postgres reports the same as a unique violation.
var ErrDuplicate = errors.New("duplicate key")

const (
	sqlstateUniqueViolation = "23505"
	sqlstateInvalidText     = "22P02"
)

// IsDuplicate reports a uniqueness conflict from either store.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate) || sqlstate(err) == sqlstateUniqueViolation
}

// IsNotFound reports an empty single-row result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isInvalidText reports malformed input such as a non-uuid id.
func isInvalidText(err error) bool {
	return sqlstate(err) == sqlstateInvalidText
}

func sqlstate(err error) string {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return pgerr.Code
	}
	return ""
}
