package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stemsi/hiring-backend/internal/proctor"
)

const uniqueViolation = "23505"

// classify maps driver errors onto the proctor taxonomy. Anything that is
// not a recognised condition is a transport failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return proctor.ErrNotFound
	}
	if isUniqueViolation(err) {
		return proctor.ErrConflict
	}
	return fmt.Errorf("%w: %w", proctor.ErrTransport, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
