package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/hray3182/sharedcal/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classify maps a pgx error onto the apperr taxonomy.
func classify(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505", pgErr.Code == "23503":
			return apperr.Constraint(op, err)
		case pgErr.Code == "23514", pgErr.Code == "23502", strings.HasPrefix(pgErr.Code, "22"):
			return apperr.Validation("%s: %s", op, pgErr.Message)
		}
	}
	return apperr.Unavailable(op, err)
}

func classified(err error) bool {
	return apperr.IsValidation(err) || apperr.IsConstraint(err) ||
		apperr.IsUnavailable(err) || apperr.IsNotFound(err)
}
