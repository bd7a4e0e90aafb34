// Package postgres implements the repositories with pgx directly (no ORM).
//
// Capacity is protected with pessimistic locking: every join, edit and
// delete first takes SELECT ... FOR UPDATE on the event row, so two
// concurrent joins for the last free slot are serialised and the second
// one sees the first one's attendee.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/repository"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewSet returns repositories sharing pool. Close closes the pool.
func NewSet(pool *pgxpool.Pool) repository.Set {
	return repository.Set{
		Events:        NewEventRepository(pool),
		Attendance:    NewAttendanceRepository(pool),
		Users:         NewUserRepository(pool),
		Notifications: NewNotificationRepository(pool),
		Close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func userExists(ctx context.Context, q querier, id string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NotFound("user", id)
		}
		return fmt.Errorf("check user: %w", err)
	}
	return nil
}

func collectIDs(ctx context.Context, q querier, sql string, arg string) ([]string, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
