package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elderlink/elderlink/internal/model"
)

// AttendanceRepository handles joins and withdrawals.
type AttendanceRepository struct {
	db *pgxpool.Pool
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Join adds userID to the event inside a transaction that holds the event
// row lock, so the capacity check and the insert cannot interleave with
// another join on the same event.
func (r *AttendanceRepository) Join(ctx context.Context, eventID, userID string) (*model.Event, error) {
	var out *model.Event
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		e, err := getEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		if err := e.CheckJoin(userID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO event_attendees (event_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			eventID, userID, time.Now().UTC(),
		)
		if err != nil {
			if pgCode(err) == uniqueViolation {
				return model.ErrConflict
			}
			return fmt.Errorf("insert attendee: %w", err)
		}
		e.Attendees = append(e.Attendees, userID)
		out = e
		return nil
	})
	return out, err
}

// Withdraw removes userID from the event.
func (r *AttendanceRepository) Withdraw(ctx context.Context, eventID, userID string) (*model.Event, error) {
	var out *model.Event
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		e, err := getEvent(ctx, tx, eventID, true)
		if err != nil {
			return err
		}
		if err := e.CheckWithdraw(userID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`DELETE FROM event_attendees WHERE event_id = $1 AND user_id = $2`, eventID, userID)
		if err != nil {
			return fmt.Errorf("delete attendee: %w", err)
		}
		e.Attendees = slices.DeleteFunc(e.Attendees, func(id string) bool { return id == userID })
		out = e
		return nil
	})
	return out, err
}
