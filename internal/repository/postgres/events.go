package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elderlink/elderlink/internal/model"
)

const eventColumns = `id, title, date, location, description, num_attendees, creator_id, created_at`

// EventRepository handles persistence for events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Date, &e.Location, &e.Description, &e.Capacity, &e.CreatorID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Attendees = []string{}
	return &e, nil
}

func loadAttendees(ctx context.Context, q querier, e *model.Event) error {
	ids, err := collectIDs(ctx, q,
		`SELECT user_id FROM event_attendees WHERE event_id = $1 ORDER BY position ASC`, e.ID)
	if err != nil {
		return fmt.Errorf("load attendees: %w", err)
	}
	e.Attendees = ids
	return nil
}

// getEvent reads an event with its attendees. With lock set the row stays
// locked until the surrounding transaction ends.
func getEvent(ctx context.Context, q querier, id string, lock bool) (*model.Event, error) {
	sql := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	e, err := scanEvent(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFound("event", id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if err := loadAttendees(ctx, q, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new event with a generated UUID.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := userExists(ctx, tx, e.CreatorID); err != nil {
			return err
		}
		e.ID = uuid.New().String()
		e.CreatedAt = time.Now().UTC()
		e.Attendees = []string{}
		_, err := tx.Exec(ctx,
			`INSERT INTO events (`+eventColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.Title, e.Date, e.Location, e.Description, e.Capacity, e.CreatorID, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
}

// GetByID returns a single event or model.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return getEvent(ctx, r.db, id, false)
}

// List returns all events ordered by date ascending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	index := make(map[string]int)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		index[e.ID] = len(events)
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	att, err := r.db.Query(ctx, `SELECT event_id, user_id FROM event_attendees ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer att.Close()
	for att.Next() {
		var eventID, userID string
		if err := att.Scan(&eventID, &userID); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		if i, ok := index[eventID]; ok {
			events[i].Attendees = append(events[i].Attendees, userID)
		}
	}
	return events, att.Err()
}

// Update locks the event row, applies mutate and writes the editable fields back.
func (r *EventRepository) Update(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error) {
	var out *model.Event
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		e, err := getEvent(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := mutate(e); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`UPDATE events
			 SET title = $2, date = $3, location = $4, description = $5, num_attendees = $6
			 WHERE id = $1`,
			id, e.Title, e.Date, e.Location, e.Description, e.Capacity,
		)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		out = e
		return nil
	})
	return out, err
}

// Delete locks the event row and deletes it. The attendee rows go with it
// (ON DELETE CASCADE), which clears the event from every attendee's
// eventsAttending and from the creator's eventsCreated in one statement.
func (r *EventRepository) Delete(ctx context.Context, id string, check func(*model.Event) error) (*model.Event, error) {
	var out *model.Event
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		e, err := getEvent(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := check(e); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		out = e
		return nil
	})
	return out, err
}
