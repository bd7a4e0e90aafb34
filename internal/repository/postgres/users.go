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

// UserRepository handles persistence for user profiles. The back-reference
// lists are derived from events, event_attendees and notifications.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, username, name, phone, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Name, u.Phone, u.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return model.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.EventsCreated, u.EventsAttending, u.Notifications = []string{}, []string{}, []string{}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx,
		`SELECT id, username, name, phone, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Name, &u.Phone, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if u.EventsCreated, err = collectIDs(ctx, r.db,
		`SELECT id FROM events WHERE creator_id = $1 ORDER BY created_at ASC`, id); err != nil {
		return nil, fmt.Errorf("load events created: %w", err)
	}
	if u.EventsAttending, err = collectIDs(ctx, r.db,
		`SELECT event_id FROM event_attendees WHERE user_id = $1 ORDER BY position ASC`, id); err != nil {
		return nil, fmt.Errorf("load events attending: %w", err)
	}
	if u.Notifications, err = collectIDs(ctx, r.db,
		`SELECT id FROM notifications WHERE user_id = $1 ORDER BY created_at ASC`, id); err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	return &u, nil
}
