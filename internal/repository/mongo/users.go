package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/elderlink/elderlink/internal/model"
)

// UserRepository handles persistence for user profiles.
type UserRepository struct {
	c *collections
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now().UTC()
	u.EventsCreated, u.EventsAttending, u.Notifications = []string{}, []string{}, []string{}
	if _, err := r.c.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.c.getUser(ctx, id)
}
