// Package mongo implements the repositories on MongoDB documents, the
// layout the mirrored references were originally designed around: events
// carry an attendees array, users carry eventsCreated, eventsAttending and
// notifications arrays.
//
// The capacity check and the attendee append are one conditional
// FindOneAndUpdate, so concurrent joins cannot overfill an event. The user
// side is a second single-document write; if it fails the event write is
// compensated and the operation reports failure.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/repository"
)

const (
	eventsCollection        = "events"
	usersCollection         = "users"
	notificationsCollection = "notifications"
)

type collections struct {
	events        *mongo.Collection
	users         *mongo.Collection
	notifications *mongo.Collection
	logger        *slog.Logger
}

// NewSet returns repositories on db. Close disconnects client.
func NewSet(client *mongo.Client, db *mongo.Database, logger *slog.Logger) repository.Set {
	c := &collections{
		events:        db.Collection(eventsCollection),
		users:         db.Collection(usersCollection),
		notifications: db.Collection(notificationsCollection),
		logger:        logger,
	}
	return repository.Set{
		Events:        &EventRepository{c},
		Attendance:    &AttendanceRepository{c},
		Users:         &UserRepository{c},
		Notifications: &NotificationRepository{c},
		Close:         client.Disconnect,
	}
}

// EnsureIndexes creates the unique user indexes and the notification lookup index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	_, err = db.Collection(notificationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create notification index: %w", err)
	}
	_, err = db.Collection(eventsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create event index: %w", err)
	}
	return nil
}

func (c *collections) getEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := c.events.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NotFound("event", id)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	return &e, nil
}

func (c *collections) getUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := c.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u.Clone(), nil
}

// updateUser applies update to one user and fails with model.ErrNotFound if
// the user document is gone.
func (c *collections) updateUser(ctx context.Context, id string, update bson.M) error {
	res, err := c.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.NotFound("user", id)
	}
	return nil
}

// compensate undoes an event-side write after the user-side write failed.
// A failed compensation leaves the mirror broken, so it is logged loudly.
func (c *collections) compensate(ctx context.Context, eventID string, undo bson.M, cause error) {
	if _, err := c.events.UpdateOne(ctx, bson.M{"_id": eventID}, undo); err != nil {
		c.logger.Error("compensating event write failed",
			slog.String("event_id", eventID),
			slog.String("cause", cause.Error()),
			slog.String("error", err.Error()),
		)
	}
}
