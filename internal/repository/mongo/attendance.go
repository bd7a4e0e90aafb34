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
)

// joinAttempts bounds re-diagnosis when the conditional push misses but the
// reloaded event says the join is allowed (its state moved in between).
const joinAttempts = 3

// AttendanceRepository handles joins and withdrawals.
type AttendanceRepository struct {
	c *collections
}

// joinFilter matches the event only if userID may still join it.
func joinFilter(eventID, userID string) bson.M {
	return bson.M{
		"_id":       eventID,
		"creator":   bson.M{"$ne": userID},
		"attendees": bson.M{"$ne": userID},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$attendees", bson.A{}}}},
			bson.M{"$subtract": bson.A{"$numAttendees", 1}},
		}},
	}
}

func (r *AttendanceRepository) Join(ctx context.Context, eventID, userID string) (*model.Event, error) {
	if _, err := r.c.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if _, err := r.c.getUser(ctx, userID); err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	for attempt := 1; ; attempt++ {
		var e model.Event
		err := r.c.events.FindOneAndUpdate(ctx, joinFilter(eventID, userID),
			bson.M{"$push": bson.M{"attendees": userID}}, opts).Decode(&e)
		if err == nil {
			if err := r.c.updateUser(ctx, userID, bson.M{"$addToSet": bson.M{"eventsAttending": eventID}}); err != nil {
				r.c.compensate(ctx, eventID, bson.M{"$pull": bson.M{"attendees": userID}}, err)
				return nil, err
			}
			if err := r.stillExists(ctx, eventID, userID); err != nil {
				return nil, err
			}
			return &e, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("push attendee: %w", err)
		}

		current, getErr := r.c.getEvent(ctx, eventID)
		if getErr != nil {
			return nil, getErr
		}
		if joinErr := current.CheckJoin(userID); joinErr != nil {
			return nil, joinErr
		}
		if attempt == joinAttempts {
			return nil, fmt.Errorf("join event %s: state kept changing", eventID)
		}
	}
}

func (r *AttendanceRepository) Withdraw(ctx context.Context, eventID, userID string) (*model.Event, error) {
	var e model.Event
	err := r.c.events.FindOneAndUpdate(ctx,
		bson.M{"_id": eventID, "attendees": userID},
		bson.M{"$pull": bson.M{"attendees": userID}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			current, getErr := r.c.getEvent(ctx, eventID)
			if getErr != nil {
				return nil, getErr
			}
			if err := current.CheckWithdraw(userID); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("withdraw from event %s: state changed", eventID)
		}
		return nil, fmt.Errorf("pull attendee: %w", err)
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}

	if _, err := r.c.users.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"eventsAttending": eventID}}); err != nil {
		err = fmt.Errorf("unlink attendee: %w", err)
		r.c.compensate(ctx, eventID, bson.M{"$addToSet": bson.M{"attendees": userID}}, err)
		return nil, err
	}
	return &e, nil
}

// stillExists catches a delete that ran between the attendee push and the
// user-side write: the delete's unlink saw no eventsAttending entry, so the
// join removes its own entry again.
func (r *AttendanceRepository) stillExists(ctx context.Context, eventID, userID string) error {
	n, err := r.c.events.CountDocuments(ctx, bson.M{"_id": eventID})
	if err != nil {
		return fmt.Errorf("recheck event: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.c.users.UpdateOne(ctx, bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"eventsAttending": eventID}}); err != nil {
		r.c.logger.Error("unlink attendee of deleted event failed",
			slog.String("event_id", eventID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return model.NotFound("event", eventID)
}
