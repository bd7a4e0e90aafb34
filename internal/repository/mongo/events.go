package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/elderlink/elderlink/internal/model"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	c *collections
}

func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	if _, err := r.c.getUser(ctx, e.CreatorID); err != nil {
		return err
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	if _, err := r.c.events.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	err := r.c.updateUser(ctx, e.CreatorID, bson.M{"$addToSet": bson.M{"eventsCreated": e.ID}})
	if err != nil {
		if _, delErr := r.c.events.DeleteOne(ctx, bson.M{"_id": e.ID}); delErr != nil {
			r.c.logger.Error("remove orphaned event failed",
				slog.String("event_id", e.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return err
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	return r.c.getEvent(ctx, id)
}

func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "createdAt", Value: 1}})
	cur, err := r.c.events.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	var events []model.Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	for i := range events {
		if events[i].Attendees == nil {
			events[i].Attendees = []string{}
		}
	}
	return events, nil
}

// Update writes the editable fields back only while the stored attendee
// count still fits the new capacity, so a join racing a capacity cut
// cannot leave the event overfilled.
func (r *EventRepository) Update(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error) {
	e, err := r.c.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(e); err != nil {
		return nil, err
	}
	filter := bson.M{
		"_id": id,
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$attendees", bson.A{}}}},
			e.Capacity - 1,
		}},
	}
	update := bson.M{"$set": bson.M{
		"title":        e.Title,
		"date":         e.Date,
		"location":     e.Location,
		"description":  e.Description,
		"numAttendees": e.Capacity,
	}}
	var updated model.Event
	err = r.c.events.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if _, getErr := r.c.getEvent(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, model.Invalid("numAttendees", "is below the current attendee count")
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	if updated.Attendees == nil {
		updated.Attendees = []string{}
	}
	return &updated, nil
}

// Delete removes the event document and then clears its id from the
// creator and from every attendee. The attendee list used is the one
// returned by the delete itself, so late joiners are covered.
func (r *EventRepository) Delete(ctx context.Context, id string, check func(*model.Event) error) (*model.Event, error) {
	e, err := r.c.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := check(e); err != nil {
		return nil, err
	}
	var deleted model.Event
	if err := r.c.events.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.NotFound("event", id)
		}
		return nil, fmt.Errorf("delete event: %w", err)
	}
	if deleted.Attendees == nil {
		deleted.Attendees = []string{}
	}

	if _, err := r.c.users.UpdateOne(ctx, bson.M{"_id": deleted.CreatorID},
		bson.M{"$pull": bson.M{"eventsCreated": id}}); err != nil {
		return nil, fmt.Errorf("unlink creator: %w", err)
	}
	if len(deleted.Attendees) > 0 {
		if _, err := r.c.users.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": deleted.Attendees}},
			bson.M{"$pull": bson.M{"eventsAttending": id}}); err != nil {
			return nil, fmt.Errorf("unlink attendees: %w", err)
		}
	}
	return &deleted, nil
}
