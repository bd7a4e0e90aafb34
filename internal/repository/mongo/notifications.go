package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/elderlink/elderlink/internal/model"
)

// NotificationRepository handles notification documents and the recipient's
// notifications array.
type NotificationRepository struct {
	c *collections
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	n.ID = uuid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := r.c.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	err := r.c.updateUser(ctx, n.RecipientID, bson.M{"$push": bson.M{"notifications": n.ID}})
	if err != nil {
		if _, delErr := r.c.notifications.DeleteOne(ctx, bson.M{"_id": n.ID}); delErr != nil {
			r.c.logger.Error("remove orphaned notification failed",
				slog.String("notification_id", n.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return err
	}
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	u, err := r.c.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(u.Notifications) == 0 {
		return []model.Notification{}, nil
	}
	cur, err := r.c.notifications.Find(ctx,
		bson.M{"_id": bson.M{"$in": u.Notifications}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	notifications := []model.Notification{}
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return notifications, nil
}

func (r *NotificationRepository) listed(ctx context.Context, userID, notificationID string) error {
	u, err := r.c.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !slices.Contains(u.Notifications, notificationID) {
		return model.NotFound("notification", notificationID)
	}
	return nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := r.listed(ctx, userID, notificationID); err != nil {
		return err
	}
	res, err := r.c.notifications.UpdateOne(ctx,
		bson.M{"_id": notificationID, "recipient": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return model.NotFound("notification", notificationID)
	}
	return nil
}

func (r *NotificationRepository) Remove(ctx context.Context, userID, notificationID string) error {
	if err := r.listed(ctx, userID, notificationID); err != nil {
		return err
	}
	if err := r.c.updateUser(ctx, userID, bson.M{"$pull": bson.M{"notifications": notificationID}}); err != nil {
		return err
	}
	res, err := r.c.notifications.DeleteOne(ctx, bson.M{"_id": notificationID})
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if res.DeletedCount == 0 {
		r.c.logger.Warn("notification listed but already deleted",
			slog.String("user_id", userID),
			slog.String("notification_id", notificationID),
		)
	}
	return nil
}
