package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elderlink/elderlink/internal/model"
)

// NotificationRepository handles persistence for notifications. The
// recipient's list is the set of rows carrying its user_id, so a row and
// its list entry are created and deleted together.
type NotificationRepository struct {
	db *pgxpool.Pool
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	n.ID = uuid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications (id, user_id, event_id, message, kind, created_at, read)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.RecipientID, n.EventID, n.Message, string(n.Kind), n.CreatedAt, n.Read,
	)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return model.NotFound("user", n.RecipientID)
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	if err := userExists(ctx, r.db, userID); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, event_id, message, kind, created_at, read
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	notifications, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Notification, error) {
		var n model.Notification
		var kind string
		err := row.Scan(&n.ID, &n.RecipientID, &n.EventID, &n.Message, &kind, &n.CreatedAt, &n.Read)
		n.Kind = model.NotificationKind(kind)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return notifications, nil
}

// missing tells an unknown user apart from an unknown notification after a
// statement matched no row.
func (r *NotificationRepository) missing(ctx context.Context, userID, notificationID string) error {
	if err := userExists(ctx, r.db, userID); err != nil {
		return err
	}
	return model.NotFound("notification", notificationID)
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missing(ctx, userID, notificationID)
	}
	return nil
}

func (r *NotificationRepository) Remove(ctx context.Context, userID, notificationID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missing(ctx, userID, notificationID)
	}
	return nil
}
