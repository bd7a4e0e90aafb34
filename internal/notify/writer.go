package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/repository"
)

// DefaultConcurrency bounds parallel notification writes per fact.
const DefaultConcurrency = 8

// NotificationWriter persists one notification per attendee of a fact.
// Each attendee is handled independently: a failed write is logged and the
// others still go ahead. Nothing is retried.
type NotificationWriter struct {
	repo        repository.NotificationRepository
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewNotificationWriter constructs a NotificationWriter.
func NewNotificationWriter(repo repository.NotificationRepository, logger *slog.Logger, concurrency int) *NotificationWriter {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &NotificationWriter{
		repo:        repo,
		logger:      logger,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle fans f out to its attendees. It returns an error summarising how
// many writes failed; the failures themselves are logged per attendee.
func (w *NotificationWriter) Handle(ctx context.Context, f Fact) error {
	if len(f.AttendeeIDs) == 0 {
		w.logger.Debug("no attendees to notify",
			slog.String("fact", string(f.Kind)),
			slog.String("event_id", f.EventID),
		)
		return nil
	}

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, userID := range f.AttendeeIDs {
		userID := userID
		g.Go(func() error {
			if err := w.deliver(ctx, f, userID); err != nil {
				failed.Add(1)
				w.logger.Error("notification not delivered",
					slog.String("fact", string(f.Kind)),
					slog.String("event_id", f.EventID),
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
			// never abort the siblings
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d notifications failed", n, len(f.AttendeeIDs))
	}
	w.logger.Debug("attendees notified",
		slog.String("fact", string(f.Kind)),
		slog.String("event_id", f.EventID),
		slog.Int("count", len(f.AttendeeIDs)),
	)
	return nil
}

func (w *NotificationWriter) deliver(ctx context.Context, f Fact, userID string) error {
	n := &model.Notification{
		RecipientID: userID,
		EventID:     f.EventID,
		Message:     f.Message(),
		Kind:        f.NotificationKind(),
		CreatedAt:   w.now(),
	}
	return w.repo.Create(ctx, n)
}
