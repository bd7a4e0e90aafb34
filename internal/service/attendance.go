package service

import (
	"context"
	"log/slog"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/repository"
)

// AttendanceService mediates join and withdraw against the capacity and
// ownership rules. The rules are enforced atomically by the repository.
type AttendanceService struct {
	attendance repository.AttendanceRepository
	logger     *slog.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(attendance repository.AttendanceRepository, logger *slog.Logger) *AttendanceService {
	return &AttendanceService{attendance: attendance, logger: logger}
}

// Join adds userID to the event's attendees and the event to the user's
// eventsAttending, or neither.
func (s *AttendanceService) Join(ctx context.Context, eventID, userID string) (*model.Event, error) {
	eventID, err := requireID("event id", eventID)
	if err != nil {
		return nil, err
	}
	userID, err = requireID("userId", userID)
	if err != nil {
		return nil, err
	}

	event, err := s.attendance.Join(ctx, eventID, userID)
	if err != nil {
		return nil, passThrough("join event", err)
	}
	s.logger.Info("user joined event",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
		slog.Int("remaining", event.Remaining()),
	)
	return event, nil
}

// Withdraw removes userID from the event on both sides of the reference.
func (s *AttendanceService) Withdraw(ctx context.Context, eventID, userID string) (*model.Event, error) {
	eventID, err := requireID("event id", eventID)
	if err != nil {
		return nil, err
	}
	userID, err = requireID("userId", userID)
	if err != nil {
		return nil, err
	}

	event, err := s.attendance.Withdraw(ctx, eventID, userID)
	if err != nil {
		return nil, passThrough("withdraw from event", err)
	}
	s.logger.Info("user withdrew from event",
		slog.String("event_id", eventID),
		slog.String("user_id", userID),
	)
	return event, nil
}
