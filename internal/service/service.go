// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/notify"
	"github.com/elderlink/elderlink/internal/repository"
)

// Emitter accepts facts without blocking the caller.
type Emitter interface {
	Emit(f notify.Fact) bool
}

// passThrough keeps domain errors unwrapped-comparable and adds context to
// unexpected store failures.
func passThrough(op string, err error) error {
	if model.IsDomain(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", model.Invalid(field, "is required")
	}
	return id, nil
}

// EventService orchestrates event creation, edits and deletion. Edits and
// deletes emit a fact for the notification fan-out and return without
// waiting for it.
type EventService struct {
	events  repository.EventRepository
	emitter Emitter
	rules   model.Rules
	logger  *slog.Logger
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(
	events repository.EventRepository,
	emitter Emitter,
	rules model.Rules,
	logger *slog.Logger,
) *EventService {
	return &EventService{events: events, emitter: emitter, rules: rules, logger: logger}
}

func (s *EventService) now() time.Time {
	if s.rules.Now != nil {
		return s.rules.Now()
	}
	return time.Now()
}

// CreateEvent validates the request and stores the event for creatorID.
func (s *EventService) CreateEvent(ctx context.Context, creatorID string, req model.CreateEventRequest) (*model.Event, error) {
	creatorID, err := requireID("creator", creatorID)
	if err != nil {
		return nil, err
	}
	event, err := s.rules.NewEvent(creatorID, req)
	if err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, passThrough("create event", err)
	}
	s.logger.Info("event created",
		slog.String("event_id", event.ID),
		slog.String("creator_id", creatorID),
	)
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		return nil, passThrough("list events", err)
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	id, err := requireID("event id", id)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, passThrough("get event", err)
	}
	return event, nil
}

// EditEvent applies patch if ownerID created the event, then emits
// EventEdited for the current attendees. The edit succeeds regardless of
// what happens to the notifications.
func (s *EventService) EditEvent(ctx context.Context, eventID, ownerID string, patch model.EventPatch) (*model.Event, error) {
	eventID, err := requireID("event id", eventID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, model.Invalid("body", "no fields to update")
	}

	event, err := s.events.Update(ctx, eventID, func(e *model.Event) error {
		if err := e.CheckOwner(ownerID); err != nil {
			return err
		}
		return s.rules.Apply(e, patch)
	})
	if err != nil {
		return nil, passThrough("edit event", err)
	}

	s.emit(notify.EventEdited, event)
	s.logger.Info("event edited",
		slog.String("event_id", event.ID),
		slog.Int("attendees", len(event.Attendees)),
	)
	return event, nil
}

// DeleteEvent removes the event if ownerID created it, then emits
// EventDeleted for the attendees it had.
func (s *EventService) DeleteEvent(ctx context.Context, eventID, ownerID string) error {
	eventID, err := requireID("event id", eventID)
	if err != nil {
		return err
	}

	event, err := s.events.Delete(ctx, eventID, func(e *model.Event) error {
		return e.CheckOwner(ownerID)
	})
	if err != nil {
		return passThrough("delete event", err)
	}

	s.emit(notify.EventDeleted, event)
	s.logger.Info("event deleted",
		slog.String("event_id", event.ID),
		slog.Int("attendees", len(event.Attendees)),
	)
	return nil
}

func (s *EventService) emit(kind notify.FactKind, e *model.Event) {
	attendees := make([]string, len(e.Attendees))
	copy(attendees, e.Attendees)
	s.emitter.Emit(notify.Fact{
		Kind:        kind,
		EventID:     e.ID,
		EventTitle:  e.Title,
		AttendeeIDs: attendees,
		OccurredAt:  s.now().UTC(),
	})
}
