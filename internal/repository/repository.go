// Package repository declares the persistence contracts of the event core.
//
// Every backend (postgres, mongo, memory) keeps the two mirrored
// back-references consistent inside a single operation: an event's
// attendee list and each attendee's eventsAttending list, and a
// recipient's notification list and its notification documents.
// Domain failures are reported with the sentinels in package model.
package repository

import (
	"context"

	"github.com/elderlink/elderlink/internal/model"
)

// EventRepository handles persistence for events.
type EventRepository interface {
	// Create assigns an id and creation time, stores e and appends it to
	// the creator's eventsCreated. Fails with model.ErrNotFound for an
	// unknown creator.
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	// List returns all events ordered by date ascending.
	List(ctx context.Context) ([]model.Event, error)
	// Update loads the event, lets mutate check and change it, and writes it
	// back without racing concurrent joins.
	Update(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error)
	// Delete removes the event once check passes, along with its id in the
	// creator's eventsCreated and every attendee's eventsAttending. It
	// returns the event as it was at deletion time.
	Delete(ctx context.Context, id string, check func(*model.Event) error) (*model.Event, error)
}

// AttendanceRepository applies join and withdraw as single invariant-enforcing
// operations: the capacity check and the attendee append happen atomically,
// and the user's eventsAttending changes with the event or not at all.
type AttendanceRepository interface {
	Join(ctx context.Context, eventID, userID string) (*model.Event, error)
	Withdraw(ctx context.Context, eventID, userID string) (*model.Event, error)
}

// UserRepository handles persistence for user profiles.
type UserRepository interface {
	// Create fails with model.ErrConflict when username or phone is taken.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// NotificationRepository handles notification documents together with the
// recipient's notification list.
type NotificationRepository interface {
	// Create assigns an id, stores n and appends it to the recipient's list.
	Create(ctx context.Context, n *model.Notification) error
	// ListByUser returns the user's notifications newest first. Fails with
	// model.ErrNotFound for an unknown user.
	ListByUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	// Remove deletes the id from the user's list and the document. A listed
	// id whose document is already gone is removed without error.
	Remove(ctx context.Context, userID, notificationID string) error
}

// Set bundles one backend's repositories.
type Set struct {
	Events        EventRepository
	Attendance    AttendanceRepository
	Users         UserRepository
	Notifications NotificationRepository
	// Close releases the backend's connections.
	Close func(ctx context.Context) error
}
