// Package model defines the core domain types for the ElderLink event platform.
package model

import (
	"slices"
	"time"
)

// Event is a scheduled community gathering with a bounded attendee capacity.
//
// Capacity counts the creator, so at most Capacity-1 other users can attend.
// The creator is never a member of Attendees.
type Event struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Date        time.Time `json:"date" bson:"date"`
	Location    string    `json:"location" bson:"location"`
	Description string    `json:"description" bson:"description"`
	Capacity    int       `json:"numAttendees" bson:"numAttendees"`
	CreatorID   string    `json:"creator" bson:"creator"`
	Attendees   []string  `json:"attendees" bson:"attendees"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// MaxAttendees returns how many non-creator users may join.
func (e *Event) MaxAttendees() int {
	return e.Capacity - 1
}

// Remaining returns the number of free attendee slots.
func (e *Event) Remaining() int {
	if n := e.MaxAttendees() - len(e.Attendees); n > 0 {
		return n
	}
	return 0
}

// IsFull returns true when no attendee slot remains.
func (e *Event) IsFull() bool {
	return len(e.Attendees) >= e.MaxAttendees()
}

// HasAttendee reports whether userID has joined the event.
func (e *Event) HasAttendee(userID string) bool {
	return slices.Contains(e.Attendees, userID)
}

// CheckOwner fails with ErrForbidden unless userID created the event.
func (e *Event) CheckOwner(userID string) error {
	if userID == "" || userID != e.CreatorID {
		return Forbidden("only the event creator may change this event")
	}
	return nil
}

// CheckJoin reports why userID may not join, or nil if it may.
func (e *Event) CheckJoin(userID string) error {
	switch {
	case userID == e.CreatorID:
		return Forbidden("you cannot join your own event")
	case e.HasAttendee(userID):
		return ErrConflict
	case len(e.Attendees)+1 > e.MaxAttendees():
		return ErrCapacityExceeded
	}
	return nil
}

// CheckWithdraw fails with ErrNotAttending unless userID has joined.
func (e *Event) CheckWithdraw(userID string) error {
	if !e.HasAttendee(userID) {
		return ErrNotAttending
	}
	return nil
}

// Clone returns a deep copy so callers never share the attendee slice.
func (e *Event) Clone() *Event {
	c := *e
	c.Attendees = slices.Clone(e.Attendees)
	if c.Attendees == nil {
		c.Attendees = []string{}
	}
	return &c
}

// User holds the mirrored back-references to events and notifications.
type User struct {
	ID              string    `json:"id" bson:"_id"`
	Username        string    `json:"username" bson:"username"`
	Name            string    `json:"name" bson:"name"`
	Phone           string    `json:"phone" bson:"phone"`
	EventsCreated   []string  `json:"eventsCreated" bson:"eventsCreated"`
	EventsAttending []string  `json:"eventsAttending" bson:"eventsAttending"`
	Notifications   []string  `json:"notifications" bson:"notifications"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	c.EventsCreated = cloneIDs(u.EventsCreated)
	c.EventsAttending = cloneIDs(u.EventsAttending)
	c.Notifications = cloneIDs(u.Notifications)
	return &c
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clone(ids)
}

// NotificationKind tells the recipient what happened to the event.
type NotificationKind string

const (
	KindAmended NotificationKind = "Amended"
	KindDeleted NotificationKind = "Deleted"
)

// Notification is a per-user message produced by the fan-out.
// EventID may dangle once the event is deleted.
type Notification struct {
	ID          string           `json:"id" bson:"_id"`
	RecipientID string           `json:"recipient" bson:"recipient"`
	EventID     string           `json:"event" bson:"event"`
	Message     string           `json:"message" bson:"message"`
	Kind        NotificationKind `json:"kind" bson:"kind"`
	CreatedAt   time.Time        `json:"createdAt" bson:"createdAt"`
	Read        bool             `json:"read" bson:"read"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Capacity    int       `json:"numAttendees"`
}

// EventPatch carries the optional fields of an edit. Nil fields keep their value.
type EventPatch struct {
	Title       *string    `json:"title,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Description *string    `json:"description,omitempty"`
	Capacity    *int       `json:"numAttendees,omitempty"`
}

// AttendanceRequest is the payload for joining or withdrawing.
type AttendanceRequest struct {
	UserID string `json:"userId"`
}

// CreateUserRequest is the payload for registering a user profile.
type CreateUserRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
	Event   *Event `json:"event,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
