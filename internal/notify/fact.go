// Package notify turns event mutation facts into per-attendee notifications.
//
// Mutating services hand a Fact to the Dispatcher with a non-blocking Emit
// and return immediately. The Dispatcher delivers each fact to every
// registered Listener on its own goroutine. Delivery is in-memory,
// best-effort and at-most-once: facts queued when the process dies are lost,
// failures are logged and never retried.
package notify

import (
	"fmt"
	"time"

	"github.com/elderlink/elderlink/internal/model"
)

// FactKind names what happened to an event.
type FactKind string

const (
	EventEdited  FactKind = "EventEdited"
	EventDeleted FactKind = "EventDeleted"
)

// Fact is the message passed from the event service to the listeners.
type Fact struct {
	Kind        FactKind  `json:"kind"`
	EventID     string    `json:"eventId"`
	EventTitle  string    `json:"eventTitle"`
	AttendeeIDs []string  `json:"attendeeIds"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// NotificationKind maps the fact to the kind shown to recipients.
func (f Fact) NotificationKind() model.NotificationKind {
	if f.Kind == EventDeleted {
		return model.KindDeleted
	}
	return model.KindAmended
}

// Message renders the fixed body sent to every attendee.
func (f Fact) Message() string {
	if f.Kind == EventDeleted {
		return fmt.Sprintf("The event %q you were attending has been cancelled by its organiser.", f.EventTitle)
	}
	return fmt.Sprintf("The event %q you are attending has been amended. Please check the updated details.", f.EventTitle)
}
