package model

import (
	"errors"
	"testing"
)

func TestCheckJoin(t *testing.T) {
	e := &Event{CreatorID: "creator", Capacity: 3, Attendees: []string{"a"}}

	tests := []struct {
		name   string
		user   string
		event  *Event
		expect error
	}{
		{"free slot", "b", e, nil},
		{"creator", "creator", e, ErrForbidden},
		{"already attending", "a", e, ErrConflict},
		{"full", "c", &Event{CreatorID: "creator", Capacity: 3, Attendees: []string{"a", "b"}}, ErrCapacityExceeded},
		{"capacity one admits nobody", "a", &Event{CreatorID: "creator", Capacity: 1}, ErrCapacityExceeded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.event.CheckJoin(tc.user)
			if tc.expect == nil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.expect) {
				t.Fatalf("expected %v, got %v", tc.expect, err)
			}
		})
	}
}

func TestCheckJoinCreatorBeforeDuplicate(t *testing.T) {
	// A full event still reports the self-join first.
	e := &Event{CreatorID: "c", Capacity: 2, Attendees: []string{"x"}}
	if err := e.CheckJoin("c"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRemainingAndFull(t *testing.T) {
	e := &Event{Capacity: 4, Attendees: []string{"a", "b"}}
	if got := e.Remaining(); got != 1 {
		t.Fatalf("Remaining = %d, want 1", got)
	}
	if e.IsFull() {
		t.Fatal("event with a free slot reported full")
	}
	e.Attendees = append(e.Attendees, "c")
	if !e.IsFull() || e.Remaining() != 0 {
		t.Fatalf("expected full event, remaining %d", e.Remaining())
	}
}

func TestCheckWithdraw(t *testing.T) {
	e := &Event{Attendees: []string{"a"}}
	if err := e.CheckWithdraw("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.CheckWithdraw("b"); !errors.Is(err, ErrNotAttending) {
		t.Fatalf("expected ErrNotAttending, got %v", err)
	}
}

func TestCloneDoesNotShareAttendees(t *testing.T) {
	e := &Event{Attendees: []string{"a"}}
	c := e.Clone()
	c.Attendees[0] = "z"
	if e.Attendees[0] != "a" {
		t.Fatal("clone shares the attendee slice")
	}
	if (&Event{}).Clone().Attendees == nil {
		t.Fatal("clone of an empty event should have a non-nil attendee slice")
	}
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	err := Invalid("title", "is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationError should match ErrValidation")
	}
	if !IsDomain(err) || !IsDomain(NotFound("event", "x")) {
		t.Fatal("domain errors not recognised")
	}
	if IsDomain(errors.New("connection reset")) {
		t.Fatal("infrastructure error classified as domain")
	}
}
