package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var (
	fixedNow = time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)
	rules    = Rules{Window: DefaultWindow, Now: func() time.Time { return fixedNow }}
)

func validRequest() CreateEventRequest {
	return CreateEventRequest{
		Title:    "Chess afternoon",
		Date:     time.Date(2030, 5, 2, 14, 0, 0, 0, time.UTC),
		Location: "Community hall",
		Capacity: 3,
	}
}

func ptr[T any](v T) *T { return &v }

func TestWindowContains(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{7, false},
		{8, true},
		{19, true},
		{20, false},
	}
	for _, tc := range tests {
		d := time.Date(2030, 1, 1, tc.hour, 59, 0, 0, time.UTC)
		if got := DefaultWindow.Contains(d); got != tc.want {
			t.Errorf("Contains(%02d:59) = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestWindowUsesSubmittedOffset(t *testing.T) {
	// 10:00 at +05:30 is 04:30 UTC; the local hour decides.
	zone := time.FixedZone("IST", 5*3600+1800)
	d := time.Date(2030, 1, 1, 10, 0, 0, 0, zone)
	if !DefaultWindow.Contains(d) {
		t.Fatal("expected local 10:00 to be inside the window")
	}
}

func TestWindowValidate(t *testing.T) {
	for _, w := range []Window{{-1, 20}, {8, 25}, {20, 8}, {9, 9}} {
		if err := w.Validate(); err == nil {
			t.Errorf("window %v accepted", w)
		}
	}
	if err := DefaultWindow.Validate(); err != nil {
		t.Fatalf("default window rejected: %v", err)
	}
}

func TestNewEvent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateEventRequest)
		field  string
	}{
		{"valid", func(*CreateEventRequest) {}, ""},
		{"blank title", func(r *CreateEventRequest) { r.Title = "   " }, "title"},
		{"long title", func(r *CreateEventRequest) { r.Title = strings.Repeat("x", MaxTitleLen+1) }, "title"},
		{"missing location", func(r *CreateEventRequest) { r.Location = "" }, "location"},
		{"zero capacity", func(r *CreateEventRequest) { r.Capacity = 0 }, "numAttendees"},
		{"capacity above max", func(r *CreateEventRequest) { r.Capacity = MaxCapacity + 1 }, "numAttendees"},
		{"missing date", func(r *CreateEventRequest) { r.Date = time.Time{} }, "date"},
		{"past date", func(r *CreateEventRequest) { r.Date = fixedNow.Add(-time.Hour) }, "date"},
		{"too early", func(r *CreateEventRequest) { r.Date = time.Date(2030, 5, 2, 7, 0, 0, 0, time.UTC) }, "date"},
		{"too late", func(r *CreateEventRequest) { r.Date = time.Date(2030, 5, 2, 20, 0, 0, 0, time.UTC) }, "date"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			e, err := rules.NewEvent("creator", req)

			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if e.CreatorID != "creator" || len(e.Attendees) != 0 || e.Attendees == nil {
					t.Fatalf("unexpected event: %+v", e)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected validation error on %q, got %v", tc.field, err)
			}
		})
	}
}

func TestApplyCapacityBelowAttendees(t *testing.T) {
	e, err := rules.NewEvent("creator", validRequest())
	if err != nil {
		t.Fatal(err)
	}
	e.Attendees = []string{"a", "b"}

	if err := rules.Apply(e, EventPatch{Capacity: ptr(2)}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if e.Capacity != 3 {
		t.Fatalf("capacity changed on rejected patch: %d", e.Capacity)
	}
	if err := rules.Apply(e, EventPatch{Capacity: ptr(5)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Capacity != 5 {
		t.Fatalf("capacity = %d, want 5", e.Capacity)
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	e, err := rules.NewEvent("creator", validRequest())
	if err != nil {
		t.Fatal(err)
	}
	patch := EventPatch{Title: ptr("New title"), Location: ptr("")}
	if err := rules.Apply(e, patch); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if e.Title != "Chess afternoon" {
		t.Fatalf("title changed on rejected patch: %q", e.Title)
	}
}

func TestApplySkipsDateChecksWhenDateUnchanged(t *testing.T) {
	e, err := rules.NewEvent("creator", validRequest())
	if err != nil {
		t.Fatal(err)
	}
	later := rules
	later.Now = func() time.Time { return fixedNow.AddDate(1, 0, 0) }

	if err := later.Apply(e, EventPatch{Title: ptr("Renamed")}); err != nil {
		t.Fatalf("title edit of a past event rejected: %v", err)
	}
	if err := later.Apply(e, EventPatch{Date: ptr(e.Date)}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected past date to be rejected, got %v", err)
	}
}

func TestEventPatchEmpty(t *testing.T) {
	if !(EventPatch{}).Empty() {
		t.Fatal("zero patch should be empty")
	}
	if (EventPatch{Description: ptr("")}).Empty() {
		t.Fatal("patch clearing the description is not empty")
	}
}

func TestNewUser(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateUserRequest
		field string
	}{
		{"valid", CreateUserRequest{Username: "rose_m", Name: "Rose", Phone: "+44 7700 900123"}, ""},
		{"short username", CreateUserRequest{Username: "ro", Name: "Rose", Phone: "07700900123"}, "username"},
		{"bad username", CreateUserRequest{Username: "rose m", Name: "Rose", Phone: "07700900123"}, "username"},
		{"missing name", CreateUserRequest{Username: "rose", Phone: "07700900123"}, "name"},
		{"bad phone", CreateUserRequest{Username: "rose", Name: "Rose", Phone: "call me"}, "phone"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u, err := NewUser(tc.req)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if u.Phone != "+447700900123" {
					t.Fatalf("phone not normalised: %q", u.Phone)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected validation error on %q, got %v", tc.field, err)
			}
		})
	}
}
