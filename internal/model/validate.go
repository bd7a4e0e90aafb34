package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinCapacity       = 1
	MaxCapacity       = 10
	MaxTitleLen       = 100
	MaxLocationLen    = 200
	MaxDescriptionLen = 2000
)

// Window is the daily operating window events must start in, as
// [OpenHour, CloseHour) in the timestamp's own offset.
type Window struct {
	OpenHour  int
	CloseHour int
}

// DefaultWindow is 08:00 to 20:00.
var DefaultWindow = Window{OpenHour: 8, CloseHour: 20}

// Contains reports whether t starts inside the window.
func (w Window) Contains(t time.Time) bool {
	h := t.Hour()
	return h >= w.OpenHour && h < w.CloseHour
}

// Validate checks the window bounds themselves.
func (w Window) Validate() error {
	if w.OpenHour < 0 || w.CloseHour > 24 || w.OpenHour >= w.CloseHour {
		return fmt.Errorf("invalid operating window %d-%d", w.OpenHour, w.CloseHour)
	}
	return nil
}

// Rules bundles the clock and window the event constraints are checked against.
type Rules struct {
	Window Window
	Now    func() time.Time
}

func (r Rules) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r Rules) checkDate(d time.Time) error {
	if d.IsZero() {
		return Invalid("date", "is required")
	}
	if d.Before(r.now()) {
		return Invalid("date", "must not be in the past")
	}
	if !r.Window.Contains(d) {
		return Invalid("date", fmt.Sprintf("must start between %02d:00 and %02d:00",
			r.Window.OpenHour, r.Window.CloseHour))
	}
	return nil
}

func checkText(field, v string, min, max int) error {
	n := utf8.RuneCountInString(v)
	if n < min {
		return Invalid(field, "is required")
	}
	if n > max {
		return Invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func checkCapacity(c int) error {
	if c < MinCapacity || c > MaxCapacity {
		return Invalid("numAttendees", fmt.Sprintf("must be between %d and %d", MinCapacity, MaxCapacity))
	}
	return nil
}

// NewEvent validates req and returns the event it describes, without id or timestamps.
func (r Rules) NewEvent(creatorID string, req CreateEventRequest) (*Event, error) {
	e := &Event{
		Title:       strings.TrimSpace(req.Title),
		Date:        req.Date,
		Location:    strings.TrimSpace(req.Location),
		Description: strings.TrimSpace(req.Description),
		Capacity:    req.Capacity,
		CreatorID:   creatorID,
		Attendees:   []string{},
	}
	if err := checkText("title", e.Title, 1, MaxTitleLen); err != nil {
		return nil, err
	}
	if err := checkText("location", e.Location, 1, MaxLocationLen); err != nil {
		return nil, err
	}
	if err := checkText("description", e.Description, 0, MaxDescriptionLen); err != nil {
		return nil, err
	}
	if err := checkCapacity(e.Capacity); err != nil {
		return nil, err
	}
	if err := r.checkDate(e.Date); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply re-validates e with p applied and mutates e only if every field passes.
// The date window is only checked when the date changes, since stored
// timestamps lose the offset they were submitted in.
func (r Rules) Apply(e *Event, p EventPatch) error {
	next := *e
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
		if err := checkText("title", next.Title, 1, MaxTitleLen); err != nil {
			return err
		}
	}
	if p.Location != nil {
		next.Location = strings.TrimSpace(*p.Location)
		if err := checkText("location", next.Location, 1, MaxLocationLen); err != nil {
			return err
		}
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
		if err := checkText("description", next.Description, 0, MaxDescriptionLen); err != nil {
			return err
		}
	}
	if p.Capacity != nil {
		next.Capacity = *p.Capacity
		if err := checkCapacity(next.Capacity); err != nil {
			return err
		}
		if len(next.Attendees) > next.MaxAttendees() {
			return Invalid("numAttendees", fmt.Sprintf("must be at least %d for the current attendees", len(next.Attendees)+1))
		}
	}
	if p.Date != nil {
		next.Date = *p.Date
		if err := r.checkDate(next.Date); err != nil {
			return err
		}
	}
	*e = next
	return nil
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Title == nil && p.Date == nil && p.Location == nil && p.Description == nil && p.Capacity == nil
}

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,30}$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// NewUser validates req and returns the profile it describes.
func NewUser(req CreateUserRequest) (*User, error) {
	u := &User{
		Username:        strings.TrimSpace(req.Username),
		Name:            strings.TrimSpace(req.Name),
		Phone:           strings.ReplaceAll(strings.TrimSpace(req.Phone), " ", ""),
		EventsCreated:   []string{},
		EventsAttending: []string{},
		Notifications:   []string{},
	}
	if !usernamePattern.MatchString(u.Username) {
		return nil, Invalid("username", "must be 3-30 letters, digits, '.', '_' or '-'")
	}
	if err := checkText("name", u.Name, 1, 100); err != nil {
		return nil, err
	}
	if !phonePattern.MatchString(u.Phone) {
		return nil, Invalid("phone", "must be 7-15 digits, optionally prefixed with '+'")
	}
	return u, nil
}
