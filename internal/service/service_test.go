package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elderlink/elderlink/internal/logger"
	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/notify"
	"github.com/elderlink/elderlink/internal/repository"
	"github.com/elderlink/elderlink/internal/repository/memory"
)

var testNow = time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC)

// env wires the services against the in-memory backend with a live
// dispatcher, the way cmd/main.go does.
type env struct {
	set           repository.Set
	dispatcher    *notify.Dispatcher
	events        *EventService
	attendance    *AttendanceService
	users         *UserService
	notifications *NotificationService
	phones        int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.Discard()
	set, _ := memory.NewSet()

	d := notify.NewDispatcher(log, 64, notify.NewNotificationWriter(set.Notifications, log, 4))
	d.Start(context.Background())
	t.Cleanup(d.Close)

	rules := model.Rules{Window: model.DefaultWindow, Now: func() time.Time { return testNow }}
	return &env{
		set:           set,
		dispatcher:    d,
		events:        NewEventService(set.Events, d, rules, log),
		attendance:    NewAttendanceService(set.Attendance, log),
		users:         NewUserService(set.Users, log),
		notifications: NewNotificationService(set.Notifications),
	}
}

func (e *env) user(t *testing.T, name string) *model.User {
	t.Helper()
	e.phones++
	u, err := e.users.CreateUser(context.Background(), model.CreateUserRequest{
		Username: name,
		Name:     name,
		Phone:    fmt.Sprintf("+1555%07d", e.phones),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (e *env) event(t *testing.T, creatorID string, capacity int) *model.Event {
	t.Helper()
	ev, err := e.events.CreateEvent(context.Background(), creatorID, model.CreateEventRequest{
		Title:    "Garden club",
		Date:     testNow.Add(26 * time.Hour),
		Location: "Allotments",
		Capacity: capacity,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

// assertMirror checks that every attendee lists the event and every user
// listing it is an attendee.
func (e *env) assertMirror(t *testing.T, eventID string, users ...*model.User) {
	t.Helper()
	ctx := context.Background()
	ev, err := e.set.Events.GetByID(ctx, eventID)
	deleted := errors.Is(err, model.ErrNotFound)
	if err != nil && !deleted {
		t.Fatal(err)
	}
	for _, u := range users {
		got, err := e.set.Users.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		listed := slices.Contains(got.EventsAttending, eventID)
		attending := !deleted && ev.HasAttendee(u.ID)
		if listed != attending {
			t.Fatalf("mirror broken for %s: eventsAttending=%v attending=%v", u.Username, listed, attending)
		}
	}
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u0, u1, u2, u3 := e.user(t, "user0"), e.user(t, "user1"), e.user(t, "user2"), e.user(t, "user3")
	e1 := e.event(t, u0.ID, 3)

	steps := []struct {
		name   string
		do     func() (*model.Event, error)
		expect error
		want   []string
	}{
		{"u1 joins", func() (*model.Event, error) { return e.attendance.Join(ctx, e1.ID, u1.ID) }, nil, []string{u1.ID}},
		{"u2 joins", func() (*model.Event, error) { return e.attendance.Join(ctx, e1.ID, u2.ID) }, nil, []string{u1.ID, u2.ID}},
		{"u3 full", func() (*model.Event, error) { return e.attendance.Join(ctx, e1.ID, u3.ID) }, model.ErrCapacityExceeded, nil},
		{"creator", func() (*model.Event, error) { return e.attendance.Join(ctx, e1.ID, u0.ID) }, model.ErrForbidden, nil},
		{"u1 leaves", func() (*model.Event, error) { return e.attendance.Withdraw(ctx, e1.ID, u1.ID) }, nil, []string{u2.ID}},
		{"u3 joins", func() (*model.Event, error) { return e.attendance.Join(ctx, e1.ID, u3.ID) }, nil, []string{u2.ID, u3.ID}},
	}
	for _, s := range steps {
		ev, err := s.do()
		if s.expect != nil {
			if !errors.Is(err, s.expect) {
				t.Fatalf("%s: expected %v, got %v", s.name, s.expect, err)
			}
		} else {
			if err != nil {
				t.Fatalf("%s: %v", s.name, err)
			}
			if !slices.Equal(ev.Attendees, s.want) {
				t.Fatalf("%s: attendees = %v, want %v", s.name, ev.Attendees, s.want)
			}
		}
		e.assertMirror(t, e1.ID, u0, u1, u2, u3)
	}

	if err := e.events.DeleteEvent(ctx, e1.ID, u0.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	e.dispatcher.Close()
	e.assertMirror(t, e1.ID, u0, u1, u2, u3)

	for _, u := range []*model.User{u2, u3} {
		items, err := e.notifications.List(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(items) != 1 {
			t.Fatalf("%s has %d notifications, want 1", u.Username, len(items))
		}
		n := items[0]
		if n.Kind != model.KindDeleted || n.EventID != e1.ID || !strings.Contains(n.Message, "Garden club") {
			t.Fatalf("unexpected notification for %s: %+v", u.Username, n)
		}
	}
	for _, u := range []*model.User{u0, u1} {
		items, _ := e.notifications.List(ctx, u.ID)
		if len(items) != 0 {
			t.Fatalf("%s should not be notified, got %+v", u.Username, items)
		}
	}
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner := e.user(t, "owner")
	first := e.user(t, "first")
	ev := e.event(t, owner.ID, 3)
	if _, err := e.attendance.Join(ctx, ev.ID, first.ID); err != nil {
		t.Fatal(err)
	}

	const n = 20
	racers := make([]*model.User, n)
	for i := range racers {
		racers[i] = e.user(t, fmt.Sprintf("racer%02d", i))
	}

	var ok, full atomic.Int32
	var wg sync.WaitGroup
	for _, u := range racers {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.attendance.Join(ctx, ev.ID, u.ID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, model.ErrCapacityExceeded):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || full.Load() != n-1 {
		t.Fatalf("successes=%d full=%d, want 1 and %d", ok.Load(), full.Load(), n-1)
	}
	got, _ := e.events.GetEvent(ctx, ev.ID)
	if len(got.Attendees) != got.MaxAttendees() {
		t.Fatalf("attendees = %v", got.Attendees)
	}
	e.assertMirror(t, ev.ID, racers...)
}

func TestWithdrawTwice(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner, bob := e.user(t, "owner"), e.user(t, "bob")
	ev := e.event(t, owner.ID, 2)

	if _, err := e.attendance.Join(ctx, ev.ID, bob.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.attendance.Withdraw(ctx, ev.ID, bob.ID); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	if _, err := e.attendance.Withdraw(ctx, ev.ID, bob.ID); !errors.Is(err, model.ErrNotAttending) {
		t.Fatalf("second withdraw: expected ErrNotAttending, got %v", err)
	}
}

func TestJoinErrors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner, bob := e.user(t, "owner"), e.user(t, "bob")
	ev := e.event(t, owner.ID, 3)

	tests := []struct {
		name    string
		eventID string
		userID  string
		expect  error
	}{
		{"creator", ev.ID, owner.ID, model.ErrForbidden},
		{"unknown event", "missing", bob.ID, model.ErrNotFound},
		{"unknown user", ev.ID, "ghost", model.ErrNotFound},
		{"blank user", ev.ID, " ", model.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.attendance.Join(ctx, tc.eventID, tc.userID); !errors.Is(err, tc.expect) {
				t.Fatalf("expected %v, got %v", tc.expect, err)
			}
		})
	}

	if _, err := e.attendance.Join(ctx, ev.ID, bob.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.attendance.Join(ctx, ev.ID, bob.ID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate join: expected ErrConflict, got %v", err)
	}
}

func TestEditNotifiesAttendees(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner, a, b := e.user(t, "owner"), e.user(t, "alice"), e.user(t, "bob")
	ev := e.event(t, owner.ID, 4)
	for _, u := range []*model.User{a, b} {
		if _, err := e.attendance.Join(ctx, ev.ID, u.ID); err != nil {
			t.Fatal(err)
		}
	}

	title := "Garden club (moved)"
	got, err := e.events.EditEvent(ctx, ev.ID, owner.ID, model.EventPatch{Title: &title})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if got.Title != title || len(got.Attendees) != 2 {
		t.Fatalf("unexpected event: %+v", got)
	}
	e.dispatcher.Close()

	for _, u := range []*model.User{a, b} {
		items, _ := e.notifications.List(ctx, u.ID)
		if len(items) != 1 || items[0].Kind != model.KindAmended || !strings.Contains(items[0].Message, title) {
			t.Fatalf("%s notifications = %+v", u.Username, items)
		}
	}
}

func TestEditWithoutAttendeesWritesNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner := e.user(t, "owner")
	ev := e.event(t, owner.ID, 4)

	loc := "Library"
	if _, err := e.events.EditEvent(ctx, ev.ID, owner.ID, model.EventPatch{Location: &loc}); err != nil {
		t.Fatal(err)
	}
	e.dispatcher.Close()

	items, _ := e.notifications.List(ctx, owner.ID)
	if len(items) != 0 {
		t.Fatalf("unexpected notifications: %+v", items)
	}
}

func TestOwnerOnlyMutations(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner, mallory := e.user(t, "owner"), e.user(t, "mallory")
	ev := e.event(t, owner.ID, 4)

	title := "Hijacked"
	if _, err := e.events.EditEvent(ctx, ev.ID, mallory.ID, model.EventPatch{Title: &title}); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("edit: expected ErrForbidden, got %v", err)
	}
	if err := e.events.DeleteEvent(ctx, ev.ID, mallory.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("delete: expected ErrForbidden, got %v", err)
	}
	if _, err := e.events.EditEvent(ctx, ev.ID, owner.ID, model.EventPatch{}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("empty patch: expected ErrValidation, got %v", err)
	}
	if err := e.events.DeleteEvent(ctx, "missing", owner.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("delete missing: expected ErrNotFound, got %v", err)
	}
}

// stuckEmitter drops every fact, as a saturated dispatcher would.
type stuckEmitter struct{ calls atomic.Int32 }

func (s *stuckEmitter) Emit(notify.Fact) bool {
	s.calls.Add(1)
	return false
}

func TestMutationSucceedsWhenFactDropped(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()
	set, _ := memory.NewSet()
	emitter := &stuckEmitter{}
	events := NewEventService(set.Events, emitter, model.Rules{Window: model.DefaultWindow, Now: func() time.Time { return testNow }}, log)
	users := NewUserService(set.Users, log)

	owner, err := users.CreateUser(ctx, model.CreateUserRequest{Username: "owner", Name: "Owner", Phone: "+15550000001"})
	if err != nil {
		t.Fatal(err)
	}
	ev, err := events.CreateEvent(ctx, owner.ID, model.CreateEventRequest{
		Title: "Walk", Date: testNow.Add(2 * time.Hour), Location: "Park", Capacity: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := events.DeleteEvent(ctx, ev.ID, owner.ID); err != nil {
		t.Fatalf("delete failed because of fan-out: %v", err)
	}
	if emitter.calls.Load() != 1 {
		t.Fatalf("emit called %d times, want 1", emitter.calls.Load())
	}
}

func TestNotificationService(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner, bob := e.user(t, "owner"), e.user(t, "bob")

	items, err := e.notifications.List(ctx, bob.ID)
	if err != nil || items == nil || len(items) != 0 {
		t.Fatalf("empty list: items=%v err=%v", items, err)
	}
	if _, err := e.notifications.List(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}

	ev := e.event(t, owner.ID, 2)
	if _, err := e.attendance.Join(ctx, ev.ID, bob.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.events.DeleteEvent(ctx, ev.ID, owner.ID); err != nil {
		t.Fatal(err)
	}
	e.dispatcher.Close()

	items, _ = e.notifications.List(ctx, bob.ID)
	if len(items) != 1 {
		t.Fatalf("notifications = %+v", items)
	}
	id := items[0].ID
	if err := e.notifications.MarkRead(ctx, bob.ID, id); err != nil {
		t.Fatal(err)
	}
	if err := e.notifications.Remove(ctx, bob.ID, id); err != nil {
		t.Fatal(err)
	}
	if err := e.notifications.Remove(ctx, bob.ID, id); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second remove: expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserConflict(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	req := model.CreateUserRequest{Username: "rose", Name: "Rose", Phone: "+15551234567"}
	if _, err := e.users.CreateUser(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := e.users.CreateUser(ctx, req); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
