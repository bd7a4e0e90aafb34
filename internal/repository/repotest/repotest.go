// Package repotest is a behavioural suite every repository.Set backend must
// pass: capacity under concurrent joins, the mirrored attendee references,
// cascades on delete and the notification lifecycle.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/repository"
)

// Factory returns an empty backend for one subtest.
type Factory func(t *testing.T) repository.Set

// Run executes the suite against fresh sets from newSet.
func Run(t *testing.T, newSet Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, f *fixture)
	}{
		{"CreateMirrorsCreator", testCreateMirrorsCreator},
		{"JoinWithdrawMirror", testJoinWithdrawMirror},
		{"JoinRules", testJoinRules},
		{"ConcurrentJoins", testConcurrentJoins},
		{"UpdateCapacity", testUpdateCapacity},
		{"DeleteCascades", testDeleteCascades},
		{"JoinRacingDelete", testJoinRacingDelete},
		{"UserConflict", testUserConflict},
		{"Notifications", testNotifications},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, &fixture{Set: newSet(t)})
		})
	}
}

type fixture struct {
	repository.Set
	users int
}

func (f *fixture) user(t *testing.T) *model.User {
	t.Helper()
	f.users++
	u := &model.User{
		Username: fmt.Sprintf("user%03d", f.users),
		Name:     fmt.Sprintf("User %d", f.users),
		Phone:    fmt.Sprintf("+4470000%05d", f.users),
	}
	if err := f.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) event(t *testing.T, creatorID string, capacity int) *model.Event {
	t.Helper()
	e := &model.Event{
		Title:     "Bowls",
		Date:      time.Date(2031, 6, 1, 11, 0, 0, 0, time.UTC),
		Location:  "Green",
		Capacity:  capacity,
		CreatorID: creatorID,
		Attendees: []string{},
	}
	if err := f.Events.Create(context.Background(), e); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

// mirrored fails unless u lists eventID exactly when it is an attendee.
func (f *fixture) mirrored(t *testing.T, eventID string, users ...*model.User) {
	t.Helper()
	ctx := context.Background()
	e, err := f.Events.GetByID(ctx, eventID)
	gone := errors.Is(err, model.ErrNotFound)
	if err != nil && !gone {
		t.Fatal(err)
	}
	for _, u := range users {
		got, err := f.Users.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		listed := slices.Contains(got.EventsAttending, eventID)
		attending := !gone && e.HasAttendee(u.ID)
		if listed != attending {
			t.Fatalf("user %s: eventsAttending has event=%v, attendees has user=%v", u.Username, listed, attending)
		}
	}
}

func testCreateMirrorsCreator(t *testing.T, f *fixture) {
	owner := f.user(t)
	e := f.event(t, owner.ID, 3)
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("id or createdAt not assigned: %+v", e)
	}

	got, err := f.Users.GetByID(context.Background(), owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.EventsCreated, []string{e.ID}) {
		t.Fatalf("eventsCreated = %v", got.EventsCreated)
	}
	if len(got.EventsAttending) != 0 || len(got.Notifications) != 0 {
		t.Fatalf("unexpected references: %+v", got)
	}

	err = f.Events.Create(context.Background(), &model.Event{
		Title: "x", Date: e.Date, Location: "y", Capacity: 2, CreatorID: "ghost",
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown creator: expected ErrNotFound, got %v", err)
	}
}

func testJoinWithdrawMirror(t *testing.T, f *fixture) {
	ctx := context.Background()
	owner, a, b := f.user(t), f.user(t), f.user(t)
	e := f.event(t, owner.ID, 3)

	for _, u := range []*model.User{a, b} {
		if _, err := f.Attendance.Join(ctx, e.ID, u.ID); err != nil {
			t.Fatalf("join: %v", err)
		}
		f.mirrored(t, e.ID, owner, a, b)
	}
	got, err := f.Events.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Attendees, []string{a.ID, b.ID}) {
		t.Fatalf("attendees = %v, want join order", got.Attendees)
	}

	after, err := f.Attendance.Withdraw(ctx, e.ID, a.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !slices.Equal(after.Attendees, []string{b.ID}) {
		t.Fatalf("attendees after withdraw = %v", after.Attendees)
	}
	f.mirrored(t, e.ID, owner, a, b)

	if _, err := f.Attendance.Withdraw(ctx, e.ID, a.ID); !errors.Is(err, model.ErrNotAttending) {
		t.Fatalf("second withdraw: expected ErrNotAttending, got %v", err)
	}
	if _, err := f.Attendance.Withdraw(ctx, "missing", a.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("withdraw from missing event: expected ErrNotFound, got %v", err)
	}
}

func testJoinRules(t *testing.T, f *fixture) {
	ctx := context.Background()
	owner, a, b := f.user(t), f.user(t), f.user(t)
	e := f.event(t, owner.ID, 2)

	if _, err := f.Attendance.Join(ctx, e.ID, owner.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("creator join: expected ErrForbidden, got %v", err)
	}
	if _, err := f.Attendance.Join(ctx, e.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Attendance.Join(ctx, e.ID, a.ID); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate join: expected ErrConflict, got %v", err)
	}
	if _, err := f.Attendance.Join(ctx, e.ID, b.ID); !errors.Is(err, model.ErrCapacityExceeded) {
		t.Fatalf("full event: expected ErrCapacityExceeded, got %v", err)
	}
	if _, err := f.Attendance.Join(ctx, "missing", b.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing event: expected ErrNotFound, got %v", err)
	}
	if _, err := f.Attendance.Join(ctx, e.ID, "ghost"); !errors.Is(err, model.ErrNotFound) &&
		!errors.Is(err, model.ErrCapacityExceeded) {
		t.Fatalf("unknown user: got %v", err)
	}
	f.mirrored(t, e.ID, owner, a, b)
}

func testConcurrentJoins(t *testing.T, f *fixture) {
	ctx := context.Background()
	owner, first := f.user(t), f.user(t)
	e := f.event(t, owner.ID, 4)
	for _, u := range []*model.User{first, f.user(t)} {
		if _, err := f.Attendance.Join(ctx, e.ID, u.ID); err != nil {
			t.Fatal(err)
		}
	}

	racers := make([]*model.User, 12)
	for i := range racers {
		racers[i] = f.user(t)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for _, u := range racers {
		u := u
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Attendance.Join(ctx, e.ID, u.ID)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, model.ErrCapacityExceeded):
			default:
				t.Errorf("join: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("%d joins won the last slot, want 1", wins.Load())
	}
	got, err := f.Events.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Attendees) != got.MaxAttendees() {
		t.Fatalf("attendees = %d, capacity allows %d", len(got.Attendees), got.MaxAttendees())
	}
	f.mirrored(t, e.ID, racers...)
}

func testUpdateCapacity(t *testing.T, f *fixture) {
	ctx := context.Background()
	owner, a, b := f.user(t), f.user(t), f.user(t)
	e := f.event(t, owner.ID, 4)
	for _, u := range []*model.User{a, b} {
		if _, err := f.Attendance.Join(ctx, e.ID, u.ID); err != nil {
			t.Fatal(err)
		}
	}

	rules := model.Rules{Window: model.DefaultWindow, Now: func() time.Time { return e.Date.Add(-time.Hour) }}
	shrink := func(capacity int) error {
		_, err := f.Events.Update(ctx, e.ID, func(ev *model.Event) error {
			if err := ev.CheckOwner(owner.ID); err != nil {
				return err
			}
			return rules.Apply(ev, model.EventPatch{Capacity: &capacity})
		})
		return err
	}

	if err := shrink(2); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("shrink below attendees: expected ErrValidation, got %v", err)
	}
	if err := shrink(3); err != nil {
		t.Fatalf("shrink to fit: %v", err)
	}
	got, err := f.Events.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Capacity != 3 || len(got.Attendees) != 2 || got.CreatorID != owner.ID {
		t.Fatalf("unexpected event after update: %+v", got)
	}

	_, err = f.Events.Update(ctx, e.ID, func(ev *model.Event) error { return ev.CheckOwner(a.ID) })
	if !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("foreign update: expected ErrForbidden, got %v", err)
	}
	_, err = f.Events.Update(ctx, "missing", func(*model.Event) error { return nil })
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing event: expected ErrNotFound, got %v", err)
	}
}

func testDeleteCascades(t *testing.T, f *fixture) {
	ctx := context.Background()
	owner, a, b := f.user(t), f.user(t), f.user(t)
	e := f.event(t, owner.ID, 3)
	for _, u := range []*model.User{a, b} {
		if _, err := f.Attendance.Join(ctx, e.ID, u.ID); err != nil {
			t.Fatal(err)
		}
	}

	_, err := f.Events.Delete(ctx, e.ID, func(ev *model.Event) error { return ev.CheckOwner(a.ID) })
	if !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("foreign delete: expected ErrForbidden, got %v", err)
	}

	deleted, err := f.Events.Delete(ctx, e.ID, func(ev *model.Event) error { return ev.CheckOwner(owner.ID) })
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !slices.Equal(deleted.Attendees, []string{a.ID, b.ID}) || deleted.Title != "Bowls" {
		t.Fatalf("deleted snapshot = %+v", deleted)
	}
	f.mirrored(t, e.ID, owner, a, b)

	got, err := f.Users.GetByID(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if slices.Contains(got.EventsCreated, e.ID) {
		t.Fatal("eventsCreated still lists the deleted event")
	}
	if _, err := f.Events.Delete(ctx, e.ID, func(*model.Event) error { return nil }); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func testJoinRacingDelete(t *testing.T, f *fixture) {
	ctx := context.Background()
	owner := f.user(t)
	joiners := make([]*model.User, 8)
	for i := range joiners {
		joiners[i] = f.user(t)
	}

	for round := 0; round < 5; round++ {
		e := f.event(t, owner.ID, model.MaxCapacity)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for _, u := range joiners {
			u := u
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := f.Attendance.Join(ctx, e.ID, u.ID)
				if err != nil && !errors.Is(err, model.ErrNotFound) {
					t.Errorf("join: %v", err)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.Events.Delete(ctx, e.ID, func(ev *model.Event) error { return ev.CheckOwner(owner.ID) })
			if err != nil {
				t.Errorf("delete: %v", err)
			}
		}()
		close(start)
		wg.Wait()

		f.mirrored(t, e.ID, joiners...)
	}
}

func testUserConflict(t *testing.T, f *fixture) {
	ctx := context.Background()
	u := f.user(t)

	dupName := &model.User{Username: u.Username, Name: "Other", Phone: "+19990000001"}
	if err := f.Users.Create(ctx, dupName); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate username: expected ErrConflict, got %v", err)
	}
	dupPhone := &model.User{Username: "someone_else", Name: "Other", Phone: u.Phone}
	if err := f.Users.Create(ctx, dupPhone); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("duplicate phone: expected ErrConflict, got %v", err)
	}
	if _, err := f.Users.GetByID(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing user: expected ErrNotFound, got %v", err)
	}
}

func testNotifications(t *testing.T, f *fixture) {
	ctx := context.Background()
	u, other := f.user(t), f.user(t)

	list, err := f.Notifications.ListByUser(ctx, u.ID)
	if err != nil || len(list) != 0 {
		t.Fatalf("empty list: %v, %v", list, err)
	}
	if _, err := f.Notifications.ListByUser(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}

	base := time.Date(2031, 1, 1, 12, 0, 0, 0, time.UTC)
	older := &model.Notification{RecipientID: u.ID, EventID: "gone", Message: "m1", Kind: model.KindAmended, CreatedAt: base}
	newer := &model.Notification{RecipientID: u.ID, EventID: "gone", Message: "m2", Kind: model.KindDeleted, CreatedAt: base.Add(time.Minute)}
	for _, n := range []*model.Notification{older, newer} {
		if err := f.Notifications.Create(ctx, n); err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}
	if err := f.Notifications.Create(ctx, &model.Notification{RecipientID: "ghost", Kind: model.KindAmended}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown recipient: expected ErrNotFound, got %v", err)
	}

	list, err = f.Notifications.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}
	got, err := f.Users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Notifications) != 2 {
		t.Fatalf("user notifications = %v", got.Notifications)
	}

	if err := f.Notifications.MarkRead(ctx, other.ID, older.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("foreign mark read: expected ErrNotFound, got %v", err)
	}
	if err := f.Notifications.MarkRead(ctx, u.ID, older.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := f.Notifications.Remove(ctx, other.ID, newer.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("foreign remove: expected ErrNotFound, got %v", err)
	}
	if err := f.Notifications.Remove(ctx, u.ID, newer.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.Notifications.Remove(ctx, u.ID, newer.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second remove: expected ErrNotFound, got %v", err)
	}

	list, err = f.Notifications.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != older.ID || !list[0].Read {
		t.Fatalf("remaining notifications = %+v", list)
	}
}
