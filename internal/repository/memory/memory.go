// Package memory is an in-process backend holding the three collections as
// documents behind a single mutex. It serves dev mode and the service tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/repository"
)

// DB holds the documents. The zero value is not usable; call New.
type DB struct {
	mu            sync.Mutex
	events        map[string]*model.Event
	users         map[string]*model.User
	notifications map[string]*model.Notification
	now           func() time.Time
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		events:        make(map[string]*model.Event),
		users:         make(map[string]*model.User),
		notifications: make(map[string]*model.Notification),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// NewSet returns repositories backed by a fresh DB.
func NewSet() (repository.Set, *DB) {
	db := New()
	return repository.Set{
		Events:        &EventRepository{db: db},
		Attendance:    &AttendanceRepository{db: db},
		Users:         &UserRepository{db: db},
		Notifications: &NotificationRepository{db: db},
		Close:         func(context.Context) error { return nil },
	}, db
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}

func appendID(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// EventRepository implements repository.EventRepository.
type EventRepository struct {
	db *DB
}

func (r *EventRepository) Create(_ context.Context, e *model.Event) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	creator, ok := r.db.users[e.CreatorID]
	if !ok {
		return model.NotFound("user", e.CreatorID)
	}
	e.ID = uuid.New().String()
	e.CreatedAt = r.db.now()
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	r.db.events[e.ID] = e.Clone()
	creator.EventsCreated = appendID(creator.EventsCreated, e.ID)
	return nil
}

func (r *EventRepository) GetByID(_ context.Context, id string) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.events[id]
	if !ok {
		return nil, model.NotFound("event", id)
	}
	return e.Clone(), nil
}

func (r *EventRepository) List(_ context.Context) ([]model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	events := make([]model.Event, 0, len(r.db.events))
	for _, e := range r.db.events {
		events = append(events, *e.Clone())
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].Date.Before(events[j].Date)
	})
	return events, nil
}

func (r *EventRepository) Update(_ context.Context, id string, mutate func(*model.Event) error) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.events[id]
	if !ok {
		return nil, model.NotFound("event", id)
	}
	next := stored.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	// identity and membership are not editable
	next.ID, next.CreatorID, next.CreatedAt = stored.ID, stored.CreatorID, stored.CreatedAt
	next.Attendees = slices.Clone(stored.Attendees)
	r.db.events[id] = next
	return next.Clone(), nil
}

func (r *EventRepository) Delete(_ context.Context, id string, check func(*model.Event) error) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.events[id]
	if !ok {
		return nil, model.NotFound("event", id)
	}
	if err := check(e.Clone()); err != nil {
		return nil, err
	}
	delete(r.db.events, id)
	if creator, ok := r.db.users[e.CreatorID]; ok {
		creator.EventsCreated = removeID(creator.EventsCreated, id)
	}
	for _, uid := range e.Attendees {
		if u, ok := r.db.users[uid]; ok {
			u.EventsAttending = removeID(u.EventsAttending, id)
		}
	}
	return e.Clone(), nil
}

// AttendanceRepository implements repository.AttendanceRepository.
type AttendanceRepository struct {
	db *DB
}

func (r *AttendanceRepository) Join(_ context.Context, eventID, userID string) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.events[eventID]
	if !ok {
		return nil, model.NotFound("event", eventID)
	}
	u, ok := r.db.users[userID]
	if !ok {
		return nil, model.NotFound("user", userID)
	}
	if err := e.CheckJoin(userID); err != nil {
		return nil, err
	}
	e.Attendees = append(e.Attendees, userID)
	u.EventsAttending = appendID(u.EventsAttending, eventID)
	return e.Clone(), nil
}

func (r *AttendanceRepository) Withdraw(_ context.Context, eventID, userID string) (*model.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.events[eventID]
	if !ok {
		return nil, model.NotFound("event", eventID)
	}
	if err := e.CheckWithdraw(userID); err != nil {
		return nil, err
	}
	e.Attendees = removeID(e.Attendees, userID)
	if u, ok := r.db.users[userID]; ok {
		u.EventsAttending = removeID(u.EventsAttending, eventID)
	}
	return e.Clone(), nil
}

// UserRepository implements repository.UserRepository.
type UserRepository struct {
	db *DB
}

func (r *UserRepository) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, existing := range r.db.users {
		if existing.Username == u.Username || existing.Phone == u.Phone {
			return model.ErrConflict
		}
	}
	u.ID = uuid.New().String()
	u.CreatedAt = r.db.now()
	r.db.users[u.ID] = u.Clone()
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, model.NotFound("user", id)
	}
	return u.Clone(), nil
}

// NotificationRepository implements repository.NotificationRepository.
type NotificationRepository struct {
	db *DB
}

func (r *NotificationRepository) Create(_ context.Context, n *model.Notification) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[n.RecipientID]
	if !ok {
		return model.NotFound("user", n.RecipientID)
	}
	n.ID = uuid.New().String()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.db.now()
	}
	stored := *n
	r.db.notifications[n.ID] = &stored
	u.Notifications = append(u.Notifications, n.ID)
	return nil
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID string) ([]model.Notification, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[userID]
	if !ok {
		return nil, model.NotFound("user", userID)
	}
	out := make([]model.Notification, 0, len(u.Notifications))
	for _, id := range u.Notifications {
		if n, ok := r.db.notifications[id]; ok {
			out = append(out, *n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, userID, notificationID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[userID]
	if !ok {
		return model.NotFound("user", userID)
	}
	n, ok := r.db.notifications[notificationID]
	if !ok || !slices.Contains(u.Notifications, notificationID) {
		return model.NotFound("notification", notificationID)
	}
	n.Read = true
	return nil
}

func (r *NotificationRepository) Remove(_ context.Context, userID, notificationID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[userID]
	if !ok {
		return model.NotFound("user", userID)
	}
	if !slices.Contains(u.Notifications, notificationID) {
		return model.NotFound("notification", notificationID)
	}
	u.Notifications = removeID(u.Notifications, notificationID)
	delete(r.db.notifications, notificationID)
	return nil
}
