package service

import (
	"context"

	"github.com/elderlink/elderlink/internal/model"
	"github.com/elderlink/elderlink/internal/repository"
)

// NotificationService lists and dismisses a user's notifications.
type NotificationService struct {
	notifications repository.NotificationRepository
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// List returns the user's notifications newest first. A user without
// notifications gets an empty slice, not an error.
func (s *NotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	userID, err := requireID("user id", userID)
	if err != nil {
		return nil, err
	}
	items, err := s.notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, passThrough("list notifications", err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return items, nil
}

// MarkRead flags one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	userID, err := requireID("user id", userID)
	if err != nil {
		return err
	}
	notificationID, err = requireID("notification id", notificationID)
	if err != nil {
		return err
	}
	if err := s.notifications.MarkRead(ctx, userID, notificationID); err != nil {
		return passThrough("mark notification read", err)
	}
	return nil
}

// Remove dismisses a notification from the user's list and deletes it.
func (s *NotificationService) Remove(ctx context.Context, userID, notificationID string) error {
	userID, err := requireID("user id", userID)
	if err != nil {
		return err
	}
	notificationID, err = requireID("notification id", notificationID)
	if err != nil {
		return err
	}
	if err := s.notifications.Remove(ctx, userID, notificationID); err != nil {
		return passThrough("remove notification", err)
	}
	return nil
}
