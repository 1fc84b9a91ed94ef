package pathpal

import (
	"context"
	"fmt"

	"github.com/pathpal/pathpal/session"
)

// ListNotifications returns the caller's notifications, newest first.
func (e *Engine) ListNotifications(ctx context.Context, sess *session.Session) ([]NotificationRecord, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}

	rows, err := e.notifications.ListForUser(ctx, sess.Principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rows, nil
}

// MarkNotificationRead flags one of the caller's notifications as read.
// Rows belonging to other users are indistinguishable from missing ones.
func (e *Engine) MarkNotificationRead(ctx context.Context, sess *session.Session, notificationID int64) error {
	if sess.Principal == nil {
		return ErrAuthRequired
	}

	return e.notifications.MarkRead(ctx, notificationID, sess.Principal.UserID)
}
