package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pathpal/pathpal"
	"github.com/pathpal/pathpal/internal/notify"
)

// NotificationStore implements pathpal.NotificationStore.
type NotificationStore struct {
	db *sql.DB
}

func (s *NotificationStore) Insert(ctx context.Context, userID int64, message string, kind notify.Kind) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, message, kind) VALUES (?, ?, ?)`,
		userID, message, kind)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// InsertForAdmins fans one message out to every administrator account.
func (s *NotificationStore) InsertForAdmins(ctx context.Context, message string, kind notify.Kind) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, message, kind)
		 SELECT user_id, ?, ? FROM users WHERE user_type = ?`,
		message, kind, pathpal.UserTypeAdmin)
	if err != nil {
		return fmt.Errorf("inserting admin notifications: %w", err)
	}
	return nil
}

func (s *NotificationStore) ListForUser(ctx context.Context, userID int64) ([]pathpal.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT notification_id, user_id, message, kind, is_read, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at DESC, notification_id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var out []pathpal.NotificationRecord
	for rows.Next() {
		var n pathpal.NotificationRecord
		if err := rows.Scan(&n.NotificationID, &n.UserID, &n.Message,
			&n.Kind, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) MarkRead(ctx context.Context, notificationID, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1
		 WHERE notification_id = ? AND user_id = ?`, notificationID, userID)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pathpal.ErrNotificationNotFound
	}
	return nil
}
