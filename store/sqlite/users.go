package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/pathpal/pathpal"
)

// UserStore implements pathpal.UserStore.
type UserStore struct {
	db *sql.DB
}

const userColumns = `user_id, username, email, phone, password_hash, user_type, created_at`

func scanUser(row *sql.Row) (*pathpal.UserRecord, error) {
	var u pathpal.UserRecord
	err := row.Scan(&u.UserID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.UserType, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pathpal.ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*pathpal.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (*pathpal.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	return scanUser(row)
}

func (s *UserStore) EmailTaken(ctx context.Context, email string, excludeUserID int64) (bool, error) {
	return s.taken(ctx, "email", email, excludeUserID)
}

func (s *UserStore) UsernameTaken(ctx context.Context, username string, excludeUserID int64) (bool, error) {
	return s.taken(ctx, "username", username, excludeUserID)
}

func (s *UserStore) PhoneTaken(ctx context.Context, phone string, excludeUserID int64) (bool, error) {
	return s.taken(ctx, "phone", phone, excludeUserID)
}

func (s *UserStore) taken(ctx context.Context, column, value string, excludeUserID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE `+column+` = ? AND user_id != ?`,
		value, excludeUserID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking %s uniqueness: %w", column, err)
	}
	return count > 0, nil
}

func (s *UserStore) Create(ctx context.Context, input pathpal.CreateUserInput) (*pathpal.UserRecord, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, phone, password_hash, user_type)
		 VALUES (?, ?, ?, ?, ?)`,
		input.Username, input.Email, input.Phone, input.PasswordHash, input.UserType)
	if err != nil {
		if mapped := mapUserConstraint(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted user id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE user_id = ?`, hash, userID)
	if err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pathpal.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, userID int64, update pathpal.ProfileUpdate) error {
	var sets []string
	var args []any
	if update.Username != "" {
		sets = append(sets, "username = ?")
		args = append(args, update.Username)
	}
	if update.Email != "" {
		sets = append(sets, "email = ?")
		args = append(args, update.Email)
	}
	if update.Phone != "" {
		sets = append(sets, "phone = ?")
		args = append(args, update.Phone)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE user_id = ?`, args...)
	if err != nil {
		if mapped := mapUserConstraint(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("updating profile: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pathpal.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) List(ctx context.Context) ([]pathpal.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []pathpal.UserRecord
	for rows.Next() {
		var u pathpal.UserRecord
		if err := rows.Scan(&u.UserID, &u.Username, &u.Email, &u.Phone,
			&u.PasswordHash, &u.UserType, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// mapUserConstraint translates a unique-constraint violation into the
// matching sentinel, or returns nil for unrelated errors.
func mapUserConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return nil
	}
	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "users.email"):
		return pathpal.ErrEmailExists
	case strings.Contains(msg, "users.username"):
		return pathpal.ErrUsernameExists
	case strings.Contains(msg, "users.phone"):
		return pathpal.ErrPhoneExists
	default:
		return nil
	}
}
