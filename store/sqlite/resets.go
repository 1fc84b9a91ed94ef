package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pathpal/pathpal"
)

// PasswordResetStore implements pathpal.PasswordResetStore.
type PasswordResetStore struct {
	db *sql.DB
}

// DeleteActiveForUser removes unused rows so the next Insert leaves at
// most one active reset per user. Used rows stay for the audit trail.
func (s *PasswordResetStore) DeleteActiveForUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM password_resets WHERE user_id = ? AND used = 0`, userID)
	if err != nil {
		return fmt.Errorf("deleting active resets: %w", err)
	}
	return nil
}

func (s *PasswordResetStore) Insert(ctx context.Context, userID int64, tokenHash [32]byte, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO password_resets (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		userID, tokenHash[:], expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting password reset: %w", err)
	}
	return nil
}

func (s *PasswordResetStore) GetActiveForUser(ctx context.Context, userID int64, now time.Time) (*pathpal.PasswordResetRecord, error) {
	var (
		r    pathpal.PasswordResetRecord
		hash []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT reset_id, user_id, token_hash, expires_at, used
		 FROM password_resets
		 WHERE user_id = ? AND used = 0 AND expires_at > ?
		 ORDER BY reset_id DESC LIMIT 1`,
		userID, now.UTC()).Scan(&r.ResetID, &r.UserID, &hash, &r.ExpiresAt, &r.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pathpal.ErrNoPendingChallenge
		}
		return nil, fmt.Errorf("scanning password reset: %w", err)
	}
	if len(hash) != len(r.TokenHash) {
		return nil, fmt.Errorf("password reset row %d has malformed token hash", r.ResetID)
	}
	copy(r.TokenHash[:], hash)
	return &r, nil
}

func (s *PasswordResetStore) MarkUsed(ctx context.Context, resetID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE password_resets SET used = 1 WHERE reset_id = ?`, resetID)
	if err != nil {
		return fmt.Errorf("marking reset used: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pathpal.ErrNoPendingChallenge
	}
	return nil
}
