package pathpal

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathpal/pathpal/internal/sanitize"
	"github.com/pathpal/pathpal/session"
)

// Login checks credentials and installs a principal on the session. Any
// mismatch, including an unknown email, collapses to ErrInvalidCredentials
// so failures do not reveal which half was wrong.
func (e *Engine) Login(ctx context.Context, sess *session.Session, email, pass string) (*UserRecord, error) {
	email = sanitize.Email(email)
	if email == "" || pass == "" {
		return nil, &ValidationError{Problems: []string{"Email and password are required"}}
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metrics.Inc(MetricLoginFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metrics.Inc(MetricLoginFailure)
		e.logger.Info("login failed", "user_id", user.UserID)
		return nil, ErrInvalidCredentials
	}

	sess.SetPrincipal(&session.Principal{
		UserID:   user.UserID,
		Username: user.Username,
		Email:    user.Email,
		UserType: string(user.UserType),
	})

	e.metrics.Inc(MetricLoginSuccess)
	e.logger.Info("login succeeded", "user_id", user.UserID, "type", user.UserType)
	return user, nil
}

// Logout drops the principal and any pending challenges from the session.
// The session itself is destroyed by the caller.
func (e *Engine) Logout(sess *session.Session) {
	if sess.Principal != nil {
		e.logger.Info("logout", "user_id", sess.Principal.UserID)
	}
	sess.Principal = nil
	sess.PendingRegistration = nil
	sess.PendingReset = nil
	sess.PendingUnlink = nil
	sess.MarkDirty()
}
