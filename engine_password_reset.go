package pathpal

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/pathpal/pathpal/internal"
	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/internal/sanitize"
	"github.com/pathpal/pathpal/session"
)

const passwordResetFlowName = "Password Reset"

// StartPasswordReset issues a reset passcode for email. Whether or not the
// account exists the caller sees the same success shape, so the endpoint
// cannot be used to enumerate accounts. The passcode hash is persisted in
// the password_resets table (superseding any active row) so a process
// restart does not orphan an emailed code; the session slot exists for the
// resend cooldown.
func (e *Engine) StartPasswordReset(ctx context.Context, sess *session.Session, email string) (*OTPIssued, error) {
	email = sanitize.Email(email)

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Uniform response; no email goes out.
			return &OTPIssued{ResendSeconds: e.resendSeconds()}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ch, otp, err := e.newChallenge(session.PurposeResetPassword, email)
	if err != nil {
		return nil, err
	}

	if err := e.resets.DeleteActiveForUser(ctx, user.UserID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	hash := internal.HashSecret(otp)
	if err := e.resets.Insert(ctx, user.UserID, hash, ch.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess.SetChallenge(ch)

	if err := e.sendOTP(ctx, email, passwordResetFlowName, otp); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricPasswordResetRequested)
	e.logger.Info("password reset requested", "user_id", user.UserID)
	return &OTPIssued{ResendSeconds: e.resendSeconds()}, nil
}

// ResendPasswordResetOTP re-issues the reset passcode, refreshing both the
// session challenge and the persisted row.
func (e *Engine) ResendPasswordResetOTP(ctx context.Context, sess *session.Session, email string) (*OTPIssued, error) {
	email = sanitize.Email(email)

	ch := sess.Challenge(session.PurposeResetPassword)
	if ch == nil || ch.Email != email {
		return nil, ErrNoPendingChallenge
	}
	if err := e.checkResendCooldown(ch); err != nil {
		return nil, err
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNoPendingChallenge
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	otp, err := e.refreshChallenge(ch)
	if err != nil {
		return nil, err
	}
	sess.MarkDirty()

	if err := e.resets.DeleteActiveForUser(ctx, user.UserID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	hash := internal.HashSecret(otp)
	if err := e.resets.Insert(ctx, user.UserID, hash, ch.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.sendOTP(ctx, email, passwordResetFlowName, otp); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricOTPResent)
	return &OTPIssued{ResendSeconds: e.resendSeconds()}, nil
}

// VerifyResetOTP checks a reset passcode without consuming it, backing the
// intermediate "verify" step of the reset form.
func (e *Engine) VerifyResetOTP(ctx context.Context, email, otp string) error {
	email = sanitize.Email(email)

	_, _, err := e.activeReset(ctx, email, otp)
	return err
}

// CompletePasswordReset verifies the passcode, rewrites the password hash,
// marks the reset row used, and notifies the user. When an administrator
// resets their own password the admin audience is notified as well.
func (e *Engine) CompletePasswordReset(ctx context.Context, sess *session.Session, email, otp, newPassword string) error {
	email = sanitize.Email(email)

	if !isValidPassword(newPassword) {
		return &ValidationError{Problems: []string{"Password must be at least 8 characters long"}}
	}

	user, reset, err := e.activeReset(ctx, email, otp)
	if err != nil {
		return err
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePasswordHash(ctx, user.UserID, newHash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.resets.MarkUsed(ctx, reset.ResetID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess.ClearChallenge(session.PurposeResetPassword)

	e.notifyUser(user.UserID,
		"Your password has been successfully reset. If you did not make this change, please contact support immediately.",
		notify.KindSystem)
	if sess.IsAdmin() && sess.Principal.UserID == user.UserID {
		e.notifyAdmins(fmt.Sprintf("Admin %d reset password.", user.UserID), notify.KindAdmin)
	}

	e.metrics.Inc(MetricPasswordResetCompleted)
	e.logger.Info("password reset completed", "user_id", user.UserID)
	return nil
}

// activeReset resolves the user's single active reset row and validates
// the passcode against it.
func (e *Engine) activeReset(ctx context.Context, email, otp string) (*UserRecord, *PasswordResetRecord, error) {
	if otp == "" {
		return nil, nil, ErrOTPRequired
	}

	user, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrOTPInvalid
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	reset, err := e.resets.GetActiveForUser(ctx, user.UserID, e.now())
	if err != nil {
		if errors.Is(err, ErrNoPendingChallenge) {
			e.metrics.Inc(MetricOTPExpired)
			return nil, nil, ErrOTPExpired
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	provided := internal.HashSecret(otp)
	if subtle.ConstantTimeCompare(reset.TokenHash[:], provided[:]) != 1 {
		e.metrics.Inc(MetricOTPInvalid)
		return nil, nil, ErrOTPInvalid
	}
	return user, reset, nil
}
