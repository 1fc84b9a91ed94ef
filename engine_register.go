package pathpal

import (
	"context"
	"fmt"

	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/internal/sanitize"
	"github.com/pathpal/pathpal/session"
)

const registrationFlowName = "Registration"

// RegistrationInput is the first-step registration form.
type RegistrationInput struct {
	Username string
	Email    string
	Phone    string
	Password string
}

// OTPIssued is returned whenever a passcode email goes out.
type OTPIssued struct {
	ResendSeconds int
	// DeviceName is set for unlink challenges so the confirmation UI can
	// name the device; empty otherwise.
	DeviceName string
}

// StartRegistration validates the form, checks the unique constraints,
// parks a pending challenge on the session, and emails the passcode. An
// existing pending registration on the same session is overwritten.
func (e *Engine) StartRegistration(ctx context.Context, sess *session.Session, in RegistrationInput) (*OTPIssued, error) {
	in.Username = sanitize.Username(in.Username)
	in.Email = sanitize.Email(in.Email)
	in.Phone = sanitize.Phone(in.Phone)

	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	taken, err := e.users.EmailTaken(ctx, in.Email, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if taken {
		return nil, ErrEmailExists
	}
	taken, err = e.users.UsernameTaken(ctx, in.Username, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if taken {
		return nil, ErrUsernameExists
	}
	taken, err = e.users.PhoneTaken(ctx, in.Phone, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if taken {
		return nil, ErrPhoneExists
	}

	passwordHash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	ch, otp, err := e.newChallenge(session.PurposeRegister, in.Email)
	if err != nil {
		return nil, err
	}
	ch.Registration = &session.RegistrationPayload{
		Username:     in.Username,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: passwordHash,
	}
	sess.SetChallenge(ch)

	if err := e.sendOTP(ctx, in.Email, registrationFlowName, otp); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRegistrationStarted)
	e.logger.Info("registration started", "email", in.Email)
	return &OTPIssued{ResendSeconds: e.resendSeconds()}, nil
}

// ResendRegistrationOTP regenerates and re-emails the passcode for the
// session's pending registration. Inside the cooldown it returns a
// CooldownError carrying the remaining seconds and leaves the stored hash
// untouched.
func (e *Engine) ResendRegistrationOTP(ctx context.Context, sess *session.Session, email string) (*OTPIssued, error) {
	email = sanitize.Email(email)

	ch := sess.Challenge(session.PurposeRegister)
	if ch == nil || ch.Email != email {
		return nil, ErrNoPendingChallenge
	}
	if err := e.checkResendCooldown(ch); err != nil {
		return nil, err
	}

	otp, err := e.refreshChallenge(ch)
	if err != nil {
		return nil, err
	}
	sess.MarkDirty()

	if err := e.sendOTP(ctx, ch.Email, registrationFlowName, otp); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricOTPResent)
	return &OTPIssued{ResendSeconds: e.resendSeconds()}, nil
}

// CompleteRegistration verifies the passcode and commits the account: user
// row created, welcome notification raised, admins notified, challenge
// consumed.
func (e *Engine) CompleteRegistration(ctx context.Context, sess *session.Session, email, otp string) (*UserRecord, error) {
	email = sanitize.Email(email)

	ch := sess.Challenge(session.PurposeRegister)
	if err := e.verifyChallenge(ch, email, otp); err != nil {
		return nil, err
	}

	user, err := e.users.Create(ctx, CreateUserInput{
		Username:     ch.Registration.Username,
		Email:        ch.Registration.Email,
		Phone:        ch.Registration.Phone,
		PasswordHash: ch.Registration.PasswordHash,
		UserType:     UserTypeUser,
	})
	if err != nil {
		return nil, err
	}

	sess.ClearChallenge(session.PurposeRegister)

	e.notifyUser(user.UserID,
		"Thank you for registering with MyPathPal! Welcome to our community.",
		notify.KindSystem)
	e.notifyAdmins(fmt.Sprintf("New user registered: %d", user.UserID), notify.KindAdmin)

	e.metrics.Inc(MetricRegistrationCompleted)
	e.logger.Info("registration completed", "user_id", user.UserID)
	return user, nil
}
