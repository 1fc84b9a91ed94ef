package pathpal

import (
	"context"
	"fmt"

	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/internal/sanitize"
	"github.com/pathpal/pathpal/session"
)

// Profile returns the caller's account row.
func (e *Engine) Profile(ctx context.Context, sess *session.Session) (*UserRecord, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}
	return e.users.GetByID(ctx, sess.Principal.UserID)
}

// UpdateProfile edits the caller's username, email, or phone. Empty fields
// are left as they are; changed fields are re-checked against the unique
// constraints, excluding the caller's own row.
func (e *Engine) UpdateProfile(ctx context.Context, sess *session.Session, update ProfileUpdate) (*UserRecord, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}
	userID := sess.Principal.UserID

	update.Username = sanitize.Username(update.Username)
	update.Email = sanitize.Email(update.Email)
	update.Phone = sanitize.Phone(update.Phone)

	var problems []string
	if update.Username != "" && !isValidUsername(update.Username) {
		problems = append(problems, "Username must be 3-30 characters long")
	}
	if update.Email != "" && !isValidEmail(update.Email) {
		problems = append(problems, "Please enter a valid email address")
	}
	if update.Phone != "" && !isValidPhone(update.Phone) {
		problems = append(problems, "Please enter a valid 11-digit phone number")
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	if update.Username != "" {
		taken, err := e.users.UsernameTaken(ctx, update.Username, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if taken {
			return nil, ErrUsernameExists
		}
	}
	if update.Email != "" {
		taken, err := e.users.EmailTaken(ctx, update.Email, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if taken {
			return nil, ErrEmailExists
		}
	}
	if update.Phone != "" {
		taken, err := e.users.PhoneTaken(ctx, update.Phone, userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if taken {
			return nil, ErrPhoneExists
		}
	}

	if err := e.users.UpdateProfile(ctx, userID, update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	user, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Keep the session principal in step with the row.
	sess.SetPrincipal(&session.Principal{
		UserID:   user.UserID,
		Username: user.Username,
		Email:    user.Email,
		UserType: string(user.UserType),
	})

	e.notifyUser(userID, "Your profile has been updated successfully.", notify.KindSystem)
	e.logger.Info("profile updated", "user_id", userID)
	return user, nil
}

// SendSupportMessage forwards a contact-form message to the configured
// support address. The form is open to anonymous visitors; its rate tier
// is the only throttle.
func (e *Engine) SendSupportMessage(ctx context.Context, name, email, message string) error {
	name = sanitize.String(name)
	email = sanitize.Email(email)
	message = sanitize.String(message)
	if name == "" || email == "" || message == "" {
		return &ValidationError{Problems: []string{"All fields are required."}}
	}
	if e.cfg.Email.SupportAddress == "" {
		return ErrMailUnavailable
	}

	subject := fmt.Sprintf("Support Request from %s", name)
	text := fmt.Sprintf("Name: %s\nEmail: %s\nMessage: %s", name, email, message)
	html := fmt.Sprintf("<p>Name: %s<br>Email: %s</p><p>%s</p>", name, email, message)

	if err := e.mailer.Send(ctx, e.cfg.Email.SupportAddress, subject, text, html); err != nil {
		e.logger.Error("support message dispatch failed", "error", err)
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}

	e.logger.Info("support message sent")
	return nil
}
