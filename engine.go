package pathpal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/mail"
	"github.com/pathpal/pathpal/password"
)

// Engine implements every account, device, and notification operation over
// injected collaborators. It owns no HTTP concerns; the api package maps
// requests onto it and its error taxonomy onto status codes.
//
// Engines are built once at startup by [Builder.Build] and are safe for
// concurrent use.
type Engine struct {
	cfg Config

	users         UserStore
	devices       DeviceStore
	notifications NotificationStore
	resets        PasswordResetStore

	mailer     mail.Mailer
	hasher     *password.Argon2
	dispatcher *notify.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger

	now func() time.Time
}

// Close flushes the notification dispatcher. Call on shutdown.
func (e *Engine) Close() {
	e.dispatcher.Close()
}

// Metrics returns the engine's counter set for exposition.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// NotificationsDropped reports notifications lost to backpressure.
func (e *Engine) NotificationsDropped() uint64 {
	return e.dispatcher.Dropped()
}

// notifyUser raises an in-app notification for one user, fire and forget.
func (e *Engine) notifyUser(userID int64, message string, kind notify.Kind) {
	e.metrics.Inc(MetricNotificationRaised)
	e.dispatcher.Emit(notify.Event{UserID: userID, Message: message, Kind: kind})
}

// notifyAdmins raises an in-app notification for every administrator.
func (e *Engine) notifyAdmins(message string, kind notify.Kind) {
	e.metrics.Inc(MetricNotificationRaised)
	e.dispatcher.Emit(notify.Event{Broadcast: true, Message: message, Kind: kind})
}

// sendOTP emails a passcode using the subject/body wording the frontend
// copy refers to. A send failure surfaces as ErrMailUnavailable so the
// caller never reports the challenge as delivered.
func (e *Engine) sendOTP(ctx context.Context, to, flowName, otp string) error {
	subject := fmt.Sprintf("Your PathPal %s OTP", flowName)
	text := fmt.Sprintf("Your 4-digit %s OTP is: %s. It expires in %d minutes.",
		flowName, otp, int(e.cfg.OTP.TTL.Minutes()))
	html := fmt.Sprintf("<p>Your 4-digit %s OTP is: <strong>%s</strong>. It expires in %d minutes.</p>",
		flowName, otp, int(e.cfg.OTP.TTL.Minutes()))

	if err := e.mailer.Send(ctx, to, subject, text, html); err != nil {
		e.logger.Error("otp email dispatch failed", "flow", flowName, "error", err)
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	return nil
}

// resendSeconds is the advertised cooldown carried in OTP responses.
func (e *Engine) resendSeconds() int {
	return int(e.cfg.OTP.ResendCooldown.Seconds())
}
