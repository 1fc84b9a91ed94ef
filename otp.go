package pathpal

import (
	"crypto/subtle"

	"github.com/pathpal/pathpal/internal"
	"github.com/pathpal/pathpal/session"
)

// newChallenge creates a pending challenge for purpose and returns it with
// the plaintext passcode, which exists only long enough to be emailed.
func (e *Engine) newChallenge(purpose session.Purpose, email string) (*session.Challenge, string, error) {
	otp, err := internal.NewOTP()
	if err != nil {
		return nil, "", err
	}
	hash := internal.HashSecret(otp)

	now := e.now()
	ch := &session.Challenge{
		Purpose:        purpose,
		Email:          email,
		OTPHash:        hash[:],
		ExpiresAt:      now.Add(e.cfg.OTP.TTL),
		LastSentAt:     now,
		ResendCooldown: e.cfg.OTP.ResendCooldown,
	}
	return ch, otp, nil
}

// refreshChallenge regenerates the passcode in place, extending expiry and
// resetting the resend clock. The previous passcode stops matching.
func (e *Engine) refreshChallenge(ch *session.Challenge) (string, error) {
	otp, err := internal.NewOTP()
	if err != nil {
		return "", err
	}
	hash := internal.HashSecret(otp)

	now := e.now()
	ch.OTPHash = hash[:]
	ch.ExpiresAt = now.Add(e.cfg.OTP.TTL)
	ch.LastSentAt = now
	return otp, nil
}

// checkResendCooldown returns a CooldownError while the challenge is still
// inside its resend window.
func (e *Engine) checkResendCooldown(ch *session.Challenge) error {
	remaining := ch.LastSentAt.Add(ch.ResendCooldown).Sub(e.now())
	if remaining > 0 {
		seconds := int(remaining.Seconds())
		if remaining.Seconds() > float64(seconds) {
			seconds++
		}
		return &CooldownError{SecondsRemaining: seconds}
	}
	return nil
}

// verifyChallenge checks a completion attempt against the pending
// challenge. The caller consumes the challenge only after this passes.
func (e *Engine) verifyChallenge(ch *session.Challenge, email, otp string) error {
	if ch == nil || ch.Email != email {
		return ErrNoPendingChallenge
	}
	if otp == "" {
		return ErrOTPRequired
	}
	if e.now().After(ch.ExpiresAt) {
		e.metrics.Inc(MetricOTPExpired)
		return ErrOTPExpired
	}

	hash := internal.HashSecret(otp)
	if subtle.ConstantTimeCompare(ch.OTPHash, hash[:]) != 1 {
		e.metrics.Inc(MetricOTPInvalid)
		return ErrOTPInvalid
	}
	return nil
}
