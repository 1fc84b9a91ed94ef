package pathpal

import (
	"context"
	"fmt"
	"strings"

	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/internal/sanitize"
	"github.com/pathpal/pathpal/session"
)

const unlinkFlowName = "Device Unlink"

const minUnlinkReasonLen = 5

// StartDeviceUnlink begins the OTP-gated unlink of one of the caller's
// linked devices. The passcode goes to the account email on file, not to
// an address supplied in the request.
func (e *Engine) StartDeviceUnlink(ctx context.Context, sess *session.Session, linkedDeviceID int64, reason string) (*OTPIssued, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}

	reason = sanitize.String(reason)
	if len(strings.TrimSpace(reason)) < minUnlinkReasonLen {
		return nil, &ValidationError{Problems: []string{
			"Please provide a reason for unlinking (at least 5 characters)",
		}}
	}

	link, err := e.devices.GetLinkForUser(ctx, linkedDeviceID, sess.Principal.UserID)
	if err != nil {
		return nil, err
	}

	user, err := e.users.GetByID(ctx, sess.Principal.UserID)
	if err != nil {
		return nil, err
	}

	ch, otp, err := e.newChallenge(session.PurposeUnlinkDevice, user.Email)
	if err != nil {
		return nil, err
	}
	ch.Unlink = &session.UnlinkPayload{
		LinkedDeviceID: link.LinkedDeviceID,
		DeviceName:     link.DeviceName,
		SerialNumber:   link.SerialNumber,
		UserEmail:      user.Email,
		Reason:         reason,
	}
	sess.SetChallenge(ch)

	if err := e.sendOTP(ctx, user.Email, unlinkFlowName, otp); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricUnlinkRequested)
	e.logger.Info("device unlink requested",
		"user_id", user.UserID,
		"linked_device_id", link.LinkedDeviceID,
	)
	return &OTPIssued{
		ResendSeconds: e.resendSeconds(),
		DeviceName:    link.DeviceName,
	}, nil
}

// ResendUnlinkOTP regenerates and re-emails the unlink passcode, subject
// to the resend cooldown.
func (e *Engine) ResendUnlinkOTP(ctx context.Context, sess *session.Session) (*OTPIssued, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}

	ch := sess.Challenge(session.PurposeUnlinkDevice)
	if ch == nil {
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

	if err := e.sendOTP(ctx, ch.Email, unlinkFlowName, otp); err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricOTPResent)
	return &OTPIssued{
		ResendSeconds: e.resendSeconds(),
		DeviceName:    ch.Unlink.DeviceName,
	}, nil
}

// CompleteDeviceUnlink verifies the passcode and retires the device: the
// link and the device row both go to unlinked, permanently. Returns the
// device name for the confirmation message.
func (e *Engine) CompleteDeviceUnlink(ctx context.Context, sess *session.Session, otp string) (string, error) {
	if sess.Principal == nil {
		return "", ErrAuthRequired
	}

	ch := sess.Challenge(session.PurposeUnlinkDevice)
	if ch == nil {
		return "", ErrNoPendingChallenge
	}
	if err := e.verifyChallenge(ch, ch.Email, otp); err != nil {
		return "", err
	}

	pending := ch.Unlink
	link, err := e.devices.GetLinkForUser(ctx, pending.LinkedDeviceID, sess.Principal.UserID)
	if err != nil {
		return "", err
	}

	if err := e.devices.MarkUnlinked(ctx, link.LinkedDeviceID, sess.Principal.UserID, pending.Reason); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.devices.SetDeviceStatus(ctx, link.SerialNumber, DeviceUnlinked); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess.ClearChallenge(session.PurposeUnlinkDevice)

	e.notifyUser(sess.Principal.UserID,
		fmt.Sprintf("Device %q has been successfully unlinked from your account.", pending.DeviceName),
		notify.KindDeviceStatus)

	e.metrics.Inc(MetricUnlinkCompleted)
	e.logger.Info("device unlinked",
		"user_id", sess.Principal.UserID,
		"serial", link.SerialNumber,
	)
	return pending.DeviceName, nil
}
