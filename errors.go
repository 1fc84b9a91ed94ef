package pathpal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthRequired is returned when an operation needs a logged-in session.
	ErrAuthRequired = errors.New("authentication required")
	// ErrAdminRequired is returned when an operation needs an administrator session.
	ErrAdminRequired = errors.New("admin access required")
	// ErrInvalidCredentials is returned for any email/password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a user row does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrCSRFMissing is returned when a mutating request carries no token.
	ErrCSRFMissing = errors.New("csrf token missing")
	// ErrCSRFInvalid is returned for unknown tokens and user mismatches.
	ErrCSRFInvalid = errors.New("csrf token invalid")
	// ErrCSRFExpired is returned when a token has outlived its validity window.
	ErrCSRFExpired = errors.New("csrf token expired")

	// ErrOTPRequired is returned when a completion call carries no passcode.
	ErrOTPRequired = errors.New("otp required")
	// ErrOTPInvalid is returned when the passcode hash does not match.
	ErrOTPInvalid = errors.New("invalid otp")
	// ErrOTPExpired is returned when the challenge outlived its expiry.
	ErrOTPExpired = errors.New("otp expired")
	// ErrNoPendingChallenge is returned when no challenge matches the request.
	ErrNoPendingChallenge = errors.New("no pending challenge")

	// ErrEmailExists is returned when the email unique constraint would break.
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameExists is returned when the username unique constraint would break.
	ErrUsernameExists = errors.New("username already exists")
	// ErrPhoneExists is returned when the phone unique constraint would break.
	ErrPhoneExists = errors.New("phone number already exists")

	// ErrDeviceNotFound is returned when a serial is not registered in the system.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceExists is returned when a serial is already registered.
	ErrDeviceExists = errors.New("device already exists")
	// ErrDeviceUnlinked is returned for devices retired by a previous unlink.
	ErrDeviceUnlinked = errors.New("device has been unlinked and cannot be linked again")
	// ErrDeviceAlreadyLinked is returned when a serial is linked to some account.
	ErrDeviceAlreadyLinked = errors.New("device already linked")
	// ErrLinkNotFound is returned when a linked device does not belong to the caller.
	ErrLinkNotFound = errors.New("linked device not found")

	// ErrNotificationNotFound is returned when a notification row does not
	// exist or belongs to another user.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrMailUnavailable is returned when outbound email dispatch fails.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
	// ErrStoreUnavailable is returned when a backing store call fails.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when the engine is missing a dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError lists everything wrong with a request's fields.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// CooldownError reports the remaining wait before another OTP may be sent.
type CooldownError struct {
	SecondsRemaining int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before resending", e.SecondsRemaining)
}
