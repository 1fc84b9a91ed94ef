// Package session provides the server-side session bag keyed by an opaque
// id carried in an HttpOnly cookie. Sessions exist independently of login:
// an anonymous visitor gets one as soon as a handler needs to park state on
// it (a pending registration, for example).
package session

import (
	"time"
)

const schemaVersion = 1

// Purpose tags a pending OTP challenge. Each purpose owns one slot on the
// session; purposes are independent of each other.
type Purpose string

const (
	PurposeRegister      Purpose = "register"
	PurposeResetPassword Purpose = "reset_password"
	PurposeUnlinkDevice  Purpose = "unlink_device"
)

// Principal identifies the logged-in user, when there is one.
type Principal struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

// RegistrationPayload is the purpose-specific state of a pending
// registration. The password is hashed before it ever reaches the session.
type RegistrationPayload struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"password_hash"`
}

// UnlinkPayload is the purpose-specific state of a pending device unlink.
type UnlinkPayload struct {
	LinkedDeviceID int64  `json:"linked_device_id"`
	DeviceName     string `json:"device_name"`
	SerialNumber   string `json:"serial_number"`
	UserEmail      string `json:"user_email"`
	Reason         string `json:"reason"`
}

// Challenge is one pending OTP challenge. Exactly one of the payload
// pointers is set, matching Purpose; ResetPassword carries no payload
// because its state lives in the password_resets table.
type Challenge struct {
	Purpose        Purpose       `json:"purpose"`
	Email          string        `json:"email"`
	OTPHash        []byte        `json:"otp_hash"`
	ExpiresAt      time.Time     `json:"expires_at"`
	LastSentAt     time.Time     `json:"last_sent_at"`
	ResendCooldown time.Duration `json:"resend_cooldown"`

	Registration *RegistrationPayload `json:"registration,omitempty"`
	Unlink       *UnlinkPayload       `json:"unlink,omitempty"`
}

// Session is the per-client state bag.
type Session struct {
	Version   int        `json:"version"`
	SID       string     `json:"sid"`
	Principal *Principal `json:"principal,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	PendingRegistration *Challenge `json:"pending_registration,omitempty"`
	PendingReset        *Challenge `json:"pending_reset,omitempty"`
	PendingUnlink       *Challenge `json:"pending_unlink,omitempty"`

	// dirty marks the session for a save at the end of the request.
	dirty bool
}

// Challenge returns the slot for purpose, or nil.
func (s *Session) Challenge(purpose Purpose) *Challenge {
	switch purpose {
	case PurposeRegister:
		return s.PendingRegistration
	case PurposeResetPassword:
		return s.PendingReset
	case PurposeUnlinkDevice:
		return s.PendingUnlink
	default:
		return nil
	}
}

// SetChallenge overwrites the slot for ch.Purpose. A nil ch with a purpose
// is cleared with [Session.ClearChallenge] instead.
func (s *Session) SetChallenge(ch *Challenge) {
	switch ch.Purpose {
	case PurposeRegister:
		s.PendingRegistration = ch
	case PurposeResetPassword:
		s.PendingReset = ch
	case PurposeUnlinkDevice:
		s.PendingUnlink = ch
	}
	s.dirty = true
}

// ClearChallenge consumes the slot for purpose.
func (s *Session) ClearChallenge(purpose Purpose) {
	switch purpose {
	case PurposeRegister:
		s.PendingRegistration = nil
	case PurposeResetPassword:
		s.PendingReset = nil
	case PurposeUnlinkDevice:
		s.PendingUnlink = nil
	}
	s.dirty = true
}

// SetPrincipal records a successful login.
func (s *Session) SetPrincipal(p *Principal) {
	s.Principal = p
	s.dirty = true
}

// IsAdmin reports whether the session principal is an administrator.
func (s *Session) IsAdmin() bool {
	return s.Principal != nil && s.Principal.UserType == "admin"
}

// MarkDirty flags the session for saving.
func (s *Session) MarkDirty() { s.dirty = true }

// Dirty reports whether the session has unsaved changes.
func (s *Session) Dirty() bool { return s.dirty }
