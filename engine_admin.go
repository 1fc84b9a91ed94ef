package pathpal

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/internal/sanitize"
	"github.com/pathpal/pathpal/session"
)

// AddDevice registers a new device serial into inventory as available.
// Administrators only.
func (e *Engine) AddDevice(ctx context.Context, sess *session.Session, serial string) (*DeviceRecord, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}
	if !sess.IsAdmin() {
		return nil, ErrAdminRequired
	}

	serial, ok := normalizeSerial(sanitize.String(serial))
	if !ok {
		return nil, &ValidationError{Problems: []string{"Please enter a valid 5-digit serial number"}}
	}

	if err := e.devices.CreateDevice(ctx, serial); err != nil {
		if errors.Is(err, ErrDeviceExists) {
			return nil, ErrDeviceExists
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.notifyAdmins(fmt.Sprintf("Device %s%s added to inventory.", serialPrefix, serial), notify.KindAdmin)
	e.logger.Info("device added", "serial", serial, "admin_id", sess.Principal.UserID)

	device, err := e.devices.GetDevice(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return device, nil
}

// ListUsers returns every account. Administrators only.
func (e *Engine) ListUsers(ctx context.Context, sess *session.Session) ([]UserRecord, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}
	if !sess.IsAdmin() {
		return nil, ErrAdminRequired
	}

	users, err := e.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return users, nil
}
