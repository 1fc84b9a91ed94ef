package pathpal

import (
	"context"
	"errors"
	"fmt"

	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/internal/sanitize"
	"github.com/pathpal/pathpal/session"
)

// DeviceAvailability is the result of a pre-link serial check.
type DeviceAvailability struct {
	SerialNumber string
	Status       DeviceStatus
	// LinkedToCaller is set when the serial is already linked to the
	// caller's own account.
	LinkedToCaller bool
}

// CheckDeviceLink reports whether the serial can be linked by the caller.
// The serial may carry the PPSC- prefix; it is stripped before lookup.
func (e *Engine) CheckDeviceLink(ctx context.Context, sess *session.Session, serial string) (*DeviceAvailability, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}

	serial, ok := normalizeSerial(sanitize.String(serial))
	if !ok {
		return nil, &ValidationError{Problems: []string{"Please enter a valid 5-digit serial number"}}
	}

	device, err := e.devices.GetDevice(ctx, serial)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := &DeviceAvailability{SerialNumber: device.SerialNumber, Status: device.Status}
	switch device.Status {
	case DeviceUnlinked:
		return nil, ErrDeviceUnlinked
	case DeviceLinked:
		link, err := e.devices.GetLinkBySerial(ctx, serial)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		out.LinkedToCaller = link.UserID == sess.Principal.UserID
		return out, ErrDeviceAlreadyLinked
	}
	return out, nil
}

// LinkDevice attaches an available device to the caller's account under a
// user-chosen name.
func (e *Engine) LinkDevice(ctx context.Context, sess *session.Session, serial, deviceName string) (*LinkedDeviceRecord, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}

	deviceName = sanitize.String(deviceName)
	if deviceName == "" {
		return nil, &ValidationError{Problems: []string{"Device name is required"}}
	}

	serial, ok := normalizeSerial(sanitize.String(serial))
	if !ok {
		return nil, &ValidationError{Problems: []string{"Please enter a valid 5-digit serial number"}}
	}

	device, err := e.devices.GetDevice(ctx, serial)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	switch device.Status {
	case DeviceUnlinked:
		return nil, ErrDeviceUnlinked
	case DeviceLinked:
		return nil, ErrDeviceAlreadyLinked
	}

	link, err := e.devices.CreateLink(ctx, serial, deviceName, sess.Principal.UserID)
	if err != nil {
		return nil, err
	}
	if err := e.devices.SetDeviceStatus(ctx, serial, DeviceLinked); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.notifyUser(sess.Principal.UserID,
		fmt.Sprintf("Device %q (%s) has been successfully linked to your account.", deviceName, serial),
		notify.KindDeviceStatus)

	e.metrics.Inc(MetricDeviceLinked)
	e.logger.Info("device linked",
		"user_id", sess.Principal.UserID,
		"serial", serial,
	)
	return link, nil
}

// ListDevices returns the caller's active device links, newest first.
// Unlinked history rows are not included.
func (e *Engine) ListDevices(ctx context.Context, sess *session.Session) ([]LinkedDeviceRecord, error) {
	if sess.Principal == nil {
		return nil, ErrAuthRequired
	}

	links, err := e.devices.ListLinksForUser(ctx, sess.Principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return links, nil
}
