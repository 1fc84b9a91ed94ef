package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/pathpal/pathpal"
)

// DeviceStore implements pathpal.DeviceStore over the devices and
// linked_devices tables.
type DeviceStore struct {
	db *sql.DB
}

const linkColumns = `linked_device_id, serial_number, device_name, user_id, status, unlink_reason, linked_at`

func scanLink(row *sql.Row) (*pathpal.LinkedDeviceRecord, error) {
	var l pathpal.LinkedDeviceRecord
	err := row.Scan(&l.LinkedDeviceID, &l.SerialNumber, &l.DeviceName,
		&l.UserID, &l.Status, &l.UnlinkReason, &l.LinkedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pathpal.ErrLinkNotFound
		}
		return nil, fmt.Errorf("scanning linked device: %w", err)
	}
	return &l, nil
}

func (s *DeviceStore) GetDevice(ctx context.Context, serial string) (*pathpal.DeviceRecord, error) {
	var d pathpal.DeviceRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT serial_number, status, created_at FROM devices WHERE serial_number = ?`,
		serial).Scan(&d.SerialNumber, &d.Status, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pathpal.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}
	return &d, nil
}

func (s *DeviceStore) CreateDevice(ctx context.Context, serial string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (serial_number, status) VALUES (?, ?)`,
		serial, pathpal.DeviceAvailable)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
			return pathpal.ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

func (s *DeviceStore) SetDeviceStatus(ctx context.Context, serial string, status pathpal.DeviceStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE devices SET status = ? WHERE serial_number = ?`, status, serial)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pathpal.ErrDeviceNotFound
	}
	return nil
}

// GetLinkBySerial returns the active link for serial, ignoring unlinked
// history rows.
func (s *DeviceStore) GetLinkBySerial(ctx context.Context, serial string) (*pathpal.LinkedDeviceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM linked_devices
		 WHERE serial_number = ? AND status = ?`, serial, pathpal.DeviceLinked)
	return scanLink(row)
}

// GetLinkForUser returns the caller's active link by id. Rows belonging to
// other users look the same as missing rows.
func (s *DeviceStore) GetLinkForUser(ctx context.Context, linkedDeviceID, userID int64) (*pathpal.LinkedDeviceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM linked_devices
		 WHERE linked_device_id = ? AND user_id = ? AND status = ?`,
		linkedDeviceID, userID, pathpal.DeviceLinked)
	return scanLink(row)
}

func (s *DeviceStore) CreateLink(ctx context.Context, serial, deviceName string, userID int64) (*pathpal.LinkedDeviceRecord, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO linked_devices (serial_number, device_name, user_id, status)
		 VALUES (?, ?, ?, ?)`,
		serial, deviceName, userID, pathpal.DeviceLinked)
	if err != nil {
		return nil, fmt.Errorf("inserting linked device: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading inserted link id: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM linked_devices WHERE linked_device_id = ?`, id)
	return scanLink(row)
}

// ListLinksForUser returns the user's active links only; unlinked rows
// stay in the table for the audit trail but are not listed.
func (s *DeviceStore) ListLinksForUser(ctx context.Context, userID int64) ([]pathpal.LinkedDeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM linked_devices
		 WHERE user_id = ? AND status = ? ORDER BY linked_at DESC`, userID, pathpal.DeviceLinked)
	if err != nil {
		return nil, fmt.Errorf("listing linked devices: %w", err)
	}
	defer rows.Close()

	var links []pathpal.LinkedDeviceRecord
	for rows.Next() {
		var l pathpal.LinkedDeviceRecord
		if err := rows.Scan(&l.LinkedDeviceID, &l.SerialNumber, &l.DeviceName,
			&l.UserID, &l.Status, &l.UnlinkReason, &l.LinkedAt); err != nil {
			return nil, fmt.Errorf("scanning linked device: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *DeviceStore) MarkUnlinked(ctx context.Context, linkedDeviceID, userID int64, reason string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE linked_devices SET status = ?, unlink_reason = ?
		 WHERE linked_device_id = ? AND user_id = ? AND status = ?`,
		pathpal.DeviceUnlinked, reason, linkedDeviceID, userID, pathpal.DeviceLinked)
	if err != nil {
		return fmt.Errorf("marking device unlinked: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pathpal.ErrLinkNotFound
	}
	return nil
}
