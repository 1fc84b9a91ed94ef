package pathpal

import (
	"context"
	"time"

	"github.com/pathpal/pathpal/internal/notify"
)

// UserType distinguishes regular accounts from administrators.
type UserType string

const (
	// UserTypeUser is the default account type.
	UserTypeUser UserType = "user"
	// UserTypeAdmin marks administrator accounts.
	UserTypeAdmin UserType = "admin"
)

// DeviceStatus is the lifecycle state of a registered device. A device that
// reaches StatusUnlinked can never be linked again.
type DeviceStatus string

const (
	// DeviceAvailable means the device is registered and not linked.
	DeviceAvailable DeviceStatus = "available"
	// DeviceLinked means the device is linked to a user account.
	DeviceLinked DeviceStatus = "linked"
	// DeviceUnlinked means the device was unlinked and is permanently retired.
	DeviceUnlinked DeviceStatus = "unlinked"
)

// UserRecord is a row of the users table.
type UserRecord struct {
	UserID       int64
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	UserType     UserType
	CreatedAt    time.Time
}

// CreateUserInput is the input for [UserStore.Create]. PasswordHash is a
// PHC-encoded argon2id string.
type CreateUserInput struct {
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	UserType     UserType
}

// ProfileUpdate carries the changed fields of a profile edit; empty fields
// are left untouched.
type ProfileUpdate struct {
	Username string
	Email    string
	Phone    string
}

// DeviceRecord is a row of the devices table.
type DeviceRecord struct {
	SerialNumber string
	Status       DeviceStatus
	CreatedAt    time.Time
}

// LinkedDeviceRecord is a row of the linked_devices table.
type LinkedDeviceRecord struct {
	LinkedDeviceID int64
	SerialNumber   string
	DeviceName     string
	UserID         int64
	Status         DeviceStatus
	UnlinkReason   string
	LinkedAt       time.Time
}

// NotificationRecord is a row of the notifications table.
type NotificationRecord struct {
	NotificationID int64
	UserID         int64
	Message        string
	Kind           notify.Kind
	IsRead         bool
	CreatedAt      time.Time
}

// PasswordResetRecord is a row of the password_resets table. TokenHash is
// the SHA-256 of the emailed OTP.
type PasswordResetRecord struct {
	ResetID   int64
	UserID    int64
	TokenHash [32]byte
	ExpiresAt time.Time
	Used      bool
}

// UserStore is the data-access interface for the users table. Lookups for
// missing rows return [ErrUserNotFound]; uniqueness violations on Create and
// UpdateProfile return the matching Err*Exists sentinel.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetByID(ctx context.Context, userID int64) (*UserRecord, error)
	EmailTaken(ctx context.Context, email string, excludeUserID int64) (bool, error)
	UsernameTaken(ctx context.Context, username string, excludeUserID int64) (bool, error)
	PhoneTaken(ctx context.Context, phone string, excludeUserID int64) (bool, error)
	Create(ctx context.Context, input CreateUserInput) (*UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) error
	List(ctx context.Context) ([]UserRecord, error)
}

// DeviceStore is the data-access interface for the devices and
// linked_devices tables.
type DeviceStore interface {
	GetDevice(ctx context.Context, serial string) (*DeviceRecord, error)
	CreateDevice(ctx context.Context, serial string) error
	SetDeviceStatus(ctx context.Context, serial string, status DeviceStatus) error
	GetLinkBySerial(ctx context.Context, serial string) (*LinkedDeviceRecord, error)
	GetLinkForUser(ctx context.Context, linkedDeviceID, userID int64) (*LinkedDeviceRecord, error)
	CreateLink(ctx context.Context, serial, deviceName string, userID int64) (*LinkedDeviceRecord, error)
	ListLinksForUser(ctx context.Context, userID int64) ([]LinkedDeviceRecord, error)
	MarkUnlinked(ctx context.Context, linkedDeviceID, userID int64, reason string) error
}

// NotificationStore is the data-access interface for the notifications
// table. Rows are never deleted.
type NotificationStore interface {
	Insert(ctx context.Context, userID int64, message string, kind notify.Kind) error
	InsertForAdmins(ctx context.Context, message string, kind notify.Kind) error
	ListForUser(ctx context.Context, userID int64) ([]NotificationRecord, error)
	MarkRead(ctx context.Context, notificationID, userID int64) error
}

// PasswordResetStore is the data-access interface for the password_resets
// table. At most one active (unused, unexpired) row exists per user.
type PasswordResetStore interface {
	DeleteActiveForUser(ctx context.Context, userID int64) error
	Insert(ctx context.Context, userID int64, tokenHash [32]byte, expiresAt time.Time) error
	GetActiveForUser(ctx context.Context, userID int64, now time.Time) (*PasswordResetRecord, error)
	MarkUsed(ctx context.Context, resetID int64) error
}
