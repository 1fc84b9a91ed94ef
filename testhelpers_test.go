package pathpal

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/password"
)

// fakeClock is a settable time source shared by an engine under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMail struct {
	To      string
	Subject string
	Text    string
}

// fakeMailer records sends; set fail to simulate SMTP outage.
type fakeMailer struct {
	mu    sync.Mutex
	sends []sentMail
	fail  bool
}

func (m *fakeMailer) Send(_ context.Context, to, subject, textBody, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return io.ErrClosedPipe
	}
	m.sends = append(m.sends, sentMail{To: to, Subject: subject, Text: textBody})
	return nil
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sends) == 0 {
		t.Fatal("no mail was sent")
	}
	return m.sends[len(m.sends)-1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

var otpPattern = regexp.MustCompile(`OTP is: (\d{4})\.`)

func otpFromMail(t *testing.T, msg sentMail) string {
	t.Helper()
	match := otpPattern.FindStringSubmatch(msg.Text)
	if match == nil {
		t.Fatalf("no OTP found in mail body %q", msg.Text)
	}
	return match[1]
}

// memUserStore is an in-memory UserStore.
type memUserStore struct {
	mu     sync.Mutex
	users  map[int64]*UserRecord
	nextID int64
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[int64]*UserRecord), nextID: 1}
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUserStore) GetByID(_ context.Context, userID int64) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memUserStore) EmailTaken(_ context.Context, email string, excludeUserID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email && u.UserID != excludeUserID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) UsernameTaken(_ context.Context, username string, excludeUserID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username && u.UserID != excludeUserID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) PhoneTaken(_ context.Context, phone string, excludeUserID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone && u.UserID != excludeUserID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) Create(_ context.Context, input CreateUserInput) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &UserRecord{
		UserID:       s.nextID,
		Username:     input.Username,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: input.PasswordHash,
		UserType:     input.UserType,
		CreatedAt:    time.Now(),
	}
	s.nextID++
	s.users[u.UserID] = u
	copied := *u
	return &copied, nil
}

func (s *memUserStore) UpdatePasswordHash(_ context.Context, userID int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *memUserStore) UpdateProfile(_ context.Context, userID int64, update ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if update.Username != "" {
		u.Username = update.Username
	}
	if update.Email != "" {
		u.Email = update.Email
	}
	if update.Phone != "" {
		u.Phone = update.Phone
	}
	return nil
}

func (s *memUserStore) List(_ context.Context) ([]UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UserRecord, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

// memDeviceStore is an in-memory DeviceStore.
type memDeviceStore struct {
	mu      sync.Mutex
	devices map[string]*DeviceRecord
	links   map[int64]*LinkedDeviceRecord
	nextID  int64
}

func newMemDeviceStore() *memDeviceStore {
	return &memDeviceStore{
		devices: make(map[string]*DeviceRecord),
		links:   make(map[int64]*LinkedDeviceRecord),
		nextID:  1,
	}
}

func (s *memDeviceStore) GetDevice(_ context.Context, serial string) (*DeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[serial]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *memDeviceStore) CreateDevice(_ context.Context, serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[serial]; ok {
		return ErrDeviceExists
	}
	s.devices[serial] = &DeviceRecord{SerialNumber: serial, Status: DeviceAvailable, CreatedAt: time.Now()}
	return nil
}

func (s *memDeviceStore) SetDeviceStatus(_ context.Context, serial string, status DeviceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[serial]
	if !ok {
		return ErrDeviceNotFound
	}
	d.Status = status
	return nil
}

func (s *memDeviceStore) GetLinkBySerial(_ context.Context, serial string) (*LinkedDeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.SerialNumber == serial && l.Status == DeviceLinked {
			copied := *l
			return &copied, nil
		}
	}
	return nil, ErrLinkNotFound
}

func (s *memDeviceStore) GetLinkForUser(_ context.Context, linkedDeviceID, userID int64) (*LinkedDeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[linkedDeviceID]
	if !ok || l.UserID != userID || l.Status != DeviceLinked {
		return nil, ErrLinkNotFound
	}
	copied := *l
	return &copied, nil
}

func (s *memDeviceStore) CreateLink(_ context.Context, serial, deviceName string, userID int64) (*LinkedDeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &LinkedDeviceRecord{
		LinkedDeviceID: s.nextID,
		SerialNumber:   serial,
		DeviceName:     deviceName,
		UserID:         userID,
		Status:         DeviceLinked,
		LinkedAt:       time.Now(),
	}
	s.nextID++
	s.links[l.LinkedDeviceID] = l
	copied := *l
	return &copied, nil
}

func (s *memDeviceStore) ListLinksForUser(_ context.Context, userID int64) ([]LinkedDeviceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LinkedDeviceRecord
	for _, l := range s.links {
		if l.UserID == userID && l.Status == DeviceLinked {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memDeviceStore) MarkUnlinked(_ context.Context, linkedDeviceID, userID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[linkedDeviceID]
	if !ok || l.UserID != userID || l.Status != DeviceLinked {
		return ErrLinkNotFound
	}
	l.Status = DeviceUnlinked
	l.UnlinkReason = reason
	return nil
}

// memNotificationStore is an in-memory NotificationStore. Admin broadcasts
// fan out to adminIDs.
type memNotificationStore struct {
	mu       sync.Mutex
	rows     []NotificationRecord
	adminIDs []int64
	nextID   int64
}

func newMemNotificationStore(adminIDs ...int64) *memNotificationStore {
	return &memNotificationStore{adminIDs: adminIDs, nextID: 1}
}

func (s *memNotificationStore) Insert(_ context.Context, userID int64, message string, kind notify.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, NotificationRecord{
		NotificationID: s.nextID, UserID: userID, Message: message, Kind: kind, CreatedAt: time.Now(),
	})
	s.nextID++
	return nil
}

func (s *memNotificationStore) InsertForAdmins(ctx context.Context, message string, kind notify.Kind) error {
	s.mu.Lock()
	admins := append([]int64(nil), s.adminIDs...)
	s.mu.Unlock()
	for _, id := range admins {
		if err := s.Insert(ctx, id, message, kind); err != nil {
			return err
		}
	}
	return nil
}

func (s *memNotificationStore) ListForUser(_ context.Context, userID int64) ([]NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []NotificationRecord
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].UserID == userID {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *memNotificationStore) MarkRead(_ context.Context, notificationID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].NotificationID == notificationID && s.rows[i].UserID == userID {
			s.rows[i].IsRead = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

// memResetStore is an in-memory PasswordResetStore.
type memResetStore struct {
	mu     sync.Mutex
	rows   map[int64]*PasswordResetRecord
	nextID int64
}

func newMemResetStore() *memResetStore {
	return &memResetStore{rows: make(map[int64]*PasswordResetRecord), nextID: 1}
}

func (s *memResetStore) DeleteActiveForUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rows {
		if r.UserID == userID && !r.Used {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *memResetStore) Insert(_ context.Context, userID int64, tokenHash [32]byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[s.nextID] = &PasswordResetRecord{
		ResetID: s.nextID, UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt,
	}
	s.nextID++
	return nil
}

func (s *memResetStore) GetActiveForUser(_ context.Context, userID int64, now time.Time) (*PasswordResetRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *PasswordResetRecord
	for _, r := range s.rows {
		if r.UserID == userID && !r.Used && r.ExpiresAt.After(now) {
			if latest == nil || r.ResetID > latest.ResetID {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, ErrNoPendingChallenge
	}
	copied := *latest
	return &copied, nil
}

func (s *memResetStore) MarkUsed(_ context.Context, resetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[resetID]
	if !ok {
		return ErrNoPendingChallenge
	}
	r.Used = true
	return nil
}

// testFixture bundles an engine with its collaborators.
type testFixture struct {
	engine        *Engine
	clock         *fakeClock
	mailer        *fakeMailer
	users         *memUserStore
	devices       *memDeviceStore
	notifications *memNotificationStore
	resets        *memResetStore
	hasher        *password.Argon2
}

func newTestEngine(t *testing.T) *testFixture {
	t.Helper()

	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	f := &testFixture{
		clock:         newFakeClock(),
		mailer:        &fakeMailer{},
		users:         newMemUserStore(),
		devices:       newMemDeviceStore(),
		notifications: newMemNotificationStore(99),
		resets:        newMemResetStore(),
		hasher:        hasher,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.engine = &Engine{
		cfg:           DefaultConfig(),
		users:         f.users,
		devices:       f.devices,
		notifications: f.notifications,
		resets:        f.resets,
		mailer:        f.mailer,
		hasher:        hasher,
		dispatcher:    notify.NewDispatcher(notify.Config{BufferSize: 16}, &storeSink{store: f.notifications, logger: logger}),
		metrics:       NewMetrics(),
		logger:        logger,
		now:           f.clock.Now,
	}
	t.Cleanup(f.engine.Close)
	return f
}

// seedUser inserts a user with the given password and returns its record.
func (f *testFixture) seedUser(t *testing.T, username, email, phone, pass string, userType UserType) *UserRecord {
	t.Helper()
	hash, err := f.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	user, err := f.users.Create(context.Background(), CreateUserInput{
		Username: username, Email: email, Phone: phone, PasswordHash: hash, UserType: userType,
	})
	if err != nil {
		t.Fatalf("seeding user failed: %v", err)
	}
	return user
}
