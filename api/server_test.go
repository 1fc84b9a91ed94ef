package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/pathpal/pathpal"
	"github.com/pathpal/pathpal/password"
	"github.com/pathpal/pathpal/session"
	"github.com/pathpal/pathpal/store/sqlite"
)

type sentMail struct {
	To      string
	Subject string
	Text    string
}

type fakeMailer struct {
	mu    sync.Mutex
	sends []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, textBody, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sentMail{To: to, Subject: subject, Text: textBody})
	return nil
}

var otpPattern = regexp.MustCompile(`OTP is: (\d{4})\.`)

func (m *fakeMailer) lastOTP(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sends) == 0 {
		t.Fatal("no mail was sent")
	}
	match := otpPattern.FindStringSubmatch(m.sends[len(m.sends)-1].Text)
	if match == nil {
		t.Fatalf("no OTP in mail body %q", m.sends[len(m.sends)-1].Text)
	}
	return match[1]
}

type testServer struct {
	ts     *httptest.Server
	client *http.Client
	mailer *fakeMailer
	db     *sqlite.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := sqlite.Open(sqlite.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := pathpal.DefaultConfig()
	mailer := &fakeMailer{}
	metrics := pathpal.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	engine, err := pathpal.New().
		WithConfig(cfg).
		WithStores(db.Users(), db.Devices(), db.Notifications(), db.PasswordResets()).
		WithMailer(mailer).
		WithPasswordConfig(password.Config{
			Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16,
		}).
		WithMetrics(metrics).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	t.Cleanup(engine.Close)

	sessionStore := session.NewMemoryStore(cfg.Session.TTL)
	t.Cleanup(sessionStore.Close)
	csrfStore := pathpal.NewMemoryCSRFStore(cfg.CSRF.Validity)
	t.Cleanup(csrfStore.Close)

	sessions := session.NewManager(sessionStore, cfg.Session.CookieName, cfg.Session.TTL, false)
	guard := pathpal.NewCSRFGuard(csrfStore, cfg.CSRF.Validity)
	limiters := NewLimiters(cfg.RateLimit)
	t.Cleanup(limiters.Close)

	server := NewServer(engine, sessions, guard, limiters, metrics, logger)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("creating cookie jar: %v", err)
	}
	return &testServer{
		ts:     ts,
		client: &http.Client{Jar: jar},
		mailer: mailer,
		db:     db,
	}
}

func (s *testServer) do(t *testing.T, method, path, csrfToken string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if csrfToken != "" {
		req.Header.Set("X-CSRF-Token", csrfToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("%s %s: decoding response: %v", method, path, err)
	}
	return resp, decoded
}

// registerAndLogin drives the full registration flow and leaves the client
// logged in. It returns a live anti-forgery token.
func (s *testServer) registerAndLogin(t *testing.T, username, email, phone string) string {
	t.Helper()

	resp, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username, "email": email, "phone": phone, "password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: status %d body %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPost, "/api/auth/register-complete", "", map[string]string{
		"email": email, "otp": s.mailer.lastOTP(t),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register-complete: status %d body %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d body %v", resp.StatusCode, body)
	}

	token := resp.Header.Get("X-CSRF-Token")
	if token == "" {
		// Any authenticated GET refreshes the token.
		getResp, _ := s.do(t, http.MethodGet, "/api/user/csrf-token", "", nil)
		token = getResp.Header.Get("X-CSRF-Token")
	}
	if token == "" {
		t.Fatal("no anti-forgery token after login")
	}
	return token
}

func TestRegistrationLoginProfileRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "alice", "alice@example.com", "01234567890")

	resp, body := s.do(t, http.MethodGet, "/api/user/profile", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: status %d body %v", resp.StatusCode, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "alice" || user["email"] != "alice@example.com" {
		t.Fatalf("profile body %v", body)
	}

	resp, body = s.do(t, http.MethodPut, "/api/user/profile", token, map[string]string{
		"username": "alice2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update profile: status %d body %v", resp.StatusCode, body)
	}
	user, _ = body["user"].(map[string]any)
	if user["username"] != "alice2" {
		t.Fatalf("update body %v", body)
	}
}

func TestMutatingRequestNeedsCSRFToken(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "alice", "alice@example.com", "01234567890")

	resp, body := s.do(t, http.MethodPut, "/api/user/profile", "", map[string]string{
		"username": "alice2",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if body["message"] != "CSRF token missing. Please refresh the page and try again." {
		t.Fatalf("message = %v", body["message"])
	}
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/user/profile", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body["message"] != "Authentication required" {
		t.Fatalf("message = %v", body["message"])
	}
}

func TestAdminRoutesRejectPlainUsers(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "alice", "alice@example.com", "01234567890")

	resp, body := s.do(t, http.MethodPost, "/api/admin/add-device", token, map[string]string{
		"serialNumber": "12345",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if body["message"] != "Admin access required" {
		t.Fatalf("message = %v", body["message"])
	}
}

func TestDeviceLinkFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.registerAndLogin(t, "alice", "alice@example.com", "01234567890")

	if err := s.db.Devices().CreateDevice(context.Background(), "12345"); err != nil {
		t.Fatalf("seeding device: %v", err)
	}

	resp, body := s.do(t, http.MethodGet, "/api/devices/check-link/PPSC-12345", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check-link: status %d body %v", resp.StatusCode, body)
	}
	if body["canLink"] != true {
		t.Fatalf("check-link body %v", body)
	}

	resp, body = s.do(t, http.MethodPost, "/api/devices", token, map[string]string{
		"deviceSerial": "12345", "deviceName": "My Cane",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("link: status %d body %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodGet, "/api/devices", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d body %v", resp.StatusCode, body)
	}
	devices, _ := body["devices"].([]any)
	if len(devices) != 1 {
		t.Fatalf("list body %v", body)
	}
}

func TestLoginLockout(t *testing.T) {
	s := newTestServer(t)

	var last map[string]any
	var status int
	for i := 0; i < 5; i++ {
		resp, body := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "nobody@example.com", "password": "wrong",
		})
		status, last = resp.StatusCode, body
	}
	if status != http.StatusTooManyRequests {
		t.Fatalf("fifth attempt: status %d body %v", status, last)
	}
	if last["message"] != "Too many login attempts. Please wait 10 minutes." {
		t.Fatalf("message = %v", last["message"])
	}
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/no-such-thing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body["success"] != false || body["message"] != "Not found" {
		t.Fatalf("body %v", body)
	}
}

func TestResendCooldownSurfacesRetrySeconds(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "phone": "01234567890", "password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: status %d body %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, http.MethodPost, "/api/auth/register-resend", "", map[string]string{
		"email": "alice@example.com",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("resend: status %d body %v", resp.StatusCode, body)
	}
	if body["message"] != "Please wait before resending OTP." {
		t.Fatalf("message = %v", body["message"])
	}
	if secs, ok := body["secondsRemaining"].(float64); !ok || secs <= 0 || secs > 60 {
		t.Fatalf("secondsRemaining = %v", body["secondsRemaining"])
	}
}
