package pathpal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pathpal/pathpal/session"
)

func adminSession(t *testing.T, f *testFixture) *session.Session {
	t.Helper()
	admin := f.seedUser(t, "root", "admin@pathpal.example", "01000000000", "password123", UserTypeAdmin)
	sess := &session.Session{SID: "s-admin"}
	sess.SetPrincipal(&session.Principal{
		UserID: admin.UserID, Username: admin.Username, Email: admin.Email, UserType: string(admin.UserType),
	})
	return sess
}

func TestAdminAddDevice(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	sess := adminSession(t, f)

	device, err := f.engine.AddDevice(ctx, sess, "PPSC-20001")
	if err != nil {
		t.Fatalf("AddDevice failed: %v", err)
	}
	if device.SerialNumber != "20001" || device.Status != DeviceAvailable {
		t.Fatalf("unexpected device %+v", device)
	}

	if _, err := f.engine.AddDevice(ctx, sess, "20001"); !errors.Is(err, ErrDeviceExists) {
		t.Fatalf("duplicate got %v, want ErrDeviceExists", err)
	}

	var validation *ValidationError
	if _, err := f.engine.AddDevice(ctx, sess, "20ab1"); !errors.As(err, &validation) {
		t.Fatalf("bad serial got %v, want ValidationError", err)
	}

	// Inventory additions are broadcast to the admin accounts.
	f.engine.Close()
	notes, _ := f.notifications.ListForUser(ctx, 99)
	found := false
	for _, n := range notes {
		if strings.Contains(n.Message, "PPSC-20001") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no admin broadcast in %+v", notes)
	}
}

func TestAdminListUsers(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	sess := adminSession(t, f)
	f.seedUser(t, "alice", "alice@example.com", "01234567890", "password123", UserTypeUser)

	users, err := f.engine.ListUsers(ctx, sess)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
}

func TestAdminOperationsRejectNonAdmins(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	sess := userSession(t, f, "alice", "alice@example.com", "01234567890")

	if _, err := f.engine.AddDevice(ctx, sess, "20001"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("AddDevice got %v, want ErrAdminRequired", err)
	}
	if _, err := f.engine.ListUsers(ctx, sess); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("ListUsers got %v, want ErrAdminRequired", err)
	}

	anon := &session.Session{SID: "anon"}
	if _, err := f.engine.AddDevice(ctx, anon, "20001"); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("anonymous AddDevice got %v, want ErrAuthRequired", err)
	}
}
