package pathpal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pathpal/pathpal/session"
)

// linkTestDevice registers a device, links it to user, and returns the
// logged-in session and link.
func linkTestDevice(t *testing.T, f *testFixture, serial string) (*session.Session, *LinkedDeviceRecord) {
	t.Helper()
	ctx := context.Background()

	user := f.seedUser(t, "alice", "alice@example.com", "01234567890", "password123", UserTypeUser)
	sess := &session.Session{SID: "s1"}
	sess.SetPrincipal(&session.Principal{
		UserID: user.UserID, Username: user.Username, Email: user.Email, UserType: string(user.UserType),
	})

	if err := f.devices.CreateDevice(ctx, serial); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	link, err := f.engine.LinkDevice(ctx, sess, serial, "My Cane")
	if err != nil {
		t.Fatalf("LinkDevice failed: %v", err)
	}
	return sess, link
}

func TestDeviceUnlinkFlow(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	sess, link := linkTestDevice(t, f, "12345")

	issued, err := f.engine.StartDeviceUnlink(ctx, sess, link.LinkedDeviceID, "device was stolen")
	if err != nil {
		t.Fatalf("StartDeviceUnlink failed: %v", err)
	}
	if issued.DeviceName != "My Cane" {
		t.Fatalf("DeviceName = %q, want My Cane", issued.DeviceName)
	}

	msg := f.mailer.last(t)
	if msg.To != "alice@example.com" {
		t.Fatalf("OTP mailed to %q, want account email", msg.To)
	}
	otp := otpFromMail(t, msg)

	deviceName, err := f.engine.CompleteDeviceUnlink(ctx, sess, otp)
	if err != nil {
		t.Fatalf("CompleteDeviceUnlink failed: %v", err)
	}
	if deviceName != "My Cane" {
		t.Fatalf("deviceName = %q", deviceName)
	}

	device, _ := f.devices.GetDevice(ctx, "12345")
	if device.Status != DeviceUnlinked {
		t.Fatalf("device status = %q, want unlinked", device.Status)
	}
	if _, err := f.devices.GetLinkForUser(ctx, link.LinkedDeviceID, sess.Principal.UserID); !errors.Is(err, ErrLinkNotFound) {
		t.Fatal("link still active after unlink")
	}
	if sess.Challenge(session.PurposeUnlinkDevice) != nil {
		t.Fatal("challenge not consumed")
	}

	// Unlinked devices can never come back.
	if _, err := f.engine.LinkDevice(ctx, sess, "12345", "My Cane Again"); !errors.Is(err, ErrDeviceUnlinked) {
		t.Fatalf("relink got %v, want ErrDeviceUnlinked", err)
	}
}

func TestDeviceUnlinkReasonTooShort(t *testing.T) {
	f := newTestEngine(t)
	sess, link := linkTestDevice(t, f, "12345")

	_, err := f.engine.StartDeviceUnlink(context.Background(), sess, link.LinkedDeviceID, "bad")
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("got %v, want ValidationError", err)
	}
}

func TestDeviceUnlinkOtherUsersDevice(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	_, link := linkTestDevice(t, f, "12345")

	intruder := f.seedUser(t, "mallory", "mallory@example.com", "09876543210", "password123", UserTypeUser)
	sess := &session.Session{SID: "s2"}
	sess.SetPrincipal(&session.Principal{
		UserID: intruder.UserID, Email: intruder.Email, UserType: string(intruder.UserType),
	})

	if _, err := f.engine.StartDeviceUnlink(ctx, sess, link.LinkedDeviceID, "not my device really"); !errors.Is(err, ErrLinkNotFound) {
		t.Fatalf("got %v, want ErrLinkNotFound", err)
	}
}

func TestDeviceUnlinkResend(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	sess, link := linkTestDevice(t, f, "12345")

	if _, err := f.engine.StartDeviceUnlink(ctx, sess, link.LinkedDeviceID, "device was stolen"); err != nil {
		t.Fatalf("StartDeviceUnlink failed: %v", err)
	}

	var cooldown *CooldownError
	if _, err := f.engine.ResendUnlinkOTP(ctx, sess); !errors.As(err, &cooldown) {
		t.Fatalf("got %v, want CooldownError", err)
	}

	f.clock.Advance(time.Minute + time.Second)
	issued, err := f.engine.ResendUnlinkOTP(ctx, sess)
	if err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if issued.DeviceName != "My Cane" {
		t.Fatalf("DeviceName = %q", issued.DeviceName)
	}
	otp := otpFromMail(t, f.mailer.last(t))
	if _, err := f.engine.CompleteDeviceUnlink(ctx, sess, otp); err != nil {
		t.Fatalf("CompleteDeviceUnlink failed: %v", err)
	}
}

func TestDeviceUnlinkRequiresAuth(t *testing.T) {
	f := newTestEngine(t)
	sess := &session.Session{SID: "anon"}

	if _, err := f.engine.StartDeviceUnlink(context.Background(), sess, 1, "some good reason"); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("got %v, want ErrAuthRequired", err)
	}
	if _, err := f.engine.ResendUnlinkOTP(context.Background(), sess); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("got %v, want ErrAuthRequired", err)
	}
}

func TestDeviceUnlinkNotification(t *testing.T) {
	f := newTestEngine(t)
	ctx := context.Background()
	sess, link := linkTestDevice(t, f, "12345")

	if _, err := f.engine.StartDeviceUnlink(ctx, sess, link.LinkedDeviceID, "device was stolen"); err != nil {
		t.Fatalf("StartDeviceUnlink failed: %v", err)
	}
	otp := otpFromMail(t, f.mailer.last(t))
	if _, err := f.engine.CompleteDeviceUnlink(ctx, sess, otp); err != nil {
		t.Fatalf("CompleteDeviceUnlink failed: %v", err)
	}

	f.engine.Close()
	notes, _ := f.notifications.ListForUser(ctx, sess.Principal.UserID)
	found := false
	for _, n := range notes {
		if strings.Contains(n.Message, "unlinked") && n.Kind == "device_status" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no unlink notification in %+v", notes)
	}
}
