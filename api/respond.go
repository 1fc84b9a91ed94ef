package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pathpal/pathpal"
)

type envelope map[string]any

func (s *Server) respond(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

func (s *Server) ok(w http.ResponseWriter, message string, extra envelope) {
	payload := envelope{"success": true}
	if message != "" {
		payload["message"] = message
	}
	for k, v := range extra {
		payload[k] = v
	}
	s.respond(w, http.StatusOK, payload)
}

func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	s.respond(w, status, envelope{"success": false, "message": message})
}

// decode reads a sanitized JSON body into dst. A malformed body is the
// caller's 400.
func (s *Server) decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// engineError translates the engine's error taxonomy into a response.
// Handlers that need flow-specific wording check their sentinels first and
// fall through here for the rest.
func (s *Server) engineError(w http.ResponseWriter, err error) {
	var validation *pathpal.ValidationError
	if errors.As(err, &validation) {
		s.respond(w, http.StatusBadRequest, envelope{
			"success": false,
			"message": strings.Join(validation.Problems, "; "),
			"errors":  validation.Problems,
		})
		return
	}

	var cooldown *pathpal.CooldownError
	if errors.As(err, &cooldown) {
		s.respond(w, http.StatusTooManyRequests, envelope{
			"success":          false,
			"message":          "Please wait before resending OTP.",
			"secondsRemaining": cooldown.SecondsRemaining,
		})
		return
	}

	switch {
	case errors.Is(err, pathpal.ErrAuthRequired):
		s.fail(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, pathpal.ErrAdminRequired):
		s.fail(w, http.StatusForbidden, "Admin access required")
	case errors.Is(err, pathpal.ErrInvalidCredentials):
		s.fail(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, pathpal.ErrUserNotFound):
		s.fail(w, http.StatusNotFound, "User not found")

	case errors.Is(err, pathpal.ErrOTPRequired):
		s.fail(w, http.StatusBadRequest, "OTP is required.")
	case errors.Is(err, pathpal.ErrOTPExpired):
		s.fail(w, http.StatusBadRequest, "OTP has expired. Please resend.")
	case errors.Is(err, pathpal.ErrOTPInvalid):
		s.fail(w, http.StatusBadRequest, "Invalid OTP. Please try again.")

	case errors.Is(err, pathpal.ErrEmailExists):
		s.fail(w, http.StatusBadRequest, "Email already exists")
	case errors.Is(err, pathpal.ErrUsernameExists):
		s.fail(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, pathpal.ErrPhoneExists):
		s.fail(w, http.StatusBadRequest, "Phone number already exists")

	case errors.Is(err, pathpal.ErrDeviceNotFound):
		s.fail(w, http.StatusBadRequest, "Device does not exist in the system")
	case errors.Is(err, pathpal.ErrDeviceUnlinked):
		s.fail(w, http.StatusBadRequest, "This device has been unlinked and cannot be linked again")
	case errors.Is(err, pathpal.ErrDeviceAlreadyLinked):
		s.fail(w, http.StatusBadRequest, "Device is already linked to another user")
	case errors.Is(err, pathpal.ErrDeviceExists):
		s.fail(w, http.StatusBadRequest, "Device already exists")
	case errors.Is(err, pathpal.ErrLinkNotFound):
		s.fail(w, http.StatusNotFound, "Device not found")
	case errors.Is(err, pathpal.ErrNotificationNotFound):
		s.fail(w, http.StatusNotFound, "Notification not found")

	case errors.Is(err, pathpal.ErrMailUnavailable):
		s.fail(w, http.StatusInternalServerError, "Failed to send email.")

	default:
		s.logger.Error("unhandled engine error", "error", err)
		s.fail(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.fail(w, http.StatusNotFound, "Not found")
}
