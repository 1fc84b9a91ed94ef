package api

import (
	"errors"
	"net/http"

	"github.com/pathpal/pathpal"
	"github.com/pathpal/pathpal/middleware"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "All fields are required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	issued, err := s.engine.StartRegistration(r.Context(), sess, pathpal.RegistrationInput{
		Username: body.Username,
		Email:    body.Email,
		Phone:    body.Phone,
		Password: body.Password,
	})
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.ok(w, "OTP sent to your email.", envelope{"resendSeconds": issued.ResendSeconds})
}

func (s *Server) handleRegisterResend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Email is required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	issued, err := s.engine.ResendRegistrationOTP(r.Context(), sess, body.Email)
	if err != nil {
		if errors.Is(err, pathpal.ErrNoPendingChallenge) {
			s.fail(w, http.StatusBadRequest, "No pending registration for this email.")
			return
		}
		s.engineError(w, err)
		return
	}
	s.ok(w, "OTP resent.", envelope{"resendSeconds": issued.ResendSeconds})
}

func (s *Server) handleRegisterComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	if _, err := s.engine.CompleteRegistration(r.Context(), sess, body.Email, body.OTP); err != nil {
		if errors.Is(err, pathpal.ErrNoPendingChallenge) {
			s.fail(w, http.StatusBadRequest, "No pending registration for this email.")
			return
		}
		s.engineError(w, err)
		return
	}
	s.ok(w, "Registration successful.", nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	user, err := s.engine.Login(r.Context(), sess, body.Email, body.Password)
	if err != nil {
		s.engineError(w, err)
		return
	}

	s.ok(w, "Login successful", envelope{
		"user": envelope{
			"user_id":   user.UserID,
			"username":  user.Username,
			"email":     user.Email,
			"phone":     user.Phone,
			"user_type": user.UserType,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	s.engine.Logout(sess)
	if err := s.sessions.Destroy(r.Context(), w, sess); err != nil {
		s.fail(w, http.StatusInternalServerError, "Logout failed")
		return
	}
	s.ok(w, "Logout successful", nil)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Email is required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	issued, err := s.engine.StartPasswordReset(r.Context(), sess, body.Email)
	if err != nil {
		s.engineError(w, err)
		return
	}
	// Same body whether or not the account exists.
	s.ok(w, "If the email exists, an OTP has been sent.", envelope{"resendSeconds": issued.ResendSeconds})
}

func (s *Server) handleForgotPasswordResend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Email is required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	issued, err := s.engine.ResendPasswordResetOTP(r.Context(), sess, body.Email)
	if err != nil {
		if errors.Is(err, pathpal.ErrNoPendingChallenge) {
			s.fail(w, http.StatusBadRequest, "No pending password reset for this email.")
			return
		}
		s.engineError(w, err)
		return
	}
	s.ok(w, "OTP resent.", envelope{"resendSeconds": issued.ResendSeconds})
}

func (s *Server) handleVerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Email and OTP are required")
		return
	}

	if err := s.engine.VerifyResetOTP(r.Context(), body.Email, body.OTP); err != nil {
		s.engineError(w, err)
		return
	}
	s.ok(w, "OTP verified.", nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Email, OTP, and new password are required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	if err := s.engine.CompletePasswordReset(r.Context(), sess, body.Email, body.OTP, body.NewPassword); err != nil {
		s.engineError(w, err)
		return
	}
	s.ok(w, "Password has been reset successfully.", nil)
}
