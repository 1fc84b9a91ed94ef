package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pathpal/pathpal"
	"github.com/pathpal/pathpal/middleware"
)

// handleCSRFToken mints a token on demand for clients that missed the
// response-header refresh. Shared by the user, devices, and admin groups.
func (s *Server) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	token, err := s.guard.Issue(r.Context(), sess.Principal.UserID)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "Failed to generate CSRF token")
		return
	}
	s.metrics.Inc(pathpal.MetricCSRFIssued)
	s.ok(w, "", envelope{"token": token})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	user, err := s.engine.Profile(r.Context(), sess)
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.ok(w, "", envelope{"user": profilePayload(user)})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	user, err := s.engine.UpdateProfile(r.Context(), sess, pathpal.ProfileUpdate{
		Username: body.Username,
		Email:    body.Email,
		Phone:    body.Phone,
	})
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.ok(w, "Profile updated successfully.", envelope{"user": profilePayload(user)})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	rows, err := s.engine.ListNotifications(r.Context(), sess)
	if err != nil {
		s.engineError(w, err)
		return
	}

	notifications := make([]envelope, 0, len(rows))
	for _, n := range rows {
		notifications = append(notifications, envelope{
			"notification_id": n.NotificationID,
			"message":         n.Message,
			"type":            n.Kind,
			"is_read":         n.IsRead,
			"created_at":      n.CreatedAt,
		})
	}
	s.ok(w, "", envelope{"notifications": notifications})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["notificationId"], 10, 64)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid notification id")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	if err := s.engine.MarkNotificationRead(r.Context(), sess, id); err != nil {
		s.engineError(w, err)
		return
	}
	s.ok(w, "Notification marked as read.", nil)
}

func (s *Server) handleSupport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "All fields are required.")
		return
	}

	if err := s.engine.SendSupportMessage(r.Context(), body.Name, body.Email, body.Message); err != nil {
		s.engineError(w, err)
		return
	}
	s.ok(w, "", nil)
}

func profilePayload(user *pathpal.UserRecord) envelope {
	return envelope{
		"user_id":    user.UserID,
		"username":   user.Username,
		"email":      user.Email,
		"phone":      user.Phone,
		"user_type":  user.UserType,
		"created_at": user.CreatedAt,
	}
}
