package api

import (
	"net/http"

	"github.com/pathpal/pathpal/middleware"
)

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SerialNumber string `json:"serialNumber"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Serial number is required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	device, err := s.engine.AddDevice(r.Context(), sess, body.SerialNumber)
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, envelope{
		"success": true,
		"message": "Device added successfully",
		"device": envelope{
			"serial_number": device.SerialNumber,
			"status":        device.Status,
			"created_at":    device.CreatedAt,
		},
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	users, err := s.engine.ListUsers(r.Context(), sess)
	if err != nil {
		s.engineError(w, err)
		return
	}

	out := make([]envelope, 0, len(users))
	for _, u := range users {
		out = append(out, envelope{
			"user_id":    u.UserID,
			"username":   u.Username,
			"email":      u.Email,
			"phone":      u.Phone,
			"user_type":  u.UserType,
			"created_at": u.CreatedAt,
		})
	}
	s.ok(w, "", envelope{"users": out})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := s.metrics.Snapshot()
	snapshot["notifications_dropped"] = s.engine.NotificationsDropped()
	s.ok(w, "", envelope{"metrics": snapshot})
}
