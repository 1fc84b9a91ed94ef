package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pathpal/pathpal"
	"github.com/pathpal/pathpal/middleware"
)

// handleCheckDeviceLink reports availability as a 200 in every outcome;
// the flags tell the link form what to render.
func (s *Server) handleCheckDeviceLink(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	availability, err := s.engine.CheckDeviceLink(r.Context(), sess, mux.Vars(r)["serialNumber"])
	if err != nil {
		switch {
		case errors.Is(err, pathpal.ErrDeviceNotFound):
			s.respond(w, http.StatusOK, envelope{
				"success": false, "message": "Device does not exist in the system",
				"isLinked": false, "canLink": false,
			})
		case errors.Is(err, pathpal.ErrDeviceUnlinked):
			s.respond(w, http.StatusOK, envelope{
				"success": false, "message": "This device has been unlinked and cannot be linked again",
				"isLinked": false, "canLink": false,
			})
		case errors.Is(err, pathpal.ErrDeviceAlreadyLinked):
			s.respond(w, http.StatusOK, envelope{
				"success": false, "message": "Device is already linked to another user",
				"isLinked": true, "canLink": false,
				"linkedToSelf": availability != nil && availability.LinkedToCaller,
			})
		default:
			s.engineError(w, err)
		}
		return
	}

	s.respond(w, http.StatusOK, envelope{
		"success": true, "message": "Device exists and can be linked",
		"isLinked": false, "canLink": true,
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	links, err := s.engine.ListDevices(r.Context(), sess)
	if err != nil {
		s.engineError(w, err)
		return
	}

	devices := make([]envelope, 0, len(links))
	for _, l := range links {
		devices = append(devices, envelope{
			"device_id":     l.LinkedDeviceID,
			"serial_number": l.SerialNumber,
			"device_name":   l.DeviceName,
			"linked_at":     l.LinkedAt,
		})
	}
	s.ok(w, "", envelope{"devices": devices})
}

func (s *Server) handleLinkDevice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DeviceSerial string `json:"deviceSerial"`
		DeviceName   string `json:"deviceName"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "All fields are required")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	if _, err := s.engine.LinkDevice(r.Context(), sess, body.DeviceSerial, body.DeviceName); err != nil {
		s.engineError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, envelope{"success": true, "message": "Device linked successfully"})
}

func (s *Server) handleUnlinkRequest(w http.ResponseWriter, r *http.Request) {
	deviceID, err := strconv.ParseInt(mux.Vars(r)["deviceId"], 10, 64)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid device id")
		return
	}

	var body struct {
		UnlinkReason string `json:"unlinkReason"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "Please provide a reason for unlinking (at least 5 characters)")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	issued, err := s.engine.StartDeviceUnlink(r.Context(), sess, deviceID, body.UnlinkReason)
	if err != nil {
		s.engineError(w, err)
		return
	}
	s.ok(w, "OTP sent to your email.", envelope{
		"resendSeconds": issued.ResendSeconds,
		"deviceName":    issued.DeviceName,
	})
}

func (s *Server) handleUnlinkResend(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.SessionFromContext(r.Context())
	issued, err := s.engine.ResendUnlinkOTP(r.Context(), sess)
	if err != nil {
		if errors.Is(err, pathpal.ErrNoPendingChallenge) {
			s.fail(w, http.StatusBadRequest, "No pending unlink request for this device.")
			return
		}
		s.engineError(w, err)
		return
	}
	s.ok(w, "OTP resent.", envelope{
		"resendSeconds": issued.ResendSeconds,
		"deviceName":    issued.DeviceName,
	})
}

func (s *Server) handleUnlinkVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OTP string `json:"otp"`
	}
	if err := s.decode(r, &body); err != nil {
		s.fail(w, http.StatusBadRequest, "OTP is required.")
		return
	}

	sess, _ := middleware.SessionFromContext(r.Context())
	deviceName, err := s.engine.CompleteDeviceUnlink(r.Context(), sess, body.OTP)
	if err != nil {
		if errors.Is(err, pathpal.ErrNoPendingChallenge) {
			s.fail(w, http.StatusBadRequest, "No pending unlink request for this device.")
			return
		}
		s.engineError(w, err)
		return
	}
	s.ok(w, fmt.Sprintf("Device %q has been successfully unlinked.", deviceName),
		envelope{"deviceName": deviceName})
}
