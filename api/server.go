// Package api maps HTTP requests onto the pathpal engine: routing, the
// middleware chains, JSON envelopes, and the error-to-status mapping.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pathpal/pathpal"
	"github.com/pathpal/pathpal/internal/rate"
	"github.com/pathpal/pathpal/middleware"
	"github.com/pathpal/pathpal/session"
)

// Limiters holds the four rate tiers. Elevated shares the general tier's
// counter space with a higher cap, so admin traffic is measured on the
// same meter.
type Limiters struct {
	General   *rate.Limiter
	Elevated  *rate.Limiter
	Login     *rate.Limiter
	OtherAuth *rate.Limiter
}

// NewLimiters builds the tiers from config and starts their sweepers.
func NewLimiters(cfg pathpal.RateLimitConfig) *Limiters {
	general := rate.NewLimiter(rate.Config{Max: cfg.General.Max, Window: cfg.General.Window})
	l := &Limiters{
		General:   general,
		Elevated:  rate.NewSharedLimiter(general, rate.Config{Max: cfg.Elevated.Max, Window: cfg.Elevated.Window}),
		Login:     rate.NewLockoutLimiter(rate.Config{Max: cfg.Login.Max, Window: cfg.Login.Window}),
		OtherAuth: rate.NewLimiter(rate.Config{Max: cfg.OtherAuth.Max, Window: cfg.OtherAuth.Window}),
	}
	l.General.StartSweeper()
	l.Login.StartSweeper()
	l.OtherAuth.StartSweeper()
	return l
}

// Close stops the tier sweepers.
func (l *Limiters) Close() {
	l.General.Close()
	l.Login.Close()
	l.OtherAuth.Close()
}

// Server is the HTTP surface over one engine instance.
type Server struct {
	engine   *pathpal.Engine
	sessions *session.Manager
	guard    *pathpal.CSRFGuard
	limiters *Limiters
	metrics  *pathpal.Metrics
	logger   *slog.Logger
}

// NewServer wires the HTTP surface. All collaborators are required.
func NewServer(engine *pathpal.Engine, sessions *session.Manager, guard *pathpal.CSRFGuard, limiters *Limiters, metrics *pathpal.Metrics, logger *slog.Logger) *Server {
	return &Server{
		engine:   engine,
		sessions: sessions,
		guard:    guard,
		limiters: limiters,
		metrics:  metrics,
		logger:   logger,
	}
}

// Router builds the route tree. Chain order per group: client IP, input
// sanitization, rate tier, session, CSRF issue, CSRF validate, then role
// checks.
func (s *Server) Router() http.Handler {
	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	root.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)

	api := root.PathPrefix("/api").Subrouter()
	api.Use(middleware.RealIP, middleware.Sanitize)

	loadSession := middleware.LoadSession(s.sessions, s.logger)
	issueCSRF := middleware.IssueCSRF(s.guard, s.metrics)
	validateCSRF := middleware.ValidateCSRF(s.guard, s.metrics)
	generalLimit := middleware.RateLimit(s.limiters.General, "Too many requests")
	elevatedLimit := middleware.RateLimit(s.limiters.Elevated, "Too many requests")
	loginLimit := middleware.RateLimit(s.limiters.Login, "Too many login attempts")
	authLimit := middleware.RateLimit(s.limiters.OtherAuth, "Too many requests")

	auth := api.PathPrefix("/auth").Subrouter()
	auth.Use(loadSession, issueCSRF)
	auth.Handle("/login", loginLimit(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	auth.Handle("/register", authLimit(http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	auth.Handle("/register-resend", authLimit(http.HandlerFunc(s.handleRegisterResend))).Methods(http.MethodPost)
	auth.Handle("/register-complete", authLimit(http.HandlerFunc(s.handleRegisterComplete))).Methods(http.MethodPost)
	auth.Handle("/forgot-password", authLimit(http.HandlerFunc(s.handleForgotPassword))).Methods(http.MethodPost)
	auth.Handle("/forgot-password-resend", authLimit(http.HandlerFunc(s.handleForgotPasswordResend))).Methods(http.MethodPost)
	auth.Handle("/verify-otp", authLimit(http.HandlerFunc(s.handleVerifyResetOTP))).Methods(http.MethodPost)
	auth.Handle("/reset-password", authLimit(http.HandlerFunc(s.handleResetPassword))).Methods(http.MethodPost)
	auth.Handle("/logout", authLimit(http.HandlerFunc(s.handleLogout))).Methods(http.MethodPost)

	user := api.PathPrefix("/user").Subrouter()
	user.Use(generalLimit, loadSession, issueCSRF, validateCSRF, middleware.RequireAuth)
	user.HandleFunc("/csrf-token", s.handleCSRFToken).Methods(http.MethodGet)
	user.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	user.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPut)
	user.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
	user.HandleFunc("/notifications/{notificationId}/read", s.handleMarkNotificationRead).Methods(http.MethodPut)

	devices := api.PathPrefix("/devices").Subrouter()
	devices.Use(generalLimit, loadSession, issueCSRF, validateCSRF, middleware.RequireAuth)
	devices.HandleFunc("/csrf-token", s.handleCSRFToken).Methods(http.MethodGet)
	devices.HandleFunc("/check-link/{serialNumber}", s.handleCheckDeviceLink).Methods(http.MethodGet)
	devices.HandleFunc("", s.handleListDevices).Methods(http.MethodGet)
	devices.HandleFunc("", s.handleLinkDevice).Methods(http.MethodPost)
	devices.HandleFunc("/unlink-request/{deviceId}", s.handleUnlinkRequest).Methods(http.MethodPost)
	devices.HandleFunc("/unlink-resend", s.handleUnlinkResend).Methods(http.MethodPost)
	devices.HandleFunc("/unlink-verify", s.handleUnlinkVerify).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(elevatedLimit, loadSession, issueCSRF, validateCSRF, middleware.RequireAdmin)
	admin.HandleFunc("/csrf-token", s.handleCSRFToken).Methods(http.MethodGet)
	admin.HandleFunc("/add-device", s.handleAddDevice).Methods(http.MethodPost)
	admin.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	support := api.PathPrefix("/support").Subrouter()
	support.Use(generalLimit, loadSession)
	support.HandleFunc("", s.handleSupport).Methods(http.MethodPost)

	return root
}
