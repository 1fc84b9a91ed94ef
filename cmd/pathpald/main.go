// Command pathpald runs the PathPal backend API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/pathpal/pathpal"
	"github.com/pathpal/pathpal/api"
	"github.com/pathpal/pathpal/logging"
	"github.com/pathpal/pathpal/mail"
	"github.com/pathpal/pathpal/session"
	"github.com/pathpal/pathpal/store/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pathpald:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := pathpal.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	db, err := sqlite.Open(sqlite.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
	}

	var sessionStore session.Store
	var csrfStore pathpal.CSRFStore
	if redisClient != nil {
		sessionStore = session.NewRedisStore(redisClient, "sess", cfg.Session.TTL)
		csrfStore = pathpal.NewRedisCSRFStore(redisClient, cfg.CSRF.Validity)
		logger.Info("shared stores on redis", "addr", cfg.Redis.Addr)
	} else {
		sessionStore = session.NewMemoryStore(cfg.Session.TTL)
		csrfStore = pathpal.NewMemoryCSRFStore(cfg.CSRF.Validity)
		logger.Info("shared stores in process memory")
	}
	defer sessionStore.Close()
	defer csrfStore.Close()

	var mailer mail.Mailer
	if cfg.Email.Host != "" {
		mailer, err = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn("smtp unconfigured, mail goes to the log")
		mailer = &mail.LogMailer{Logger: logger}
	}

	metrics := pathpal.NewMetrics()
	engine, err := pathpal.New().
		WithConfig(cfg).
		WithStores(db.Users(), db.Devices(), db.Notifications(), db.PasswordResets()).
		WithMailer(mailer).
		WithMetrics(metrics).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	sessions := session.NewManager(sessionStore, cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure)
	guard := pathpal.NewCSRFGuard(csrfStore, cfg.CSRF.Validity)
	limiters := api.NewLimiters(cfg.RateLimit)
	defer limiters.Close()

	server := api.NewServer(engine, sessions, guard, limiters, metrics, logger)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{cfg.Server.CORSOrigin}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-CSRF-Token"}),
		handlers.ExposedHeaders([]string{"X-CSRF-Token"}),
		handlers.AllowCredentials(),
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      cors(handlers.LoggingHandler(os.Stdout, server.Router())),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
