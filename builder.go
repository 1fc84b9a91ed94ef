package pathpal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pathpal/pathpal/internal/notify"
	"github.com/pathpal/pathpal/mail"
	"github.com/pathpal/pathpal/password"
)

// Builder assembles an Engine from its collaborators. Configure during
// startup, call Build once, and treat the result as immutable.
type Builder struct {
	config Config

	users         UserStore
	devices       DeviceStore
	notifications NotificationStore
	resets        PasswordResetStore

	mailer   mail.Mailer
	argon2   password.Config
	sink     notify.Sink
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
	buffered int

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		argon2: password.DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStores injects the four data-access interfaces. All of them are
// required.
func (b *Builder) WithStores(users UserStore, devices DeviceStore, notifications NotificationStore, resets PasswordResetStore) *Builder {
	b.users = users
	b.devices = devices
	b.notifications = notifications
	b.resets = resets
	return b
}

// WithMailer injects the outbound email transport.
func (b *Builder) WithMailer(m mail.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithPasswordConfig overrides the argon2id cost parameters.
func (b *Builder) WithPasswordConfig(cfg password.Config) *Builder {
	b.argon2 = cfg
	return b
}

// WithNotificationSink overrides the dispatcher sink. The default persists
// events through the notification store.
func (b *Builder) WithNotificationSink(sink notify.Sink) *Builder {
	b.sink = sink
	return b
}

// WithNotificationBuffer sets the dispatcher buffer size.
func (b *Builder) WithNotificationBuffer(n int) *Builder {
	b.buffered = n
	return b
}

// WithMetrics injects a shared metrics instance; nil disables counting.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithLogger injects the structured logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides the engine's time source, used by tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the wiring and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil || b.devices == nil || b.notifications == nil || b.resets == nil {
		return nil, ErrEngineNotReady
	}
	if b.mailer == nil {
		return nil, ErrEngineNotReady
	}

	hasher, err := password.NewArgon2(b.argon2)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	sink := b.sink
	if sink == nil {
		sink = &storeSink{store: b.notifications, logger: logger}
	}

	engine := &Engine{
		cfg:           b.config,
		users:         b.users,
		devices:       b.devices,
		notifications: b.notifications,
		resets:        b.resets,
		mailer:        b.mailer,
		hasher:        hasher,
		dispatcher:    notify.NewDispatcher(notify.Config{BufferSize: b.buffered}, sink),
		metrics:       b.metrics,
		logger:        logger,
		now:           now,
	}

	b.built = true
	return engine, nil
}

// storeSink persists drained notification events as rows.
type storeSink struct {
	store  NotificationStore
	logger *slog.Logger
}

func (s *storeSink) Deliver(ctx context.Context, event notify.Event) {
	var err error
	if event.Broadcast {
		err = s.store.InsertForAdmins(ctx, event.Message, event.Kind)
	} else {
		err = s.store.Insert(ctx, event.UserID, event.Message, event.Kind)
	}
	if err != nil {
		s.logger.Error("notification insert failed", "error", err)
	}
}
