// Package sqlite implements the pathpal store interfaces over a local
// SQLite database. One writer, WAL mode, embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	dirPermissions  = 0o750
	filePermissions = 0o600

	connectTimeout = 5 * time.Second
)

// Config contains SQLite connection options.
type Config struct {
	// Path is the database file. Use ":memory:" for tests.
	Path string

	// WALMode enables write-ahead logging so reads proceed during writes.
	WALMode bool

	// BusyTimeout is the lock wait in seconds.
	BusyTimeout int
}

// DB wraps the connection and hands out the store implementations.
type DB struct {
	*sql.DB
	path string
}

// Open connects, applies pragmas, runs pending migrations, and verifies
// the connection.
func Open(cfg Config) (*DB, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode && cfg.Path != ":memory:" {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite supports one writer; a single connection avoids lock churn.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if cfg.Path != ":memory:" {
		_ = os.Chmod(cfg.Path, filePermissions)
	}
	return db, nil
}

// Users returns the users table accessor.
func (db *DB) Users() *UserStore { return &UserStore{db: db.DB} }

// Devices returns the devices and linked_devices accessor.
func (db *DB) Devices() *DeviceStore { return &DeviceStore{db: db.DB} }

// Notifications returns the notifications table accessor.
func (db *DB) Notifications() *NotificationStore { return &NotificationStore{db: db.DB} }

// PasswordResets returns the password_resets table accessor.
func (db *DB) PasswordResets() *PasswordResetStore { return &PasswordResetStore{db: db.DB} }

// migrate applies embedded migration files in filename order, each in its
// own transaction, recording applied versions in schema_migrations.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, name).Scan(&applied)
		if err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}

		script, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("starting migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(script)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES (?)`, name); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}
	return nil
}
