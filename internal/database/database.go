package database

import (
	"crypto/cipher"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/database/migrations"
	"github.com/consultdesk/bookingagent/internal/logging"
)

// ErrNotFound is returned by lookups that require the row to exist.
var ErrNotFound = errors.New("record not found")

// ErrBookingExists is returned when a conversation already holds a confirmed booking.
var ErrBookingExists = errors.New("conversation already has a confirmed booking")

// IsBookingExists reports whether err is a confirmed-booking uniqueness violation.
func IsBookingExists(err error) bool {
	return errors.Is(err, ErrBookingExists)
}

type DB struct {
	*sql.DB

	// tokens seals OAuth tokens at rest, see UseTokenKey
	tokens cipher.AEAD
}

// New opens the sqlite database at dbPath and applies pending migrations.
func New(dbPath string, logger *zap.Logger) (*DB, error) {
	// Enable WAL mode for better concurrency, busy timeout to wait instead of failing,
	// and foreign keys for referential integrity
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every new connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	applied, err := migrations.RunMigrations(db)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger = logging.OrNop(logger)
	for _, m := range applied {
		logger.Info("Applied migration", zap.Int("version", m.Version), zap.String("name", m.Name))
	}

	return &DB{DB: db}, nil
}

func (d *DB) Close() error {
	return d.DB.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
