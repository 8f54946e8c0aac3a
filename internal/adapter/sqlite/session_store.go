// Package sqlite persists the console session in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"storeadmin/internal/domain"
)

// SessionStore implements domain.SessionPersister using SQLite. It holds at
// most one session.
type SessionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.SessionPersister = (*SessionStore)(nil)

// Open opens (or creates) the database at path and migrates it.
// Use ":memory:" in tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SessionStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS auth_session (
		slot          INTEGER PRIMARY KEY CHECK (slot = 1),
		subject       TEXT NOT NULL,
		email         TEXT NOT NULL DEFAULT '',
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at    INTEGER NOT NULL DEFAULT 0,
		issued_at     INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SessionStore{db: db, logger: logger.With("component", "session-store")}, nil
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Load returns the stored session or nil.
func (s *SessionStore) Load(ctx context.Context) (*domain.Session, error) {
	var (
		sess            domain.Session
		expires, issued int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT subject, email, access_token, refresh_token, expires_at, issued_at FROM auth_session WHERE slot = 1",
	).Scan(&sess.Subject, &sess.Email, &sess.AccessToken, &sess.RefreshToken, &expires, &issued)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.ExpiresAt = fromUnix(expires)
	sess.IssuedAt = fromUnix(issued)
	return &sess, nil
}

// Save replaces the stored session.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	s.logger.Debug("sql", "op", "upsert", "table", "auth_session", "subject", sess.Subject)
	_, err := s.db.ExecContext(ctx, `INSERT INTO auth_session (slot, subject, email, access_token, refresh_token, expires_at, issued_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET subject=excluded.subject, email=excluded.email,
			access_token=excluded.access_token, refresh_token=excluded.refresh_token,
			expires_at=excluded.expires_at, issued_at=excluded.issued_at`,
		sess.Subject, sess.Email, sess.AccessToken, sess.RefreshToken, toUnix(sess.ExpiresAt), toUnix(sess.IssuedAt))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear removes the stored session.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.logger.Debug("sql", "op", "delete", "table", "auth_session")
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_session"); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}
