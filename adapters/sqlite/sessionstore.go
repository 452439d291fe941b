package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/DromeProduto/DromeBoard/domain/auth"
	"github.com/DromeProduto/DromeBoard/ports"
)

// SessionStore implements ports.SessionStore using SQLite.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a new SQLite session store.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, session auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, email, ip_address, user_agent, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, session.ID, session.UserID, session.Email, nullString(session.IPAddress),
		nullString(session.UserAgent), session.ExpiresAt, session.CreatedAt)
	if isForeignKeyError(err) {
		return ErrNotFound
	}
	return err
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (auth.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, email, ip_address, user_agent, expires_at, created_at
		FROM sessions
		WHERE id = ?
	`, id)
	return scanSession(row)
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}

// DeleteExpired removes every session that expired before now.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (auth.Session, error) {
	var sess auth.Session
	var ipAddress, userAgent sql.NullString

	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Email, &ipAddress, &userAgent,
		&sess.ExpiresAt, &sess.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Session{}, ErrNotFound
	}
	if err != nil {
		return auth.Session{}, err
	}

	sess.IPAddress = ipAddress.String
	sess.UserAgent = userAgent.String
	return sess, nil
}

// Ensure interface compliance.
var _ ports.SessionStore = (*SessionStore)(nil)
