package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// CreateSession stores s. CreatedAt is filled in when zero.
func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = db.now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, toNanos(s.ExpiresAt), toNanos(s.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("session", s.ID)
		}
		return fmt.Errorf("sqlite: inserting session: %w", err)
	}
	return nil
}

// GetSession returns the session with the given id.
// Expired rows are reported as not found even before they are pruned.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		s                  model.Session
		expires, createdAt int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ? AND expires_at > ?`,
		id, toNanos(db.now()),
	).Scan(&s.ID, &s.UserID, &expires, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}
	s.ExpiresAt = fromNanos(expires)
	s.CreatedAt = fromNanos(createdAt)
	return &s, nil
}

// TouchSession moves the expiry of session id to expiresAt.
func (db *DB) TouchSession(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE id = ?`, toNanos(expiresAt), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: touching session: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("session", id)
	}
	return nil
}

// DeleteSession removes session id. Deleting an unknown id is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session whose expiry is at or before now.
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, toNanos(now),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: pruning sessions: %w", err)
	}
	return res.RowsAffected()
}
