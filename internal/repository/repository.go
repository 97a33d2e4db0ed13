// Package repository declares the storage contracts used by the service layer.
//
// Two implementations exist: repository/postgres (pgx, production) and
// repository/sqlite (modernc.org/sqlite, local development and tests).
//
// ERROR TRANSLATION:
// Both translate driver errors into apperror kinds:
//
//	missing row          → apperror.ErrNotFound
//	duplicate spotify_id → apperror.ErrConflict
//
// Every method is a single statement; there are no cross-entity transactions.
package repository

import (
	"context"
	"io"
	"time"

	"github.com/wrapify/wrapify/internal/model"
)

// UserRepository persists users keyed by internal id and Spotify id.
type UserRepository interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserBySpotifyID(ctx context.Context, spotifyID string) (*model.User, error)
	CreateUser(ctx context.Context, u model.NewUser) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error)
}

// WrapRepository persists wrap snapshots. Wraps are never updated or deleted.
type WrapRepository interface {
	CreateWrap(ctx context.Context, w model.NewWrap) (*model.Wrap, error)
	// GetWrapsByUserID returns the user's wraps newest first
	// (created_at DESC, id DESC). A user without wraps gets an empty slice.
	GetWrapsByUserID(ctx context.Context, userID int64) ([]model.Wrap, error)
}

// SessionRepository stores browser sessions in the same database.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	// GetSession returns apperror.ErrNotFound for unknown or expired sessions.
	GetSession(ctx context.Context, id string) (*model.Session, error)
	TouchSession(ctx context.Context, id string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	// DeleteExpiredSessions removes rows whose expiry is at or before now
	// and reports how many were removed.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is the full storage surface wired into the server.
type Store interface {
	UserRepository
	WrapRepository
	SessionRepository
	// Migrate applies pending schema migrations and reports how many ran.
	Migrate(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	io.Closer
}
