package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// userColumns is shared by every query that scans a full user row.
// Nullable text columns come back as "" and a missing expiry as 0.
const userColumns = `id, spotify_id, COALESCE(email, ''), COALESCE(display_name, ''),
	COALESCE(photo_url, ''), COALESCE(access_token, ''), COALESCE(refresh_token, ''),
	COALESCE(expires_at, 0)`

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.SpotifyID,
		&u.Email,
		&u.DisplayName,
		&u.PhotoURL,
		&u.AccessToken,
		&u.RefreshToken,
		&u.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return u, nil
}

// GetUserBySpotifyID retrieves a user by their Spotify account ID.
func (db *DB) GetUserBySpotifyID(ctx context.Context, spotifyID string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE spotify_id = ?`, spotifyID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", spotifyID)
		}
		return nil, fmt.Errorf("sqlite: getting user by spotify_id %s: %w", spotifyID, err)
	}
	return u, nil
}

// CreateUser inserts a new user and returns the stored row with its ID.
// A second user with the same Spotify ID yields apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	if err := nu.Validate(); err != nil {
		return nil, err
	}

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`INSERT INTO users (spotify_id, email, display_name, photo_url, access_token, refresh_token, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+userColumns,
		nu.SpotifyID,
		nullString(nu.Email),
		nullString(nu.DisplayName),
		nullString(nu.PhotoURL),
		nullString(nu.AccessToken),
		nullString(nu.RefreshToken),
		nullInt64(nu.ExpiresAt),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("user", nu.SpotifyID)
		}
		return nil, fmt.Errorf("sqlite: inserting user (spotifyID=%s): %w", nu.SpotifyID, err)
	}
	return u, nil
}

// UpdateUser applies the non-nil fields of upd to user id.
//
// COALESCE(?, col) keeps the current value whenever the bound parameter is
// NULL, so a single statement covers every combination of fields.
func (db *DB) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`UPDATE users SET
			email         = COALESCE(?, email),
			display_name  = COALESCE(?, display_name),
			photo_url     = COALESCE(?, photo_url),
			access_token  = COALESCE(?, access_token),
			refresh_token = COALESCE(?, refresh_token),
			expires_at    = COALESCE(?, expires_at)
		 WHERE id = ?
		 RETURNING `+userColumns,
		optString(upd.Email),
		optString(upd.DisplayName),
		optString(upd.PhotoURL),
		optString(upd.AccessToken),
		optString(upd.RefreshToken),
		optInt64(upd.ExpiresAt),
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: updating user %d: %w", id, err)
	}
	return u, nil
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optInt64(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
