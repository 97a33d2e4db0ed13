package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, spotify_id, COALESCE(email, ''), COALESCE(display_name, ''),
	COALESCE(photo_url, ''), COALESCE(access_token, ''), COALESCE(refresh_token, ''),
	COALESCE(expires_at, 0)`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.SpotifyID, &u.Email, &u.DisplayName, &u.PhotoURL,
		&u.AccessToken, &u.RefreshToken, &u.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %d: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetUserBySpotifyID(ctx context.Context, spotifyID string) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE spotify_id = $1`, spotifyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", spotifyID)
		}
		return nil, fmt.Errorf("postgres: getting user by spotify_id %s: %w", spotifyID, err)
	}
	return u, nil
}

// CreateUser inserts a user; a duplicate spotify_id yields apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	if err := nu.Validate(); err != nil {
		return nil, err
	}

	u, err := scanUser(db.pool.QueryRow(ctx,
		`INSERT INTO users (spotify_id, email, display_name, photo_url, access_token, refresh_token, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
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
		return nil, fmt.Errorf("postgres: inserting user (spotifyID=%s): %w", nu.SpotifyID, err)
	}
	return u, nil
}

// UpdateUser merges the non-nil fields of upd into user id.
func (db *DB) UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	u, err := scanUser(db.pool.QueryRow(ctx,
		`UPDATE users SET
			email         = COALESCE($1, email),
			display_name  = COALESCE($2, display_name),
			photo_url     = COALESCE($3, photo_url),
			access_token  = COALESCE($4, access_token),
			refresh_token = COALESCE($5, refresh_token),
			expires_at    = COALESCE($6, expires_at)
		 WHERE id = $7
		 RETURNING `+userColumns,
		upd.Email, upd.DisplayName, upd.PhotoURL,
		upd.AccessToken, upd.RefreshToken, upd.ExpiresAt,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: updating user %d: %w", id, err)
	}
	return u, nil
}
