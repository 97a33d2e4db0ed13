package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/model"
)

func createTestUser(t *testing.T, db *DB, spotifyID string) *model.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), model.NewUser{
		SpotifyID:    spotifyID,
		Email:        spotifyID + "@example.com",
		DisplayName:  "Test " + spotifyID,
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    1700000000,
	})
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }

// =========================================================================
// CREATE
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	u := createTestUser(t, db, "spotify-1")

	if u.ID == 0 {
		t.Error("CreateUser() did not assign an ID")
	}
	if u.SpotifyID != "spotify-1" {
		t.Errorf("SpotifyID = %q, want %q", u.SpotifyID, "spotify-1")
	}
	if u.Email != "spotify-1@example.com" {
		t.Errorf("Email = %q", u.Email)
	}
	if u.PhotoURL != "" {
		t.Errorf("PhotoURL = %q, want empty", u.PhotoURL)
	}
	if u.ExpiresAt != 1700000000 {
		t.Errorf("ExpiresAt = %d, want 1700000000", u.ExpiresAt)
	}
}

func TestCreateUser_DistinctIDs(t *testing.T) {
	db := newTestDB(t)

	a := createTestUser(t, db, "a")
	b := createTestUser(t, db, "b")

	if a.ID == b.ID {
		t.Errorf("two users share ID %d", a.ID)
	}
}

func TestCreateUser_DuplicateSpotifyID(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "dup")

	_, err := db.CreateUser(context.Background(), model.NewUser{SpotifyID: "dup"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestCreateUser_MissingSpotifyID(t *testing.T) {
	db := newTestDB(t)

	_, err := db.CreateUser(context.Background(), model.NewUser{Email: "x@example.com"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

// =========================================================================
// GET
// =========================================================================

func TestGetUser(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "spotify-1")

	got, err := db.GetUser(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if *got != *created {
		t.Errorf("GetUser() = %+v, want %+v", got, created)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUser(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserBySpotifyID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "spotify-1")
	createTestUser(t, db, "spotify-2")

	got, err := db.GetUserBySpotifyID(context.Background(), "spotify-1")
	if err != nil {
		t.Fatalf("GetUserBySpotifyID() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %d, want %d", got.ID, created.ID)
	}
}

func TestGetUserBySpotifyID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserBySpotifyID(context.Background(), "nobody")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdateUser_Partial(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "spotify-1")

	exp := int64(1800000000)
	got, err := db.UpdateUser(context.Background(), created.ID, model.UserUpdate{
		AccessToken: strPtr("new-access"),
		ExpiresAt:   &exp,
	})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	if got.AccessToken != "new-access" {
		t.Errorf("AccessToken = %q, want new-access", got.AccessToken)
	}
	if got.ExpiresAt != exp {
		t.Errorf("ExpiresAt = %d, want %d", got.ExpiresAt, exp)
	}
	// Untouched fields keep their values.
	if got.RefreshToken != "refresh" {
		t.Errorf("RefreshToken = %q, want refresh", got.RefreshToken)
	}
	if got.Email != created.Email || got.DisplayName != created.DisplayName {
		t.Errorf("profile changed: %+v", got)
	}
	if got.SpotifyID != created.SpotifyID || got.ID != created.ID {
		t.Errorf("identity changed: %+v", got)
	}
}

func TestUpdateUser_EmptyUpdateIsNoop(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "spotify-1")

	got, err := db.UpdateUser(context.Background(), created.ID, model.UserUpdate{})
	if err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	if *got != *created {
		t.Errorf("UpdateUser() = %+v, want %+v", got, created)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.UpdateUser(context.Background(), 42, model.UserUpdate{Email: strPtr("x@example.com")})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
