package model

import (
	"encoding/json"
	"time"

	"github.com/wrapify/wrapify/internal/apperror"
)

var (
	errSpotifyIDRequired = apperror.ValidationFailed("spotifyId", "spotify id is required")
	errUserIDRequired    = apperror.ValidationFailed("userId", "wrap owner is required")
	errDataRequired      = apperror.ValidationFailed("data", "wrap data is required")
	errDataInvalid       = apperror.ValidationFailed("data", "wrap data must be valid JSON")
)

// Wrap is an immutable snapshot of a user's listening summary.
//
// Data is stored as an opaque JSON document (jsonb on Postgres, TEXT on
// SQLite). The server always writes a WrapData payload, but readers must not
// assume older rows carry every field.
type Wrap struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Data      json.RawMessage `json:"data"`
	ShareURL  *string         `json:"shareUrl"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewWrap holds the fields accepted by WrapRepository.CreateWrap.
// ID and CreatedAt are always assigned by the database.
type NewWrap struct {
	UserID   int64
	Data     json.RawMessage
	ShareURL *string
}

// Validate checks the fields required to create a wrap.
func (n NewWrap) Validate() error {
	if n.UserID == 0 {
		return errUserIDRequired
	}
	if len(n.Data) == 0 {
		return errDataRequired
	}
	if !json.Valid(n.Data) {
		return errDataInvalid
	}
	return nil
}

// WrapData is the payload the wrap generator writes into Wrap.Data.
type WrapData struct {
	Personality   string   `json:"personality"`
	TopGenres     []string `json:"topGenres"`
	TopArtistName string   `json:"topArtistName"`
	GeneratedAt   string   `json:"generatedAt"`
}
