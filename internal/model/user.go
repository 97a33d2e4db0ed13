// Package model defines the data structures used throughout the application.
package model

// User represents a Wrapify account backed by a Spotify identity.
//
// Spotify is the only identity provider, so SpotifyID is the external key:
// it is UNIQUE in the database and every login looks the user up by it. The
// internal ID is a database-assigned integer that never changes across logins.
//
// PROFILE FIELDS:
// Email, DisplayName and PhotoURL come from the Spotify profile and may be
// empty (Spotify hides the email unless the user-read-email scope is granted,
// and many accounts have no profile picture). They are stored as NULL when empty.
//
// CREDENTIALS:
// AccessToken and RefreshToken are sealed before they reach storage (see
// auth.TokenSealer) and are never serialized to JSON. ExpiresAt is the access
// token expiry in seconds since the Unix epoch.
type User struct {
	ID           int64  `json:"id"`
	SpotifyID    string `json:"spotifyId"`
	Email        string `json:"email,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	PhotoURL     string `json:"photoUrl,omitempty"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}

// NewUser holds the fields accepted by UserRepository.CreateUser.
// ID is never accepted from callers.
type NewUser struct {
	SpotifyID    string
	Email        string
	DisplayName  string
	PhotoURL     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// UserUpdate is a partial update. Nil fields are left untouched; non-nil
// fields overwrite the stored value (including with the empty string).
type UserUpdate struct {
	Email        *string
	DisplayName  *string
	PhotoURL     *string
	AccessToken  *string
	RefreshToken *string
	ExpiresAt    *int64
}

// Validate checks the fields required to create a user.
func (n NewUser) Validate() error {
	if n.SpotifyID == "" {
		return errSpotifyIDRequired
	}
	return nil
}
