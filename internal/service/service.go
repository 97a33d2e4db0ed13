// Package service contains the business logic of Wrapify.
//
// LAYERS:
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → login, sessions, stats, wrap generation
//	Repository      → reads/writes the database
//
// TESTABILITY:
// Services depend on interfaces (repository.*, OAuthProvider, SpotifyAPI),
// never on the sqlite/postgres packages or a live Spotify account, so they
// are tested with in-memory fakes.
package service

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/wrapify/wrapify/internal/spotify"
)

// OAuthProvider is the Authorization Code flow. *auth.SpotifyProvider
// implements it.
type OAuthProvider interface {
	AuthURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource
}

// SpotifyAPI is the subset of the Web API the services call.
// *spotify.Client implements it.
type SpotifyAPI interface {
	Me(ctx context.Context, ts oauth2.TokenSource) (*spotify.User, error)
	TopArtists(ctx context.Context, ts oauth2.TokenSource, limit int, tr spotify.TimeRange) ([]spotify.Artist, error)
	TopTracks(ctx context.Context, ts oauth2.TokenSource, limit int, tr spotify.TimeRange) ([]spotify.Track, error)
}
