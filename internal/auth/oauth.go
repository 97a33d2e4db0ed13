package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/wrapify/wrapify/internal/spotify"
)

// ErrProviderNotConfigured is returned when SPOTIFY_CLIENT_ID or
// SPOTIFY_CLIENT_SECRET is missing. The server still starts; only the
// login routes fail.
var ErrProviderNotConfigured = errors.New("auth: spotify credentials are not configured")

// SpotifyProvider wraps golang.org/x/oauth2 for the Spotify Authorization
// Code flow.
//
// The code-for-token exchange happens server-to-server with the client
// secret, so Spotify tokens never reach the browser.
type SpotifyProvider struct {
	config *oauth2.Config
}

// NewSpotifyProvider builds a provider. callbackURL must match the redirect
// URI registered in the Spotify dashboard exactly. accountsURL overrides the
// accounts service host ("" for the real one).
func NewSpotifyProvider(clientID, clientSecret, callbackURL, accountsURL string) *SpotifyProvider {
	return &SpotifyProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       spotify.Scopes,
			Endpoint:     spotify.Endpoint(accountsURL),
		},
	}
}

// Configured reports whether both client credentials are present.
func (p *SpotifyProvider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthURL returns the Spotify consent URL carrying state.
// show_dialog is left to Spotify's default, so returning users skip consent.
func (p *SpotifyProvider) AuthURL(state string) (string, error) {
	if !p.Configured() {
		return "", ErrProviderNotConfigured
	}
	return p.config.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for Spotify tokens.
func (p *SpotifyProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if !p.Configured() {
		return nil, ErrProviderNotConfigured
	}
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	return tok, nil
}

// TokenSource returns a source that yields tok until it expires and then
// refreshes it with tok.RefreshToken.
func (p *SpotifyProvider) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return p.config.TokenSource(ctx, tok)
}
