package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/wrapify/wrapify/internal/auth"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/repository"
	"github.com/wrapify/wrapify/internal/spotify"
)

// errNoSpotifyToken means the user record carries no Spotify credentials.
// Callers treat it like an upstream refusal: the data is simply empty.
var errNoSpotifyToken = errors.New("service: user has no spotify token")

// Credentials turns a stored user into a Spotify token source.
//
// Tokens are refreshed lazily: the stored expiry is copied into the
// oauth2.Token, and the provider's source refreshes it only when a call is
// made after that instant. Refreshed tokens are sealed and written back with
// UpdateUser so the next request starts from them.
type Credentials struct {
	users    repository.UserRepository
	sealer   *auth.TokenSealer
	provider OAuthProvider
	logger   *slog.Logger
}

func NewCredentials(users repository.UserRepository, sealer *auth.TokenSealer, provider OAuthProvider, logger *slog.Logger) *Credentials {
	return &Credentials{users: users, sealer: sealer, provider: provider, logger: logger}
}

// TokenSource returns a refreshing token source for u. A user whose access
// token has expired and who has no refresh token gets errNoSpotifyToken.
func (c *Credentials) TokenSource(ctx context.Context, u *model.User) (oauth2.TokenSource, error) {
	access, err := c.sealer.Open(u.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("service/credentials: opening access token for user %d: %w", u.ID, err)
	}
	refresh, err := c.sealer.Open(u.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("service/credentials: opening refresh token for user %d: %w", u.ID, err)
	}
	if access == "" && refresh == "" {
		return nil, errNoSpotifyToken
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	}
	if u.ExpiresAt > 0 {
		tok.Expiry = time.Unix(u.ExpiresAt, 0)
	}

	// Without a refresh token nothing can renew an expired access token.
	if refresh == "" {
		if !tok.Valid() {
			return nil, errNoSpotifyToken
		}
		return oauth2.StaticTokenSource(tok), nil
	}

	userID := u.ID
	return spotify.NotifyingTokenSource(c.provider.TokenSource(ctx, tok), tok, func(nt *oauth2.Token) error {
		return c.persist(ctx, userID, nt)
	}), nil
}

func (c *Credentials) persist(ctx context.Context, userID int64, tok *oauth2.Token) error {
	upd, err := sealCredentials(c.sealer, tok)
	if err != nil {
		return err
	}
	if _, err := c.users.UpdateUser(ctx, userID, upd); err != nil {
		return fmt.Errorf("service/credentials: storing refreshed token for user %d: %w", userID, err)
	}
	c.logger.Info("spotify token refreshed", slog.Int64("userID", userID))
	return nil
}

// sealCredentials builds the credential part of a UserUpdate. An empty
// refresh token leaves the stored one in place.
func sealCredentials(sealer *auth.TokenSealer, tok *oauth2.Token) (model.UserUpdate, error) {
	var upd model.UserUpdate

	access, err := sealer.Seal(tok.AccessToken)
	if err != nil {
		return upd, fmt.Errorf("service/credentials: sealing access token: %w", err)
	}
	upd.AccessToken = &access

	if tok.RefreshToken != "" {
		refresh, err := sealer.Seal(tok.RefreshToken)
		if err != nil {
			return upd, fmt.Errorf("service/credentials: sealing refresh token: %w", err)
		}
		upd.RefreshToken = &refresh
	}

	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.Unix()
		upd.ExpiresAt = &exp
	}
	return upd, nil
}

// degraded reports whether err means "Spotify gave us nothing" rather
// than a failure worth a 500.
func degraded(err error) bool {
	return spotify.IsAPIError(err) || errors.Is(err, errNoSpotifyToken)
}
