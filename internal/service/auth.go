package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/auth"
	"github.com/wrapify/wrapify/internal/metrics"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/repository"
)

// DefaultSessionTTL is used when AuthDeps.SessionTTL is zero.
const DefaultSessionTTL = 7 * 24 * time.Hour

// StatsInvalidator drops a user's cached stats. *StatsService implements it.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// AuthDeps groups the AuthService collaborators. Stats is optional.
type AuthDeps struct {
	Users      repository.UserRepository
	Sessions   repository.SessionRepository
	Provider   OAuthProvider
	Spotify    SpotifyAPI
	Tokens     *auth.TokenService
	Sealer     *auth.TokenSealer
	Stats      StatsInvalidator
	SessionTTL time.Duration
	Logger     *slog.Logger
}

// AuthService handles login, session resolution and logout.
//
// It never touches HTTP: the handler owns cookies and redirects, this
// service owns users, sessions and tokens.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	provider OAuthProvider
	spotify  SpotifyAPI
	tokens   *auth.TokenService
	sealer   *auth.TokenSealer
	stats    StatsInvalidator
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewAuthService(d AuthDeps) *AuthService {
	ttl := d.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		users:    d.Users,
		sessions: d.Sessions,
		provider: d.Provider,
		spotify:  d.Spotify,
		tokens:   d.Tokens,
		sealer:   d.Sealer,
		stats:    d.Stats,
		ttl:      ttl,
		now:      time.Now,
		logger:   d.Logger,
	}
}

// LoginResult carries what the callback handler needs to set the cookie.
type LoginResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// BeginLogin returns the Spotify consent URL and the state value the
// handler must store in the oauth_state cookie.
func (s *AuthService) BeginLogin() (redirectURL, state string, err error) {
	state = xid.New().String()
	redirectURL, err = s.provider.AuthURL(state)
	if err != nil {
		return "", "", err
	}
	return redirectURL, state, nil
}

// CompleteLogin handles the OAuth callback once the state has been checked:
//
//  1. Exchange the code for Spotify tokens
//  2. Fetch the Spotify profile with those tokens
//  3. Look the user up by Spotify id, then create or update it
//  4. Drop cached stats fetched under the previous tokens
//  5. Store a session and sign it into a cookie token
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (*LoginResult, error) {
	res, err := s.completeLogin(ctx, code)
	if err != nil {
		metrics.RecordLogin("failure")
		return nil, err
	}
	metrics.RecordLogin("success")
	return res, nil
}

func (s *AuthService) completeLogin(ctx context.Context, code string) (*LoginResult, error) {
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	profile, err := s.spotify.Me(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching spotify profile: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("service/auth: spotify returned a profile without an id")
	}

	user, err := s.upsertUser(ctx, profile.ID, profileFields{
		email:       profile.Email,
		displayName: profile.DisplayName,
		photoURL:    profile.PhotoURL(),
	}, tok)
	if err != nil {
		return nil, err
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx, user.ID)
	}

	sess, token, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via Spotify",
		slog.Int64("userID", user.ID),
		slog.String("spotifyID", user.SpotifyID),
	)

	return &LoginResult{User: user, Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

type profileFields struct {
	email, displayName, photoURL string
}

// upsertUser is a lookup followed by create or update, not a native
// upsert, so the internal id never changes across logins. A concurrent
// first login for the same Spotify id loses the insert race with
// ErrConflict and falls through to the update path.
func (s *AuthService) upsertUser(ctx context.Context, spotifyID string, p profileFields, tok *oauth2.Token) (*model.User, error) {
	creds, err := sealCredentials(s.sealer, tok)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserBySpotifyID(ctx, spotifyID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up user (spotifyID=%s): %w", spotifyID, err)
	}

	if existing == nil {
		nu := model.NewUser{
			SpotifyID:   spotifyID,
			Email:       p.email,
			DisplayName: p.displayName,
			PhotoURL:    p.photoURL,
			AccessToken: *creds.AccessToken,
		}
		if creds.RefreshToken != nil {
			nu.RefreshToken = *creds.RefreshToken
		}
		if creds.ExpiresAt != nil {
			nu.ExpiresAt = *creds.ExpiresAt
		}

		created, err := s.users.CreateUser(ctx, nu)
		if err == nil {
			s.logger.Info("user created", slog.Int64("userID", created.ID))
			return created, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, fmt.Errorf("service/auth: creating user (spotifyID=%s): %w", spotifyID, err)
		}
		existing, err = s.users.GetUserBySpotifyID(ctx, spotifyID)
		if err != nil {
			return nil, fmt.Errorf("service/auth: looking up user after conflict (spotifyID=%s): %w", spotifyID, err)
		}
	}

	upd := creds
	upd.Email = optional(p.email)
	upd.DisplayName = optional(p.displayName)
	upd.PhotoURL = optional(p.photoURL)

	updated, err := s.users.UpdateUser(ctx, existing.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("service/auth: updating user %d: %w", existing.ID, err)
	}
	return updated, nil
}

// optional maps "" to nil so a profile field Spotify omitted keeps its
// stored value.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *AuthService) startSession(ctx context.Context, userID int64) (*model.Session, string, error) {
	now := s.now().UTC()
	sess := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("service/auth: creating session for user %d: %w", userID, err)
	}

	token, err := s.tokens.Generate(sess.ID, sess.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("service/auth: signing session for user %d: %w", userID, err)
	}
	return sess, token, nil
}

// ResolveSession implements auth.SessionResolver.
//
// The user is re-read on every call. When less than half the TTL is left,
// the session expiry slides forward and a fresh cookie token is returned.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*auth.Resolution, error) {
	sessionID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized("invalid session")
	}

	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("session expired")
		}
		return nil, fmt.Errorf("service/auth: loading session: %w", err)
	}
	now := s.now().UTC()
	if sess.Expired(now) {
		return nil, apperror.Unauthorized("session expired")
	}

	user, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("unknown user")
		}
		return nil, fmt.Errorf("service/auth: loading user %d: %w", sess.UserID, err)
	}

	res := &auth.Resolution{User: user}
	if sess.ExpiresAt.Sub(now) < s.ttl/2 {
		newExpiry := now.Add(s.ttl)
		if err := s.sessions.TouchSession(ctx, sess.ID, newExpiry); err != nil {
			s.logger.Warn("extending session failed", slog.String("error", err.Error()))
			return res, nil
		}
		fresh, err := s.tokens.Generate(sess.ID, newExpiry)
		if err != nil {
			s.logger.Warn("re-signing session failed", slog.String("error", err.Error()))
			return res, nil
		}
		res.Renewed = true
		res.Token = fresh
		res.ExpiresAt = newExpiry
	}
	return res, nil
}

// Logout deletes the session behind token. An invalid token is already
// logged out.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	sessionID, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("service/auth: deleting session: %w", err)
	}
	return nil
}

// PruneSessions deletes expired sessions and reports how many went.
func (s *AuthService) PruneSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("service/auth: pruning sessions: %w", err)
	}
	metrics.RecordSessionsPruned(n)
	return n, nil
}
