package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/auth"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/spotify"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory repository.UserRepository, WrapRepository and
// SessionRepository. Set the *Err fields to simulate database failures.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]*model.User
	wraps    []model.Wrap
	sessions map[string]*model.Session
	nextUser int64
	nextWrap int64

	createUserErr error
	updateCalls   int
	writes        int

	// conflictOnce makes the next CreateUser fail with ErrConflict after
	// inserting the row, as a concurrent login would.
	conflictOnce bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*model.User),
		sessions: make(map[string]*model.Session),
	}
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserBySpotifyID(_ context.Context, spotifyID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.SpotifyID == spotifyID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", spotifyID)
}

func (f *fakeStore) CreateUser(_ context.Context, nu model.NewUser) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createUserErr != nil {
		return nil, f.createUserErr
	}
	for _, u := range f.users {
		if u.SpotifyID == nu.SpotifyID {
			return nil, apperror.Conflict("user", nu.SpotifyID)
		}
	}
	f.writes++
	f.nextUser++
	u := &model.User{
		ID: f.nextUser, SpotifyID: nu.SpotifyID, Email: nu.Email, DisplayName: nu.DisplayName,
		PhotoURL: nu.PhotoURL, AccessToken: nu.AccessToken, RefreshToken: nu.RefreshToken, ExpiresAt: nu.ExpiresAt,
	}
	f.users[u.ID] = u
	if f.conflictOnce {
		f.conflictOnce = false
		return nil, apperror.Conflict("user", nu.SpotifyID)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	f.writes++
	f.updateCalls++
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		u.PhotoURL = *upd.PhotoURL
	}
	if upd.AccessToken != nil {
		u.AccessToken = *upd.AccessToken
	}
	if upd.RefreshToken != nil {
		u.RefreshToken = *upd.RefreshToken
	}
	if upd.ExpiresAt != nil {
		u.ExpiresAt = *upd.ExpiresAt
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateWrap(_ context.Context, nw model.NewWrap) (*model.Wrap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := nw.Validate(); err != nil {
		return nil, err
	}
	f.writes++
	f.nextWrap++
	w := model.Wrap{ID: f.nextWrap, UserID: nw.UserID, Data: nw.Data, ShareURL: nw.ShareURL, CreatedAt: time.Now().UTC()}
	f.wraps = append(f.wraps, w)
	return &w, nil
}

func (f *fakeStore) GetWrapsByUserID(_ context.Context, userID int64) ([]model.Wrap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Wrap{}
	for i := len(f.wraps) - 1; i >= 0; i-- {
		if f.wraps[i].UserID == userID {
			out = append(out, f.wraps[i])
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) TouchSession(_ context.Context, id string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return apperror.NotFound("session", id)
	}
	f.writes++
	s.ExpiresAt = expiresAt
	return nil
}

func (f *fakeStore) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	delete(f.sessions, id)
	return nil
}

func (f *fakeStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

// =========================================================================
// FAKE PROVIDER AND SPOTIFY
// =========================================================================

type fakeProvider struct {
	token       *oauth2.Token
	exchangeErr error
	// refreshed, when set, replaces any expired token handed to TokenSource.
	refreshed  *oauth2.Token
	refreshErr error
}

func (p *fakeProvider) AuthURL(state string) (string, error) {
	return "https://accounts.example/authorize?state=" + state, nil
}

func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return p.token, nil
}

func (p *fakeProvider) TokenSource(_ context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return tokenSourceFunc(func() (*oauth2.Token, error) {
		if tok.Valid() {
			return tok, nil
		}
		if p.refreshErr != nil {
			return nil, p.refreshErr
		}
		return p.refreshed, nil
	})
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

type fakeSpotify struct {
	mu         sync.Mutex
	me         *spotify.User
	meErr      error
	artists    []spotify.Artist
	artistsErr error
	tracks     []spotify.Track
	tracksErr  error

	artistLimits []int
	seenTokens   []string

	// gate, when set, holds TopArtists until it is closed.
	gate chan struct{}
}

func (f *fakeSpotify) record(ts oauth2.TokenSource) error {
	tok, err := ts.Token()
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.seenTokens = append(f.seenTokens, tok.AccessToken)
	f.mu.Unlock()
	return nil
}

func (f *fakeSpotify) Me(_ context.Context, ts oauth2.TokenSource) (*spotify.User, error) {
	if err := f.record(ts); err != nil {
		return nil, err
	}
	return f.me, f.meErr
}

func (f *fakeSpotify) TopArtists(ctx context.Context, ts oauth2.TokenSource, limit int, _ spotify.TimeRange) ([]spotify.Artist, error) {
	if err := f.record(ts); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.artistLimits = append(f.artistLimits, limit)
	f.mu.Unlock()
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.artistsErr != nil {
		return nil, f.artistsErr
	}
	if len(f.artists) > limit {
		return f.artists[:limit], nil
	}
	return f.artists, nil
}

func (f *fakeSpotify) TopTracks(_ context.Context, ts oauth2.TokenSource, limit int, _ spotify.TimeRange) ([]spotify.Track, error) {
	if err := f.record(ts); err != nil {
		return nil, err
	}
	if f.tracksErr != nil {
		return nil, f.tracksErr
	}
	return f.tracks, nil
}

// =========================================================================
// HELPERS
// =========================================================================

const testSecret = "test-secret-at-least-16-chars!!"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSealer(t *testing.T) *auth.TokenSealer {
	t.Helper()
	s, err := auth.NewTokenSealer(testSecret)
	if err != nil {
		t.Fatalf("NewTokenSealer: %v", err)
	}
	return s
}

// seedUser stores a user whose Spotify tokens are sealed with sealer.
func seedUser(t *testing.T, store *fakeStore, sealer *auth.TokenSealer, access, refresh string, expiresAt int64) *model.User {
	t.Helper()
	a, _ := sealer.Seal(access)
	r, _ := sealer.Seal(refresh)
	u, err := store.CreateUser(context.Background(), model.NewUser{
		SpotifyID: "sp-seed", AccessToken: a, RefreshToken: r, ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	return u
}

func decodeWrapData(t *testing.T, w *model.Wrap) model.WrapData {
	t.Helper()
	var d model.WrapData
	if err := json.Unmarshal(w.Data, &d); err != nil {
		t.Fatalf("decoding wrap data: %v", err)
	}
	return d
}
