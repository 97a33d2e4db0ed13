package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/wrapify/wrapify/internal/auth"
	"github.com/wrapify/wrapify/internal/cache"
	"github.com/wrapify/wrapify/internal/spotify"
)

func newTestStatsService(t *testing.T, store *fakeStore, api *fakeSpotify, provider *fakeProvider, c cache.Cache) *StatsService {
	t.Helper()
	creds := NewCredentials(store, newTestSealer(t), provider, discardLogger())
	return NewStatsService(api, creds, c, time.Minute, discardLogger())
}

func sampleArtists() []spotify.Artist {
	return []spotify.Artist{
		{Name: "A", Genres: []string{"pop", "dance pop", "electropop"}},
		{Name: "B", Genres: []string{"pop", "r&b"}},
		{Name: "C", Genres: []string{"rock"}},
	}
}

func TestGetStats(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	api := &fakeSpotify{
		artists: sampleArtists(),
		tracks:  []spotify.Track{{Name: "Song"}},
	}
	svc := newTestStatsService(t, store, api, &fakeProvider{}, nil)

	stats, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)

	assert.Len(t, stats.TopTracks, 1)
	assert.Len(t, stats.TopArtists, 3)
	assert.Equal(t, []string{"pop", "dance pop", "electropop", "pop", "r&b"}, stats.Genres)
	assert.NotNil(t, stats.Recent)
	assert.Empty(t, stats.Recent)
	assert.ElementsMatch(t, []string{"acc", "acc"}, api.seenTokens)
}

func TestGetStats_PartialDegradation(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	api := &fakeSpotify{
		artists:   sampleArtists(),
		tracksErr: &spotify.APIError{Status: 403, Path: "/me/top/tracks"},
	}
	svc := newTestStatsService(t, store, api, &fakeProvider{}, nil)

	stats, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)
	assert.NotNil(t, stats.TopTracks)
	assert.Empty(t, stats.TopTracks)
	assert.Len(t, stats.TopArtists, 3)
}

func TestGetStats_BothDegraded(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	api := &fakeSpotify{
		artistsErr: &spotify.APIError{Status: 401},
		tracksErr:  &spotify.APIError{Status: 401},
	}
	svc := newTestStatsService(t, store, api, &fakeProvider{}, nil)

	stats, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)
	assert.Empty(t, stats.TopArtists)
	assert.Empty(t, stats.TopTracks)
	assert.Equal(t, []string{}, stats.Genres)
}

func TestGetStats_TransportFailureIsError(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	api := &fakeSpotify{artists: sampleArtists(), tracksErr: errors.New("dial tcp: timeout")}
	svc := newTestStatsService(t, store, api, &fakeProvider{}, nil)

	_, err := svc.GetStats(context.Background(), u)
	assert.Error(t, err)
}

func TestGetStats_CorruptTokenIsError(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	u.AccessToken = "not-sealed"
	svc := newTestStatsService(t, store, &fakeSpotify{}, &fakeProvider{}, nil)

	_, err := svc.GetStats(context.Background(), u)
	assert.Error(t, err)
}

func TestGetStats_RefreshesExpiredTokenAndPersists(t *testing.T) {
	store := newFakeStore()
	sealer := newTestSealer(t)
	u := seedUser(t, store, sealer, "old", "ref", time.Now().Add(-time.Minute).Unix())
	newExpiry := time.Now().Add(time.Hour).Truncate(time.Second)
	provider := &fakeProvider{refreshed: &oauth2.Token{AccessToken: "fresh", RefreshToken: "ref", Expiry: newExpiry}}
	api := &fakeSpotify{artists: sampleArtists()}
	svc := newTestStatsService(t, store, api, provider, nil)

	_, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fresh", "fresh"}, api.seenTokens)

	stored, _ := store.GetUser(context.Background(), u.ID)
	access, err := sealer.Open(stored.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "fresh", access)
	assert.Equal(t, newExpiry.Unix(), stored.ExpiresAt)
	assert.Equal(t, 1, store.updateCalls, "refresh is persisted once per new token")
}

func TestGetStats_FailedRefreshDegrades(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "old", "ref", time.Now().Add(-time.Minute).Unix())
	provider := &fakeProvider{refreshErr: &spotify.APIError{Status: 400, Path: "/api/token"}}
	svc := newTestStatsService(t, store, &fakeSpotify{}, provider, nil)

	stats, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)
	assert.Empty(t, stats.TopArtists)
	assert.Empty(t, stats.TopTracks)
}

func TestGetStats_CachesCompleteResults(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	api := &fakeSpotify{artists: sampleArtists()}
	svc := newTestStatsService(t, store, api, &fakeProvider{}, cache.NewMemory(time.Minute))

	first, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)
	second, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)

	assert.Len(t, api.seenTokens, 2, "second call is served from cache")
	assert.Equal(t, first.Genres, second.Genres)

	svc.Invalidate(context.Background(), u.ID)
	_, err = svc.GetStats(context.Background(), u)
	require.NoError(t, err)
	assert.Len(t, api.seenTokens, 4)
}

func TestGetStats_DoesNotCacheDegradedResults(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	api := &fakeSpotify{artistsErr: &spotify.APIError{Status: 503}}
	c := cache.NewMemory(time.Minute)
	svc := newTestStatsService(t, store, api, &fakeProvider{}, c)

	_, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)

	_, ok := c.Get(context.Background(), statsKey(u.ID))
	assert.False(t, ok)
}

func TestGetStats_ConcurrentMissesShareOneFetch(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	api := &fakeSpotify{artists: sampleArtists(), gate: make(chan struct{})}
	svc := newTestStatsService(t, store, api, &fakeProvider{}, cache.Nop{})

	var wg sync.WaitGroup
	results := make([]*Stats, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := svc.GetStats(context.Background(), u)
			assert.NoError(t, err)
			results[i] = stats
		}()
	}

	// Give the second caller time to join the first one's flight.
	time.Sleep(50 * time.Millisecond)
	close(api.gate)
	wg.Wait()

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Len(t, api.artistLimits, 1)
	assert.Same(t, results[0], results[1])
}

func TestGetStats_ExpiredTokenWithoutRefreshDegrades(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "stale-access", "", time.Now().Add(-time.Hour).Unix())
	provider := auth.NewSpotifyProvider("client-id", "client-secret", "http://localhost/api/auth/callback", "http://127.0.0.1:1")
	api := &fakeSpotify{artists: sampleArtists()}
	creds := NewCredentials(store, newTestSealer(t), provider, discardLogger())
	svc := NewStatsService(api, creds, nil, time.Minute, discardLogger())

	stats, err := svc.GetStats(context.Background(), u)
	require.NoError(t, err)
	assert.Empty(t, stats.TopArtists)
	assert.Empty(t, stats.TopTracks)
	assert.Empty(t, api.seenTokens, "a stale token must not be sent")
}

func TestGetStats_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, newTestSealer(t), "acc", "ref", time.Now().Add(time.Hour).Unix())
	api := &fakeSpotify{artists: sampleArtists(), gate: make(chan struct{})}
	svc := newTestStatsService(t, store, api, &fakeProvider{}, cache.Nop{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetStats(firstCtx, u)
		firstErr <- err
	}()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.artistLimits) == 1
	}, time.Second, 5*time.Millisecond, "first fetch never started")

	type result struct {
		stats *Stats
		err   error
	}
	second := make(chan result, 1)
	go func() {
		stats, err := svc.GetStats(context.Background(), u)
		second <- result{stats, err}
	}()

	// Let the second caller join the running fetch, then drop the first.
	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(api.gate)
	got := <-second
	require.NoError(t, got.err)
	assert.Len(t, got.stats.TopArtists, 3)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Len(t, api.artistLimits, 1, "both callers shared one fetch")
}
