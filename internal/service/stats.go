package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wrapify/wrapify/internal/cache"
	"github.com/wrapify/wrapify/internal/metrics"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/spotify"
)

const (
	// StatsLimit is the number of top tracks and artists on the dashboard.
	StatsLimit = 10
	// DefaultStatsCacheTTL is used when NewStatsService gets a zero TTL.
	DefaultStatsCacheTTL = time.Minute

	// statsFetchTimeout bounds a shared fetch, matching the Spotify client timeout.
	statsFetchTimeout = 15 * time.Second
)

// Stats is the dashboard payload.
//
// Recent is always empty: recently played tracks are not fetched yet even
// though the scope is requested at login.
type Stats struct {
	TopTracks  []spotify.Track  `json:"topTracks"`
	TopArtists []spotify.Artist `json:"topArtists"`
	Recent     []spotify.Track  `json:"recent"`
	Genres     []string         `json:"genres"`
}

// StatsService builds the dashboard stats from the Spotify API.
type StatsService struct {
	api    SpotifyAPI
	creds  *Credentials
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger

	// inflight collapses concurrent cache misses for the same user.
	inflight singleflight.Group
}

func NewStatsService(api SpotifyAPI, creds *Credentials, c cache.Cache, ttl time.Duration, logger *slog.Logger) *StatsService {
	if c == nil {
		c = cache.Nop{}
	}
	if ttl <= 0 {
		ttl = DefaultStatsCacheTTL
	}
	return &StatsService{api: api, creds: creds, cache: c, ttl: ttl, logger: logger}
}

func statsKey(userID int64) string {
	return "stats:" + strconv.FormatInt(userID, 10)
}

// GetStats fetches top tracks and top artists concurrently.
//
// A non-2xx answer for either call empties that list only. Any other
// failure (network, token decryption, storage) is returned.
// Complete results are cached per user; degraded ones are not.
func (s *StatsService) GetStats(ctx context.Context, u *model.User) (*Stats, error) {
	key := statsKey(u.ID)
	if b, ok := s.cache.Get(ctx, key); ok {
		var cached Stats
		if err := json.Unmarshal(b, &cached); err == nil {
			return &cached, nil
		}
		s.cache.Delete(ctx, key)
	}

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := s.inflight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsFetchTimeout)
		defer cancel()
		return s.fetch(fctx, u, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Stats), nil
	}
}

func (s *StatsService) fetch(ctx context.Context, u *model.User, key string) (*Stats, error) {
	stats := &Stats{
		TopTracks:  []spotify.Track{},
		TopArtists: []spotify.Artist{},
		Recent:     []spotify.Track{},
		Genres:     []string{},
	}

	ts, err := s.creds.TokenSource(ctx, u)
	if err != nil {
		if degraded(err) {
			s.degrade(u.ID, "token", err)
			return stats, nil
		}
		return nil, fmt.Errorf("service/stats: %w", err)
	}

	var tracksDegraded, artistsDegraded bool
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tracks, err := s.api.TopTracks(gctx, ts, StatsLimit, spotify.LongTerm)
		if err != nil {
			if degraded(err) {
				s.degrade(u.ID, "top_tracks", err)
				tracksDegraded = true
				return nil
			}
			return err
		}
		stats.TopTracks = tracks
		return nil
	})

	g.Go(func() error {
		artists, err := s.api.TopArtists(gctx, ts, StatsLimit, spotify.LongTerm)
		if err != nil {
			if degraded(err) {
				s.degrade(u.ID, "top_artists", err)
				artistsDegraded = true
				return nil
			}
			return err
		}
		stats.TopArtists = artists
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service/stats: fetching spotify data for user %d: %w", u.ID, err)
	}

	stats.Genres = TopGenres(FlattenGenres(stats.TopArtists), TopGenresCount)

	if !tracksDegraded && !artistsDegraded {
		if b, err := json.Marshal(stats); err == nil {
			s.cache.Set(ctx, key, b, s.ttl)
		}
	}
	return stats, nil
}

// Invalidate drops the cached stats for userID.
func (s *StatsService) Invalidate(ctx context.Context, userID int64) {
	s.cache.Delete(ctx, statsKey(userID))
}

func (s *StatsService) degrade(userID int64, call string, err error) {
	metrics.RecordUpstreamDegraded(call)
	s.logger.Warn("spotify call degraded to empty data",
		slog.Int64("userID", userID),
		slog.String("call", call),
		slog.String("error", err.Error()),
	)
}
