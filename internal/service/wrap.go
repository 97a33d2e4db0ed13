package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wrapify/wrapify/internal/metrics"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/repository"
	"github.com/wrapify/wrapify/internal/spotify"
)

// WrapArtistLimit is how many top artists feed a wrap.
const WrapArtistLimit = 50

// WrapService generates and lists wraps.
type WrapService struct {
	wraps  repository.WrapRepository
	api    SpotifyAPI
	creds  *Credentials
	now    func() time.Time
	logger *slog.Logger
}

func NewWrapService(wraps repository.WrapRepository, api SpotifyAPI, creds *Credentials, logger *slog.Logger) *WrapService {
	return &WrapService{wraps: wraps, api: api, creds: creds, now: time.Now, logger: logger}
}

// GenerateWrap snapshots the user's long-term top artists into a new wrap.
//
// Empty or refused upstream data still yields a wrap (Music Explorer,
// no genres, artist "Unknown"). Each call creates a new row.
func (s *WrapService) GenerateWrap(ctx context.Context, u *model.User) (*model.Wrap, error) {
	artists, err := s.topArtists(ctx, u)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(BuildWrapData(artists, s.now()))
	if err != nil {
		return nil, fmt.Errorf("service/wrap: encoding wrap data: %w", err)
	}

	w, err := s.wraps.CreateWrap(ctx, model.NewWrap{UserID: u.ID, Data: data})
	if err != nil {
		return nil, fmt.Errorf("service/wrap: storing wrap for user %d: %w", u.ID, err)
	}

	metrics.RecordWrapGenerated()
	s.logger.Info("wrap generated", slog.Int64("userID", u.ID), slog.Int64("wrapID", w.ID))
	return w, nil
}

func (s *WrapService) topArtists(ctx context.Context, u *model.User) ([]spotify.Artist, error) {
	ts, err := s.creds.TokenSource(ctx, u)
	if err == nil {
		var artists []spotify.Artist
		artists, err = s.api.TopArtists(ctx, ts, WrapArtistLimit, spotify.LongTerm)
		if err == nil {
			return artists, nil
		}
	}
	if degraded(err) {
		metrics.RecordUpstreamDegraded("top_artists")
		s.logger.Warn("spotify call degraded to empty data",
			slog.Int64("userID", u.ID),
			slog.String("call", "top_artists"),
			slog.String("error", err.Error()),
		)
		return []spotify.Artist{}, nil
	}
	return nil, fmt.Errorf("service/wrap: fetching top artists for user %d: %w", u.ID, err)
}

// ListWraps returns the user's wraps, newest first.
func (s *WrapService) ListWraps(ctx context.Context, userID int64) ([]model.Wrap, error) {
	wraps, err := s.wraps.GetWrapsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/wrap: listing wraps for user %d: %w", userID, err)
	}
	return wraps, nil
}
