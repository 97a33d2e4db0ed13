package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/wrapify/wrapify/internal/auth"
	"github.com/wrapify/wrapify/internal/model"
	"github.com/wrapify/wrapify/internal/service"
)

// StatsService is the part of *service.StatsService the handler needs.
type StatsService interface {
	GetStats(ctx context.Context, u *model.User) (*service.Stats, error)
}

// WrapService is the part of *service.WrapService the handler needs.
type WrapService interface {
	GenerateWrap(ctx context.Context, u *model.User) (*model.Wrap, error)
	ListWraps(ctx context.Context, userID int64) ([]model.Wrap, error)
}

// SpotifyHandler serves the listening data endpoints. All routes sit
// behind auth.RequireAuth.
type SpotifyHandler struct {
	stats  StatsService
	wraps  WrapService
	logger *slog.Logger
}

func NewSpotifyHandler(stats StatsService, wraps WrapService, logger *slog.Logger) *SpotifyHandler {
	return &SpotifyHandler{stats: stats, wraps: wraps, logger: logger}
}

// HandleStats returns top tracks, top artists and genres.
//
// HTTP: GET /api/stats
// Success: 200 {"topTracks":[...],"topArtists":[...],"recent":[],"genres":[...]}
//
// Upstream non-2xx responses degrade to empty lists; only unexpected
// failures (network, storage) produce a 500.
func (h *SpotifyHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	stats, err := h.stats.GetStats(r.Context(), user)
	if err != nil {
		h.logger.Error("fetching stats",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err, "Failed to fetch spotify data")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// HandleGenerateWrap creates and stores a new wrap.
//
// HTTP: POST /api/generate-wrap
// Success: 201 with the stored wrap
func (h *SpotifyHandler) HandleGenerateWrap(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	wrap, err := h.wraps.GenerateWrap(r.Context(), user)
	if err != nil {
		h.logger.Error("generating wrap",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err, "Failed to generate wrap")
		return
	}

	writeJSON(w, http.StatusCreated, wrap)
}

// HandleListWraps returns the caller's wraps, newest first.
//
// HTTP: GET /api/wraps
// Success: 200 [wrap, ...] (an empty array, never null)
func (h *SpotifyHandler) HandleListWraps(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}

	wraps, err := h.wraps.ListWraps(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("listing wraps",
			slog.Int64("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err, "Failed to fetch wraps")
		return
	}
	if wraps == nil {
		wraps = []model.Wrap{}
	}

	writeJSON(w, http.StatusOK, wraps)
}

// user reads the authenticated user, writing a 401 when the route was
// mounted without RequireAuth.
func (h *SpotifyHandler) user(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated, "")
		return nil, false
	}
	return u, true
}
