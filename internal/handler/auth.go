package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/auth"
	"github.com/wrapify/wrapify/internal/service"
)

const (
	// LoginSuccessPath is where the browser lands after a good callback.
	LoginSuccessPath = "/dashboard"
	// LoginFailurePath is where every failed callback is sent.
	LoginFailurePath = "/login?error=auth_failed"
)

var errNotAuthenticated = apperror.Unauthorized("Not authenticated")

// AuthService is the part of *service.AuthService the handler needs.
type AuthService interface {
	BeginLogin() (redirectURL, state string, err error)
	CompleteLogin(ctx context.Context, code string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler serves the Spotify login flow and the session endpoints.
//
//   - HandleLogin     → redirect to Spotify's consent page
//   - HandleCallback  → finish the flow, set the session cookie, redirect
//   - HandleLogout    → delete the session, clear the cookie
//   - HandleMe        → the current user
type AuthHandler struct {
	svc     AuthService
	cookies auth.Cookies
	logger  *slog.Logger
}

func NewAuthHandler(svc AuthService, cookies auth.Cookies, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies, logger: logger}
}

// HandleLogin redirects the browser to Spotify.
//
// HTTP: GET /api/auth/login
//
// A random state goes into a short-lived HttpOnly cookie; the callback only
// proceeds when Spotify echoes the same value (CSRF protection).
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	redirectURL, state, err := h.svc.BeginLogin()
	if err != nil {
		if errors.Is(err, auth.ErrProviderNotConfigured) {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Error:   "service_unavailable",
				Message: "Spotify login is not configured",
			})
			return
		}
		h.logger.Error("auth login: building redirect", slog.String("error", err.Error()))
		writeError(w, err, "")
		return
	}

	h.cookies.SetState(w, state)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /api/auth/callback?code=xxx&state=yyy
//
// Every failure (denied consent, state mismatch, exchange or storage error)
// ends in a redirect to LoginFailurePath with no session created.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expected := auth.State(r)
	h.cookies.ClearState(w)

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied", slog.String("error", errParam))
		h.fail(w, r)
		return
	}

	if expected == "" || q.Get("state") != expected {
		h.logger.Warn("auth callback: state mismatch",
			slog.Bool("cookiePresent", expected != ""),
		)
		h.fail(w, r)
		return
	}

	res, err := h.svc.CompleteLogin(r.Context(), q.Get("code"))
	if err != nil {
		h.logger.Error("auth callback: login failed", slog.String("error", err.Error()))
		h.fail(w, r)
		return
	}

	h.cookies.SetSession(w, res.Token, res.ExpiresAt)
	http.Redirect(w, r, LoginSuccessPath, http.StatusFound)
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, LoginFailurePath, http.StatusFound)
}

// HandleLogout deletes the current session and clears the cookie.
//
// HTTP: POST /api/auth/logout (behind RequireAuth)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), auth.SessionToken(r)); err != nil {
		h.logger.Error("auth logout", slog.String("error", err.Error()))
		writeError(w, err, "")
		return
	}

	h.cookies.ClearSession(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// HandleMe returns the authenticated user. Spotify tokens are never
// serialized.
//
// HTTP: GET /api/me (behind RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, errNotAuthenticated, "")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
