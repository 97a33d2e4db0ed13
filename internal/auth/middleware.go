package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wrapify/wrapify/internal/apperror"
	"github.com/wrapify/wrapify/internal/model"
)

// contextKey is unexported so no other package can read or shadow the
// values this package stores in a request context.
type contextKey string

const userKey contextKey = "user"

// Resolution is the outcome of resolving a session cookie.
// Renewed is set when the session expiry slid forward; the middleware then
// reissues the cookie with Token and ExpiresAt.
type Resolution struct {
	User      *model.User
	Renewed   bool
	Token     string
	ExpiresAt time.Time
}

// SessionResolver turns a session cookie value into a user.
// An apperror.ErrUnauthorized or ErrNotFound result means "anonymous".
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*Resolution, error)
}

// RequireAuth rejects requests without a valid session with 401 and places
// the typed *model.User in the context for the rest of the chain.
//
// The user is re-read from storage on every request, so a user that no
// longer exists is anonymous even with a well-formed cookie.
func RequireAuth(resolver SessionResolver, cookies Cookies, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeUnauthorized(w)
				return
			}

			res, err := resolver.ResolveSession(r.Context(), token)
			if err != nil {
				if errors.Is(err, apperror.ErrUnauthorized) || errors.Is(err, apperror.ErrNotFound) {
					cookies.ClearSession(w)
					writeUnauthorized(w)
					return
				}
				logger.Error("resolving session", slog.String("error", err.Error()))
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
				return
			}

			if res.Renewed {
				cookies.SetSession(w, res.Token, res.ExpiresAt)
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), res.User)))
		})
	}
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the authenticated user placed by RequireAuth.
//
//	u, ok := auth.UserFromContext(r.Context())
//	if !ok {
//	    // route is not behind RequireAuth
//	}
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
}

// writeJSONError mirrors the handler package's error envelope; auth cannot
// import handler without a cycle.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
