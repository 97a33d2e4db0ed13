package auth

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName holds the signed session token.
	SessionCookieName = "wrapify_session"
	// StateCookieName holds the OAuth state between login and callback.
	StateCookieName = "oauth_state"

	stateTTL = 10 * time.Minute
)

// Cookies writes the auth cookies. Secure should be true whenever the site
// is served over HTTPS.
type Cookies struct {
	Secure bool
}

// SetSession stores the signed session token until expiresAt.
func (c Cookies) SetSession(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession removes the session cookie from the browser.
func (c Cookies) ClearSession(w http.ResponseWriter) {
	c.clear(w, SessionCookieName, "/")
}

// SetState stores the OAuth state for the callback. It is scoped to the
// auth routes and lives 10 minutes.
func (c Cookies) SetState(w http.ResponseWriter, state string) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearState removes the OAuth state cookie.
func (c Cookies) ClearState(w http.ResponseWriter) {
	c.clear(w, StateCookieName, "/api/auth")
}

func (c Cookies) clear(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the session cookie value, or "" when absent.
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// State returns the OAuth state cookie value, or "" when absent.
func State(r *http.Request) string {
	c, err := r.Cookie(StateCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
