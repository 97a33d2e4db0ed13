// Package auth holds the pieces that turn a browser into a Wrapify user:
// the Spotify OAuth provider, the signed session cookie, encryption of the
// stored Spotify tokens, and the RequireAuth middleware.
//
// SESSION FLOW:
//  1. GET /api/auth/login sets an oauth_state cookie and redirects to Spotify
//  2. Spotify calls back /api/auth/callback with a code and the same state
//  3. The code is exchanged, the profile fetched, the user created or updated
//  4. A session row is stored and its id is signed into the wrapify_session cookie
//  5. RequireAuth validates the cookie, loads the session and then the user
//
// REVOCATION:
// The cookie only carries the session id. Revocation is deleting the row,
// which is what logout does.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "wrapify"

// MinSecretLength is the shortest SESSION_SECRET accepted.
const MinSecretLength = 16

// TokenService signs and verifies session cookies as HS256 JWTs.
// The subject is the session id.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: session secret must be at least %d characters", MinSecretLength)
	}
	return &TokenService{secret: []byte(secret)}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for sessionID that expires at expiresAt.
func (s *TokenService) Generate(sessionID string, expiresAt time.Time) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns the session id it carries.
//
// VALIDATION CHECKS:
//   - the HS256 signature matches the session secret
//   - the token carries an expiry and it is in the future
//   - the issuer is "wrapify"
//   - the subject (session id) is not empty
//
// ALGORITHM CONFUSION:
// Only HS256 is accepted. jwt.WithValidMethods rejects "none" and any
// asymmetric algorithm placed in the header.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
