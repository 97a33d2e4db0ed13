package model

import "time"

// Session binds a browser (through a signed cookie) to a user.
// Rows past ExpiresAt are treated as absent and pruned periodically.
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
