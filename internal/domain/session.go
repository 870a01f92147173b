package domain

import "time"

// Session authorizes one browser/device context for a bounded time window.
// The row is authoritative: an expired session must never authenticate a
// request even if it still exists in storage.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session no longer authenticates requests.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
