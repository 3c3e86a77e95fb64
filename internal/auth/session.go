package auth

import (
	"errors"
	"time"

	"github.com/2beens/rolegate/internal/accounts"
)

const DefaultTTL = 24 * 7 * time.Hour

var (
	ErrInvalidLogin    = errors.New("invalid username or password")
	ErrUnauthenticated = errors.New("not logged in")
	ErrForbidden       = errors.New("access denied")
	ErrSessionNotFound = errors.New("session not found")
)

// Session binds a token to the username and the role the account had at login.
// The role is a snapshot: changing an account's role does not touch live sessions.
type Session struct {
	Token     string        `json:"token"`
	Username  string        `json:"username"`
	Role      accounts.Role `json:"role"`
	CreatedAt time.Time     `json:"created_at"`
}

// Expired reports whether the session outlived ttl. A zero ttl never expires.
func (s *Session) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.CreatedAt) > ttl
}
