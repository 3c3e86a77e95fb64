package accounts

import (
	"errors"
	"strings"
)

var (
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyCredentials   = errors.New("username and password must not be empty")
	ErrPasswordTooLong    = errors.New("password longer than 72 bytes")
	ErrAccountNotFound    = errors.New("account not found")
)

// Role is an exact-match authorization label. Roles are not ordered.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// ParseRole resolves a role name, falling back to RoleUser for
// anything that is not a known role.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	default:
		return RoleUser
	}
}

// NormalizeUsername is applied to every username before it reaches the repo,
// on registration and on lookup alike.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func (r Role) String() string {
	return string(r)
}

type Account struct {
	Username     string `json:"username" yaml:"username"`
	PasswordHash string `json:"-" yaml:"-"`
	Role         Role   `json:"role" yaml:"role"`
}
