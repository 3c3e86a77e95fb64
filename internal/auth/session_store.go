package auth

import "context"

//go:generate mockgen -source=$GOFILE -destination=session_store_mocks_test.go -package=auth_test

var (
	_ SessionStore = (*MemorySessionStore)(nil)
	_ SessionStore = (*RedisSessionStore)(nil)
	_ SessionStore = (*CachedSessionStore)(nil)
)

// SessionStore is the token -> claims table.
// Get returns ErrSessionNotFound for unknown tokens; Delete of an unknown token is not an error.
type SessionStore interface {
	Create(ctx context.Context, session Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	List(ctx context.Context) ([]Session, error)
}
