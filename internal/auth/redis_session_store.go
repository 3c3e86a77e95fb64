package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/2beens/rolegate/internal/accounts"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	sessionKeyPrefix = "rolegate-session||"
	tokensSetKey     = "rolegate-sessions"

	fieldUsername  = "username"
	fieldRole      = "role"
	fieldCreatedAt = "created_at"
)

// RedisSessionStore keeps every session in a hash with a key TTL,
// and tracks the tokens in a set so they can be listed.
type RedisSessionStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisSessionStore(redisClient *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

// Create writes the session hash, its ttl and the token set entry in one
// MULTI/EXEC, so a session key never exists without its ttl.
func (s *RedisSessionStore) Create(ctx context.Context, session Session) error {
	sessionKey := sessionKeyPrefix + session.Token
	_, err := s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey,
			fieldUsername, session.Username,
			fieldRole, session.Role.String(),
			fieldCreatedAt, session.CreatedAt.Unix(),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, sessionKey, s.ttl)
		}
		// add token to list of sessions
		pipe.SAdd(ctx, tokensSetKey, session.Token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (*Session, error) {
	cmd := s.redisClient.HGetAll(ctx, sessionKeyPrefix+token)
	if err := cmd.Err(); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	fields := cmd.Val()
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}

	createdAtUnix, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse session created at: %w", err)
	}

	return &Session{
		Token:     token,
		Username:  fields[fieldUsername],
		Role:      accounts.ParseRole(fields[fieldRole]),
		CreatedAt: time.Unix(createdAtUnix, 0),
	}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.redisClient.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	// remove token from the list of sessions
	if err := s.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return fmt.Errorf("untrack session: %w", err)
	}

	return nil
}

// List returns all tracked sessions. Tokens whose hash already expired
// in redis are dropped from the tokens set on the way.
func (s *RedisSessionStore) List(ctx context.Context) ([]Session, error) {
	cmd := s.redisClient.SMembers(ctx, tokensSetKey)
	if err := cmd.Err(); err != nil {
		return nil, fmt.Errorf("list session tokens: %w", err)
	}

	var sessions []Session
	for _, token := range cmd.Val() {
		session, err := s.Get(ctx, token)
		if errors.Is(err, ErrSessionNotFound) {
			if err := s.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
				log.Errorf("redis session store, untrack expired token: %s", err)
			}
			continue
		}
		if err != nil {
			log.Errorf("redis session store, list, get session: %s", err)
			continue
		}
		sessions = append(sessions, *session)
	}

	return sessions, nil
}
