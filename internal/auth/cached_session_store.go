package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const DefaultSessionCacheExpire = 30 * time.Second

// CachedSessionStore is a local read-through cache in front of another store.
// Deletes go through this process' cache first, so a logout is visible here immediately;
// other instances may serve the session until their entry expires.
type CachedSessionStore struct {
	store        SessionStore
	cache        *freecache.Cache
	expireSecond int
}

func NewCachedSessionStore(store SessionStore, cacheSizeBytes int, expire time.Duration) *CachedSessionStore {
	if expire <= 0 {
		expire = DefaultSessionCacheExpire
	}
	return &CachedSessionStore{
		store:        store,
		cache:        freecache.NewCache(cacheSizeBytes),
		expireSecond: int(expire.Seconds()),
	}
}

func (s *CachedSessionStore) Create(ctx context.Context, session Session) error {
	if err := s.store.Create(ctx, session); err != nil {
		return err
	}
	s.put(session)
	return nil
}

func (s *CachedSessionStore) Get(ctx context.Context, token string) (*Session, error) {
	if cached, err := s.cache.Get([]byte(token)); err == nil {
		var session Session
		if err := json.Unmarshal(cached, &session); err == nil {
			return &session, nil
		}
		log.Warnf("cached session store, corrupt cache entry, dropping it")
		s.cache.Del([]byte(token))
	}

	session, err := s.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	s.put(*session)
	return session, nil
}

func (s *CachedSessionStore) Delete(ctx context.Context, token string) error {
	s.cache.Del([]byte(token))
	return s.store.Delete(ctx, token)
}

func (s *CachedSessionStore) List(ctx context.Context) ([]Session, error) {
	return s.store.List(ctx)
}

func (s *CachedSessionStore) put(session Session) {
	sessionBytes, err := json.Marshal(session)
	if err != nil {
		log.Errorf("cached session store, marshal session: %s", err)
		return
	}
	if err := s.cache.Set([]byte(session.Token), sessionBytes, s.expireSecond); err != nil {
		log.Errorf("cached session store, set: %s", err)
	}
}
