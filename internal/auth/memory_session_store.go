package auth

import (
	"context"
	"sync"
)

type MemorySessionStore struct {
	mutex    sync.RWMutex
	sessions map[string]Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]Session),
	}
}

func (s *MemorySessionStore) Create(_ context.Context, session Session) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// tokens are 35 random bytes, collisions are not a concern
	s.sessions[session.Token] = session
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (*Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *MemorySessionStore) List(_ context.Context) ([]Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sessions := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	return sessions, nil
}
