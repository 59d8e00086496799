package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/shopcore/internal/domain/payment"
)

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
	}
}

func (s *SessionStore) Bind(ctx context.Context, session *domain.Session) error {
	_ = ctx
	if session == nil || session.Token == "" {
		return domain.ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[session.Token]; ok {
		if existing.OrderID != session.OrderID {
			return domain.ErrTokenBound
		}
		return nil
	}

	clone := *session
	s.sessions[session.Token] = &clone
	return nil
}

func (s *SessionStore) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	clone := *session
	return &clone, nil
}
