package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"evalreport/internal/config"
)

// Session is an authenticated user. It satisfies evaluation.Access.
type Session struct {
	Token     string    `json:"-"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Store     string    `json:"store,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CanViewAllStores reports whether the session is an admin.
func (s *Session) CanViewAllStores() bool {
	return s != nil && s.Role == config.RoleAdmin
}

// StoreScope is the only store a non-admin session may see.
func (s *Session) StoreScope() string {
	if s == nil {
		return ""
	}
	return s.Store
}

// Stores lists the stores the session may see; nil means all.
func (s *Session) Stores() []string {
	if s.CanViewAllStores() {
		return nil
	}
	return []string{s.StoreScope()}
}

// SessionStore keeps live sessions in memory, keyed by an opaque token.
type SessionStore struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionStore creates a store whose sessions live for ttl.
func NewSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		ttl:      ttl,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// Create opens a session for u.
func (s *SessionStore) Create(u User) *Session {
	now := s.now()
	session := &Session{
		Token:     uuid.NewString(),
		Username:  u.Username,
		Name:      u.Name,
		Role:      u.Role,
		Store:     u.Store,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = session
	return session
}

// Get returns the live session for token. Expired sessions are dropped.
func (s *SessionStore) Get(token string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, false
	}
	if !s.now().Before(session.ExpiresAt) {
		delete(s.sessions, token)
		return nil, false
	}
	return session, true
}

// Revoke ends a session. Unknown tokens are ignored.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Purge drops every expired session and returns how many were removed.
func (s *SessionStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, session := range s.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

type sessionKey struct{}

// WithSession attaches a session to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok && s != nil
}
