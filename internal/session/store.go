// Package session owns the console's session state.
//
// The Store is the single source of truth for who is logged in: every other
// component holds a read-only snapshot and requests mutation through the
// Authenticator. Sessions are written through to durable storage so that a
// console restart rehydrates them without a backend round-trip. The stored
// token is trusted on rehydration; a revoked token is only discovered when a
// proxied backend request comes back rejected.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/repository"
)

// Observer is notified synchronously after every session mutation.
// The session is nil when the mutation was a clear.
type Observer func(sessionID string, session *model.Session)

// Store is the owning holder of session values.
type Store struct {
	repo   repository.SessionRepository
	maxAge time.Duration

	mu       sync.RWMutex
	sessions map[string]*model.Session

	subMu       sync.RWMutex
	subscribers []Observer
}

// NewStore creates a Store backed by the given repository. maxAge caps the
// lifetime of newly created sessions.
func NewStore(repo repository.SessionRepository, maxAge time.Duration) *Store {
	return &Store{
		repo:     repo,
		maxAge:   maxAge,
		sessions: make(map[string]*model.Session),
	}
}

// Subscribe registers an observer for session mutations. Observers are
// called synchronously in registration order while the mutation lock is not
// held, so they may read the store but must not mutate it.
func (s *Store) Subscribe(fn Observer) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Get returns an immutable snapshot of the session with the given ID, or nil
// when no such session exists. A session not yet in memory is rehydrated
// from durable storage without contacting the backend.
func (s *Store) Get(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, nil
	}

	s.mu.RLock()
	if sess, ok := s.sessions[id]; ok {
		if time.Now().Before(sess.ExpiresAt) {
			snapshot := *sess
			s.mu.RUnlock()
			return &snapshot, nil
		}
		s.mu.RUnlock()
		// Expired in memory; fall through to Clear.
		if err := s.Clear(ctx, id); err != nil {
			return nil, err
		}
		return nil, nil
	}
	s.mu.RUnlock()

	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	snapshot := *sess
	return &snapshot, nil
}

// Create builds a complete session from a successful credential exchange,
// persists it, installs it as the current value and notifies observers.
// The expiry is the configured max age, tightened to the token's own exp
// claim when the token parses as a JWT.
func (s *Store) Create(ctx context.Context, token, username string, role model.Role) (*model.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	sess := &model.Session{
		ID:        id,
		Token:     token,
		Username:  username,
		Role:      role,
		ExpiresAt: tokenExpiry(token, now.Add(s.maxAge)),
		CreatedAt: now,
	}

	if err := s.Set(ctx, sess); err != nil {
		return nil, err
	}

	snapshot := *sess
	return &snapshot, nil
}

// Set replaces the session atomically: durable write first, then a single
// map assignment, then synchronous observer notification. Partial sessions
// are rejected, preserving the token-iff-identity invariant.
func (s *Store) Set(ctx context.Context, sess *model.Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if !sess.Authenticated() {
		return fmt.Errorf("refusing to store a partial session")
	}

	stored := *sess
	if err := s.repo.Create(ctx, &stored); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	s.mu.Lock()
	s.sessions[stored.ID] = &stored
	s.mu.Unlock()

	snapshot := stored
	s.notify(stored.ID, &snapshot)
	return nil
}

// Clear destroys the session and removes it from durable storage. Clearing
// an absent session is a no-op and does not notify observers, so repeated
// logouts have no duplicate side effects.
func (s *Store) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if existed {
		s.notify(id, nil)
	}
	return nil
}

// PurgeExpired evicts expired sessions from memory and notifies observers.
// Get already clears an expired session on access, but a session that is
// never requested again would otherwise stay in the map and inflate the
// active-session count; the expire job sweeps those. Durable rows are
// purged separately. Returns the number of evicted sessions.
func (s *Store) PurgeExpired() int {
	now := time.Now()

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.notify(id, nil)
	}
	return len(expired)
}

// ActiveCount returns the number of sessions currently held in memory.
// Used by the metrics gauge.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// notify delivers a mutation to all subscribers.
func (s *Store) notify(id string, sess *model.Session) {
	s.subMu.RLock()
	subs := make([]Observer, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(id, sess)
	}
}

// generateSessionID returns a cryptographically random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// tokenExpiry peeks at the bearer token's exp claim without verifying the
// signature; the backend remains the authority on token validity. When the
// token is not a JWT or carries no usable exp, the fallback applies.
func tokenExpiry(token string, fallback time.Time) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return fallback
	}
	if claims.ExpiresAt == nil {
		return fallback
	}
	exp := claims.ExpiresAt.Time
	if exp.After(time.Now()) && exp.Before(fallback) {
		return exp
	}
	return fallback
}
