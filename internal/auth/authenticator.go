// Package auth mediates credential exchange with the registry backend.
package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/registry"
	"github.com/stvsteam/regconsole/internal/session"
)

// State is the authenticator's position in the login lifecycle for one
// browsing session.
type State string

const (
	// StateIdle means no login attempt is running.
	StateIdle State = "idle"
	// StateAuthenticating means a credential exchange is in flight.
	StateAuthenticating State = "authenticating"
	// StateAuthenticated means the last attempt succeeded.
	StateAuthenticated State = "authenticated"
	// StateFailed means the last attempt was rejected.
	StateFailed State = "failed"
)

// LoginClient is the subset of the registry client the authenticator needs.
type LoginClient interface {
	Login(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError)
}

// stateTTL bounds how long a resolved login state is remembered per key.
// Stale entries are pruned on the next login attempt so the map does not
// grow with client churn.
const stateTTL = 10 * time.Minute

// stateEntry pairs a lifecycle state with its last transition time.
type stateEntry struct {
	state   State
	updated time.Time
}

// Authenticator performs credential exchange and is the only component that
// requests session store mutations. A per-key in-flight set serializes
// duplicate submissions: while one exchange runs, a second submission for
// the same key fails fast with LOGIN_IN_FLIGHT instead of racing the first.
type Authenticator struct {
	client LoginClient
	store  *session.Store
	logger *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	states   map[string]stateEntry
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(client LoginClient, store *session.Store, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		client:   client,
		store:    store,
		logger:   logger,
		inFlight: make(map[string]bool),
		states:   make(map[string]stateEntry),
	}
}

// Login exchanges credentials for a bearer token and installs the resulting
// session. key identifies the submitting browsing session (pre-login this is
// the client address). On success the new session and its role are returned
// so the caller can pick the redirect target. On rejection the store is left
// untouched and the backend's message, when present, is surfaced. No retry
// is attempted; resubmission is the operator's decision.
func (a *Authenticator) Login(ctx context.Context, key string, creds model.Credentials) (*model.Session, *model.APIError) {
	a.mu.Lock()
	if a.inFlight[key] {
		a.mu.Unlock()
		return nil, model.NewLoginInFlightError()
	}
	a.pruneStatesLocked(time.Now())
	a.inFlight[key] = true
	a.states[key] = stateEntry{state: StateAuthenticating, updated: time.Now()}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.inFlight, key)
		a.mu.Unlock()
	}()

	token, apiErr := a.client.Login(ctx, creds)
	if apiErr != nil {
		a.setState(key, StateFailed)
		a.logger.Warn("login rejected",
			slog.String("username", creds.Username),
			slog.String("code", apiErr.Code),
		)
		return nil, apiErr
	}

	role, err := model.ParseRole(token.Role)
	if err != nil {
		a.setState(key, StateFailed)
		a.logger.Error("token response carried unknown role",
			slog.String("role", token.Role),
		)
		return nil, model.NewNetworkFailureError("token response carried an unknown role")
	}

	sess, err := a.store.Create(ctx, token.AccessToken, token.Username, role)
	if err != nil {
		a.setState(key, StateFailed)
		a.logger.Error("failed to install session", slog.String("error", err.Error()))
		return nil, model.NewNetworkFailureError("session could not be stored")
	}

	a.setState(key, StateAuthenticated)
	a.logger.Info("login succeeded",
		slog.String("username", sess.Username),
		slog.String("role", string(sess.Role)),
	)
	return sess, nil
}

// Logout clears the session. Idempotent: logging out with no active session
// succeeds silently, and the store itself suppresses duplicate observer
// notifications for already-cleared sessions.
func (a *Authenticator) Logout(ctx context.Context, sessionID string) error {
	if err := a.store.Clear(ctx, sessionID); err != nil {
		// The durable delete failed; the in-memory value is already gone,
		// so the operator is logged out either way. Log and move on.
		a.logger.Error("session clear failed", slog.String("error", err.Error()))
	}
	return nil
}

// State returns the login lifecycle state for the given key. Keys with no
// recorded attempt are Idle.
func (a *Authenticator) State(key string) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.states[key]; ok {
		return e.state
	}
	return StateIdle
}

func (a *Authenticator) setState(key string, s State) {
	a.mu.Lock()
	a.states[key] = stateEntry{state: s, updated: time.Now()}
	a.mu.Unlock()
}

// pruneStatesLocked drops state entries whose last transition is older than
// the TTL. Caller holds a.mu.
func (a *Authenticator) pruneStatesLocked(now time.Time) {
	for key, e := range a.states {
		if now.Sub(e.updated) > stateTTL {
			delete(a.states, key)
		}
	}
}
