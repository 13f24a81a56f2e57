package auth

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/registry"
	"github.com/stvsteam/regconsole/internal/session"
)

// --- mocks ---

type mockLoginClient struct {
	loginFn func(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError)
}

func (m *mockLoginClient) Login(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError) {
	if m.loginFn != nil {
		return m.loginFn(ctx, creds)
	}
	return nil, model.NewNetworkFailureError("not configured")
}

type mockSessionRepo struct{}

func (m *mockSessionRepo) Create(ctx context.Context, sess *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error { return nil }
func (m *mockSessionRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestStore() *session.Store {
	return session.NewStore(&mockSessionRepo{}, time.Hour)
}

// --- tests ---

func TestAuthenticator_Login_Success(t *testing.T) {
	client := &mockLoginClient{
		loginFn: func(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError) {
			if creds.Username != "admin01" || creds.Password != "t1" {
				t.Errorf("credentials forwarded = %+v", creds)
			}
			return &registry.TokenResponse{
				AccessToken: "token-xyz",
				TokenType:   "bearer",
				Role:        "admin",
				Username:    "admin01",
			}, nil
		},
	}
	store := newTestStore()
	a := NewAuthenticator(client, store, testLogger())

	sess, apiErr := a.Login(context.Background(), "10.0.0.1", model.Credentials{Username: "admin01", Password: "t1"})
	if apiErr != nil {
		t.Fatalf("Login() error = %v", apiErr)
	}

	if sess.Username != "admin01" || sess.Role != model.RoleAdmin || sess.Token != "token-xyz" {
		t.Errorf("session = %+v, identity fields do not match the token response", sess)
	}

	got, err := store.Get(context.Background(), sess.ID)
	if err != nil || got == nil {
		t.Fatalf("session not installed in store: %v", err)
	}
	if a.State("10.0.0.1") != StateAuthenticated {
		t.Errorf("state = %q, want %q", a.State("10.0.0.1"), StateAuthenticated)
	}
}

func TestAuthenticator_Login_RejectedLeavesStoreUntouched(t *testing.T) {
	client := &mockLoginClient{
		loginFn: func(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError) {
			return nil, model.NewInvalidCredentialsError("Invalid credentials")
		},
	}
	store := newTestStore()
	a := NewAuthenticator(client, store, testLogger())

	_, apiErr := a.Login(context.Background(), "10.0.0.2", model.Credentials{Username: "admin01", Password: "wrong"})
	if apiErr == nil {
		t.Fatal("Login() should fail")
	}
	if apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeInvalidCredentials)
	}
	if apiErr.Message != "Invalid credentials" {
		t.Errorf("Message = %q, the backend detail must be surfaced", apiErr.Message)
	}

	if store.ActiveCount() != 0 {
		t.Error("a rejected login must not install a session")
	}
	if a.State("10.0.0.2") != StateFailed {
		t.Errorf("state = %q, want %q", a.State("10.0.0.2"), StateFailed)
	}
}

func TestAuthenticator_Login_DuplicateSubmitFailsFast(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	client := &mockLoginClient{
		loginFn: func(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError) {
			close(started)
			<-release
			return &registry.TokenResponse{
				AccessToken: "tok", Role: "user", Username: "user01",
			}, nil
		},
	}
	a := NewAuthenticator(client, newTestStore(), testLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, apiErr := a.Login(context.Background(), "10.0.0.3", model.Credentials{Username: "user01", Password: "p"}); apiErr != nil {
			t.Errorf("first Login() error = %v", apiErr)
		}
	}()

	<-started
	if a.State("10.0.0.3") != StateAuthenticating {
		t.Errorf("state = %q, want %q", a.State("10.0.0.3"), StateAuthenticating)
	}

	// second submission for the same key while the first is in flight
	_, apiErr := a.Login(context.Background(), "10.0.0.3", model.Credentials{Username: "user01", Password: "p"})
	if apiErr == nil || apiErr.Code != model.ErrCodeLoginInFlight {
		t.Errorf("duplicate Login() = %v, want %s", apiErr, model.ErrCodeLoginInFlight)
	}

	close(release)
	wg.Wait()

	if a.State("10.0.0.3") != StateAuthenticated {
		t.Errorf("final state = %q, want %q", a.State("10.0.0.3"), StateAuthenticated)
	}
}

func TestAuthenticator_Login_OtherKeysAreNotBlocked(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	first := true

	var mu sync.Mutex
	client := &mockLoginClient{
		loginFn: func(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError) {
			mu.Lock()
			wasFirst := first
			first = false
			mu.Unlock()
			if wasFirst {
				close(started)
				<-release
			}
			return &registry.TokenResponse{AccessToken: "tok", Role: "user", Username: creds.Username}, nil
		},
	}
	a := NewAuthenticator(client, newTestStore(), testLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Login(context.Background(), "key-a", model.Credentials{Username: "usera", Password: "p"})
	}()

	<-started

	if _, apiErr := a.Login(context.Background(), "key-b", model.Credentials{Username: "userb", Password: "p"}); apiErr != nil {
		t.Errorf("Login() for an unrelated key = %v, want success", apiErr)
	}

	close(release)
	wg.Wait()
}

func TestAuthenticator_Login_UnknownRoleFails(t *testing.T) {
	client := &mockLoginClient{
		loginFn: func(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError) {
			return &registry.TokenResponse{AccessToken: "tok", Role: "superuser", Username: "u"}, nil
		},
	}
	store := newTestStore()
	a := NewAuthenticator(client, store, testLogger())

	_, apiErr := a.Login(context.Background(), "10.0.0.4", model.Credentials{Username: "u", Password: "p"})
	if apiErr == nil {
		t.Fatal("Login() should fail on an unknown role")
	}
	if store.ActiveCount() != 0 {
		t.Error("no session may be installed for an unknown role")
	}
}

func TestAuthenticator_Logout_IsIdempotent(t *testing.T) {
	a := NewAuthenticator(&mockLoginClient{}, newTestStore(), testLogger())

	if err := a.Logout(context.Background(), "no-such-session"); err != nil {
		t.Errorf("Logout() of an absent session = %v, want nil", err)
	}
	if err := a.Logout(context.Background(), "no-such-session"); err != nil {
		t.Errorf("repeated Logout() = %v, want nil", err)
	}
}

func TestAuthenticator_State_DefaultsToIdle(t *testing.T) {
	a := NewAuthenticator(&mockLoginClient{}, newTestStore(), testLogger())

	if got := a.State("never-seen"); got != StateIdle {
		t.Errorf("State() = %q, want %q", got, StateIdle)
	}
}

func TestAuthenticator_StaleStateEntriesArePruned(t *testing.T) {
	client := &mockLoginClient{
		loginFn: func(ctx context.Context, creds model.Credentials) (*registry.TokenResponse, *model.APIError) {
			return &registry.TokenResponse{
				AccessToken: "token-xyz",
				TokenType:   "bearer",
				Role:        "user",
				Username:    "user01",
			}, nil
		},
	}
	a := NewAuthenticator(client, newTestStore(), testLogger())

	// a long-resolved attempt from an address that never came back
	a.mu.Lock()
	a.states["203.0.113.9"] = stateEntry{state: StateFailed, updated: time.Now().Add(-time.Hour)}
	a.mu.Unlock()

	if _, apiErr := a.Login(context.Background(), "10.0.0.1", model.Credentials{Username: "user01", Password: "pw"}); apiErr != nil {
		t.Fatalf("Login() error = %v", apiErr)
	}

	if got := a.State("203.0.113.9"); got != StateIdle {
		t.Errorf("State(stale key) = %q, entries past the TTL should be forgotten", got)
	}
	if got := a.State("10.0.0.1"); got != StateAuthenticated {
		t.Errorf("State(fresh key) = %q, the current attempt must survive the prune", got)
	}

	a.mu.Lock()
	size := len(a.states)
	a.mu.Unlock()
	if size != 1 {
		t.Errorf("states map holds %d entries, want 1", size)
	}
}
