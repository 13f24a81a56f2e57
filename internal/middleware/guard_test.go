package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stvsteam/regconsole/internal/model"
)

// --- mocks ---

type mockSessionSource struct {
	getFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionSource) Get(ctx context.Context, id string) (*model.Session, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func sessionWithRole(role model.Role) *model.Session {
	return &model.Session{
		ID:        "sess-1",
		Token:     "tok",
		Username:  "someone",
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func sourceReturning(sess *model.Session) *mockSessionSource {
	return &mockSessionSource{
		getFn: func(ctx context.Context, id string) (*model.Session, error) {
			return sess, nil
		},
	}
}

// serveGuarded runs one request through the guard with the given cookie.
func serveGuarded(src SessionSource, requirement AccessRequirement, withCookie bool, accept string) *httptest.ResponseRecorder {
	handler := Guard(src, requirement)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if withCookie {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// --- tests ---

func TestGuard_AccessNone_AllowsAnonymous(t *testing.T) {
	w := serveGuarded(sourceReturning(nil), AccessNone(), false, "")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestGuard_AccessNone_InjectsSessionWhenPresent(t *testing.T) {
	sess := sessionWithRole(model.RoleUser)

	var got *model.Session
	handler := Guard(sourceReturning(sess), AccessNone())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "sess-1"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.Username != "someone" {
		t.Errorf("injected session = %+v, want the resolved session", got)
	}
}

func TestGuard_AccessAuthenticated_DeniesAnonymous(t *testing.T) {
	w := serveGuarded(sourceReturning(nil), AccessAuthenticated(), false, "")

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want /login", loc)
	}
}

func TestGuard_WrongRoleDeniedExactlyLikeAnonymous(t *testing.T) {
	requirement := AccessRoles(model.RoleAdmin)

	anonymous := serveGuarded(sourceReturning(nil), requirement, false, "")
	wrongRole := serveGuarded(sourceReturning(sessionWithRole(model.RoleUser)), requirement, true, "")

	if anonymous.Code != wrongRole.Code {
		t.Errorf("status: anonymous = %d, wrong role = %d, must be identical", anonymous.Code, wrongRole.Code)
	}
	if a, b := anonymous.Header().Get("Location"), wrongRole.Header().Get("Location"); a != b {
		t.Errorf("Location: anonymous = %q, wrong role = %q, must be identical", a, b)
	}
	if a, b := anonymous.Body.String(), wrongRole.Body.String(); a != b {
		t.Errorf("body differs between anonymous and wrong-role denial")
	}
}

func TestGuard_AccessRoles_AllowsMatchingRole(t *testing.T) {
	w := serveGuarded(sourceReturning(sessionWithRole(model.RoleAdmin)), AccessRoles(model.RoleAdmin), true, "")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestGuard_JSONClientsGet401(t *testing.T) {
	w := serveGuarded(sourceReturning(nil), AccessAuthenticated(), false, "application/json")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestGuard_StoreErrorOnProtectedRouteDenies(t *testing.T) {
	src := &mockSessionSource{
		getFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, context.DeadlineExceeded
		},
	}

	w := serveGuarded(src, AccessAuthenticated(), true, "")
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303 (deny like no session)", w.Code)
	}
}

func TestAccessRequirement_Allows(t *testing.T) {
	tests := []struct {
		name        string
		requirement AccessRequirement
		sess        *model.Session
		want        bool
	}{
		{"none allows nil", AccessNone(), nil, true},
		{"authenticated rejects nil", AccessAuthenticated(), nil, false},
		{"authenticated rejects partial", AccessAuthenticated(), &model.Session{ID: "x", Token: "t"}, false},
		{"authenticated allows complete", AccessAuthenticated(), sessionWithRole(model.RoleUser), true},
		{"roles rejects other role", AccessRoles(model.RoleAdmin), sessionWithRole(model.RoleDriver), false},
		{"roles allows listed role", AccessRoles(model.RoleAdmin, model.RoleDriver), sessionWithRole(model.RoleDriver), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.requirement.allows(tt.sess); got != tt.want {
				t.Errorf("allows() = %v, want %v", got, tt.want)
			}
		})
	}
}
