// Package middleware provides the HTTP middleware of the console.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/stvsteam/regconsole/internal/model"
)

const sessionCookieName = "session_id"

// contextKey is a type-safe key for request context values.
type contextKey string

// sessionContextKey stores the session snapshot in the request context.
var sessionContextKey = contextKey("session")

// SessionSource resolves a session ID to a session snapshot.
// Defined as the subset of the session store the guard needs.
type SessionSource interface {
	Get(ctx context.Context, id string) (*model.Session, error)
}

// AccessRequirement declares, per route, who may reach it. Declared
// statically at router construction; never persisted.
type AccessRequirement struct {
	authenticated bool
	roles         map[model.Role]bool
}

// AccessNone allows anyone. The guard still resolves the session so views
// can render the identity when one exists.
func AccessNone() AccessRequirement {
	return AccessRequirement{}
}

// AccessAuthenticated requires any complete session.
func AccessAuthenticated() AccessRequirement {
	return AccessRequirement{authenticated: true}
}

// AccessRoles requires a complete session whose role is in the given set.
func AccessRoles(roles ...model.Role) AccessRequirement {
	set := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return AccessRequirement{authenticated: true, roles: set}
}

// allows evaluates the requirement against a session snapshot.
// A session with the wrong role is treated exactly like no session at all,
// so the guard never reveals that the route exists to the wrong audience.
func (a AccessRequirement) allows(sess *model.Session) bool {
	if !a.authenticated {
		return true
	}
	if !sess.Authenticated() {
		return false
	}
	if len(a.roles) == 0 {
		return true
	}
	return a.roles[sess.Role]
}

// Guard returns the route guard middleware for one requirement. It resolves
// the session cookie through the store and injects the snapshot into the
// request context. Denied page requests are redirected to the login view;
// denied fetch-style requests (Accept: application/json) get a 401 body.
// The outcome is identical for an absent session and a wrong-role session.
//
// The guard is advisory: it saves a doomed backend fetch and a broken view,
// but the backend independently authorizes every proxied request.
func Guard(src SessionSource, requirement AccessRequirement) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *model.Session

			if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				sess, err = src.Get(r.Context(), cookie.Value)
				if err != nil {
					slog.Error("failed to resolve session",
						slog.String("error", err.Error()),
					)
					// Store trouble on an open route should not block the
					// page; on a protected route it denies like no session.
					sess = nil
				}
			}

			if !requirement.allows(sess) {
				deny(w, r)
				return
			}

			ctx := r.Context()
			if sess != nil {
				ctx = context.WithValue(ctx, sessionContextKey, sess)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// deny answers an insufficient session. One consistent policy for every
// denial cause: login redirect for pages, 401 for JSON clients.
func deny(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "application/json" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// SessionFromContext returns the session snapshot injected by the guard,
// or nil when the request is anonymous.
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionContextKey).(*model.Session)
	return sess
}

// ContextWithSession injects a session snapshot into a context.
// Used by tests and non-HTTP call sites.
func ContextWithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionCookieName is the cookie carrying the browsing-session ID.
func SessionCookieName() string {
	return sessionCookieName
}
