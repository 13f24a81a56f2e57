package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func csrfHandler() http.Handler {
	mw := NewCSRFMiddleware(CSRFConfig{CookieSecure: false})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRF_SafeMethodSetsCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("GET should set the CSRF token cookie")
	}
}

func TestCSRF_PostWithoutTokenIsForbidden(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestCSRF_PostWithMatchingFormTokenPasses(t *testing.T) {
	form := url.Values{}
	form.Set(csrfFieldName, "token-123")

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-123"})
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCSRF_PostWithMatchingHeaderTokenPasses(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set(csrfHeaderName, "token-456")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-456"})
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCSRF_MismatchedTokenIsForbidden(t *testing.T) {
	form := url.Values{}
	form.Set(csrfFieldName, "token-attacker")

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "token-real"})
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestCSRFTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := CSRFTokenFromRequest(req); got != "" {
		t.Errorf("token without cookie = %q, want empty", got)
	}

	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
	if got := CSRFTokenFromRequest(req); got != "tok" {
		t.Errorf("token = %q, want tok", got)
	}
}
