package handler

import (
	"net/http"
	"time"

	"github.com/stvsteam/regconsole/internal/middleware"
	"github.com/stvsteam/regconsole/internal/model"
)

// CookieConfig configures the session cookie attributes.
type CookieConfig struct {
	Secure bool
	Domain string
}

// setSessionCookie installs the session ID cookie. The cookie lives exactly
// as long as the session itself.
func setSessionCookie(w http.ResponseWriter, config CookieConfig, sess *model.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    sess.ID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session ID cookie.
func clearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
