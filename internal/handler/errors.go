package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/stvsteam/regconsole/internal/middleware"
	"github.com/stvsteam/regconsole/internal/model"
)

// SessionClearer clears a session by ID. Implemented by the authenticator.
type SessionClearer interface {
	Logout(ctx context.Context, sessionID string) error
}

// ForcedLogoutRecorder counts forced logouts. Implemented by the metrics
// collector; nil disables recording.
type ForcedLogoutRecorder interface {
	RecordForcedLogout()
}

// backendFailure turns backend rejections of the stored token into a forced
// logout. Every handler that proxies a credentialed request routes its error
// through forceLogoutIfRejected before presenting it, so a revoked token has
// exactly one recovery path.
type backendFailure struct {
	auth     SessionClearer
	recorder ForcedLogoutRecorder
	cookies  CookieConfig
	logger   *slog.Logger
}

// newBackendFailure creates the shared failure handler.
func newBackendFailure(auth SessionClearer, recorder ForcedLogoutRecorder, cookies CookieConfig, logger *slog.Logger) *backendFailure {
	return &backendFailure{
		auth:     auth,
		recorder: recorder,
		cookies:  cookies,
		logger:   logger,
	}
}

// forceLogoutIfRejected handles an AUTH_REJECTED backend answer: the session
// is cleared, the cookie expired and the operator sent to the login view.
// Reports whether the response was written. The store suppresses duplicate
// clear notifications, so overlapping rejections for the same session do not
// repeat the side effects.
func (b *backendFailure) forceLogoutIfRejected(w http.ResponseWriter, r *http.Request, apiErr *model.APIError) bool {
	if apiErr == nil || apiErr.Code != model.ErrCodeAuthRejected {
		return false
	}

	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		if err := b.auth.Logout(r.Context(), sess.ID); err != nil {
			b.logger.Error("forced logout clear failed", slog.String("error", err.Error()))
		}
		if b.recorder != nil {
			b.recorder.RecordForcedLogout()
		}
		b.logger.Warn("forced logout after token rejection",
			slog.String("username", sess.Username),
			slog.String("path", r.URL.Path),
		)
	}

	clearSessionCookie(w, b.cookies)
	http.Redirect(w, r, "/login?reason=session_expired", http.StatusSeeOther)
	return true
}

// statusForAPIError maps the error taxonomy to an HTTP status for the
// re-rendered view.
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeAuthRejected:
		return http.StatusUnauthorized
	case model.ErrCodeLoginInFlight:
		return http.StatusConflict
	case model.ErrCodeValidationFailure:
		return http.StatusUnprocessableEntity
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
