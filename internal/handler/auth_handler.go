package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/stvsteam/regconsole/internal/middleware"
	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/security"
)

// AuthServiceInterface is the authenticator surface the handler needs.
type AuthServiceInterface interface {
	// Login exchanges credentials and installs the resulting session.
	Login(ctx context.Context, key string, creds model.Credentials) (*model.Session, *model.APIError)
	// Logout clears the session. Idempotent.
	Logout(ctx context.Context, sessionID string) error
}

// RegistrarInterface creates backend accounts.
type RegistrarInterface interface {
	RegisterUser(ctx context.Context, username, password string, role model.Role) *model.APIError
}

// LoginMetricsRecorder counts credential exchange outcomes. nil disables
// recording.
type LoginMetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
}

// AuthHandler serves the login and registration views and the logout action.
type AuthHandler struct {
	service   AuthServiceInterface
	registrar RegistrarInterface
	views     *viewRenderer
	cookies   CookieConfig
	sanitizer security.TextSanitizerService
	metrics   LoginMetricsRecorder
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(service AuthServiceInterface, registrar RegistrarInterface, views *viewRenderer, cookies CookieConfig, sanitizer security.TextSanitizerService, metrics LoginMetricsRecorder, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:   service,
		registrar: registrar,
		views:     views,
		cookies:   cookies,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
	}
}

// loginView is the login page view data.
type loginView struct {
	pageData
	Username string
}

// registerView is the registration page view data.
type registerView struct {
	pageData
	Username string
	Role     string
}

// roleHome maps a role to its post-login landing route.
func roleHome(role model.Role) string {
	switch role {
	case model.RoleAdmin:
		return "/dashboard"
	case model.RoleDriver:
		return "/my-profile"
	default:
		return "/stolen-cars"
	}
}

// clientAddr extracts the host part of the remote address. Pre-login requests
// have no session, so this is the key for duplicate-submit detection.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LoginPage renders the login form.
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		http.Redirect(w, r, roleHome(sess.Role), http.StatusSeeOther)
		return
	}

	view := loginView{pageData: newPageData(r, "Log in")}
	switch {
	case r.URL.Query().Get("reason") == "session_expired":
		view.Error = "Your session is no longer valid. Log in again to continue."
	case r.URL.Query().Get("registered") == "1":
		view.Flash = "Account created. Log in to continue."
	case r.URL.Query().Get("logged_out") == "1":
		view.Flash = "You have been logged out."
	}

	h.views.render(w, http.StatusOK, "login", view)
}

// LoginSubmit performs the credential exchange. On success the session cookie
// is installed and the operator lands on their role's home view; on rejection
// the form is re-rendered with the username retained and the password
// discarded.
// POST /login
func (h *AuthHandler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		view := loginView{pageData: newPageData(r, "Log in")}
		view.Error = "The submitted form could not be read."
		h.views.render(w, http.StatusBadRequest, "login", view)
		return
	}

	creds := model.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	view := loginView{
		pageData: newPageData(r, "Log in"),
		Username: creds.Username,
	}

	if creds.Username == "" || creds.Password == "" {
		view.Error = "Username and password are required."
		h.views.render(w, http.StatusUnprocessableEntity, "login", view)
		return
	}

	sess, apiErr := h.service.Login(r.Context(), clientAddr(r), creds)
	if apiErr != nil {
		if h.metrics != nil && apiErr.Code == model.ErrCodeInvalidCredentials {
			h.metrics.RecordLoginFailure()
		}
		view.Error = h.sanitizer.Sanitize(apiErr.Message)
		h.views.render(w, statusForAPIError(apiErr), "login", view)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLoginSuccess()
	}
	setSessionCookie(w, h.cookies, sess)
	http.Redirect(w, r, roleHome(sess.Role), http.StatusSeeOther)
}

// Logout clears the session and the cookie.
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		if err := h.service.Logout(r.Context(), sess.ID); err != nil {
			h.logger.Error("logout failed", slog.String("error", err.Error()))
		}
	}

	clearSessionCookie(w, h.cookies)
	http.Redirect(w, r, "/login?logged_out=1", http.StatusSeeOther)
}

// RegisterPage renders the account registration form.
// GET /register
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.SessionFromContext(r.Context()); sess != nil {
		http.Redirect(w, r, roleHome(sess.Role), http.StatusSeeOther)
		return
	}

	view := registerView{pageData: newPageData(r, "Create an account"), Role: string(model.RoleUser)}
	h.views.render(w, http.StatusOK, "register", view)
}

// RegisterSubmit creates a backend account. Only the user and driver roles
// can self-register; admin accounts are provisioned out of band.
// POST /register
func (h *AuthHandler) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		view := registerView{pageData: newPageData(r, "Create an account"), Role: string(model.RoleUser)}
		view.Error = "The submitted form could not be read."
		h.views.render(w, http.StatusBadRequest, "register", view)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")
	roleValue := r.PostFormValue("role")

	view := registerView{
		pageData: newPageData(r, "Create an account"),
		Username: username,
		Role:     roleValue,
	}

	role, err := model.ParseRole(roleValue)
	switch {
	case username == "" || password == "":
		view.Error = "Username and password are required."
	case len(password) < 8:
		view.Error = "The password must be at least 8 characters."
	case password != confirm:
		view.Error = "The passwords do not match."
	case err != nil || role == model.RoleAdmin:
		view.Error = "Choose the user or driver role."
	}
	if view.Error != "" {
		h.views.render(w, http.StatusUnprocessableEntity, "register", view)
		return
	}

	if apiErr := h.registrar.RegisterUser(r.Context(), username, password, role); apiErr != nil {
		view.Error = h.sanitizer.Sanitize(apiErr.Message)
		h.views.render(w, statusForAPIError(apiErr), "register", view)
		return
	}

	h.logger.Info("account registered",
		slog.String("username", username),
		slog.String("role", string(role)),
	)
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}
