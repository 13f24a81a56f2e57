package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stvsteam/regconsole/internal/middleware"
	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/security"
)

// RouterDeps bundles the dependencies NewRouter needs.
type RouterDeps struct {
	Logger *slog.Logger

	// Middleware
	SessionSource     middleware.SessionSource
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	Cookies           CookieConfig

	// Services
	AuthService   AuthServiceInterface
	Registrar     RegistrarInterface
	DriverService DriverServiceInterface
	StolenService StolenServiceInterface
	PublicService PublicServiceInterface
	Sticker       StickerGeneratorInterface

	// Security
	PhotoGuard security.PhotoClientService
	PhotoHTTP  *http.Client
	Sanitizer  security.TextSanitizerService

	// Observability
	LoginMetrics   LoginMetricsRecorder
	ForcedLogouts  ForcedLogoutRecorder
	MetricsHandler http.Handler

	// Health
	DB *sql.DB
}

// NewRouter builds the full route tree with its middleware chains.
//
// Middleware order, outermost first:
//
//	Recovery → SecurityHeaders → CORS → CSRF → [per group] Guard → Logging → RateLimit
//
// The guard runs before logging so request logs carry the username, and
// before the general rate limit so limits are keyed by session where one
// exists. /healthz and /metrics sit outside the chains; load balancers and
// scrapers poll them too often for rate limiting to make sense.
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	views, err := newViewRenderer()
	if err != nil {
		return nil, err
	}

	failure := newBackendFailure(deps.AuthService, deps.ForcedLogouts, deps.Cookies, deps.Logger)

	authHandler := NewAuthHandler(deps.AuthService, deps.Registrar, views, deps.Cookies, deps.Sanitizer, deps.LoginMetrics, deps.Logger)
	driverHandler := NewDriverHandler(deps.DriverService, deps.Sticker, deps.PhotoGuard, deps.PhotoHTTP, deps.Sanitizer, views, failure, deps.Logger)
	stolenHandler := NewStolenHandler(deps.StolenService, deps.Sanitizer, views, failure, deps.Logger)
	publicHandler := NewPublicHandler(deps.PublicService, views)
	healthHandler := NewHealthHandler(deps.DB)

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	// --- operational endpoints ---

	r.Get("/healthz", healthHandler.Check)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- public routes ---
	// The guard still resolves the session so views can show the identity.

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(deps.SessionSource, middleware.AccessNone()))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", publicHandler.Landing)
		r.Get("/login", authHandler.LoginPage)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.LoginSubmit)
		r.Get("/register", authHandler.RegisterPage)
		r.Post("/register", authHandler.RegisterSubmit)
		r.Get("/verify-driver/{id}", publicHandler.VerifyDriver)
		r.Get("/verify-plate", publicHandler.VerifyPlate)
	})

	// --- routes for any authenticated session ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(deps.SessionSource, middleware.AccessAuthenticated()))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/logout", authHandler.Logout)

		r.Route("/stolen-cars", func(r chi.Router) {
			r.Get("/", stolenHandler.Board)
			r.Post("/report", stolenHandler.SubmitReport)
			r.Post("/sighting", stolenHandler.SubmitSighting)
		})
	})

	// --- admin routes ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(deps.SessionSource, middleware.AccessRoles(model.RoleAdmin)))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/dashboard", driverHandler.Dashboard)

		r.Route("/drivers", func(r chi.Router) {
			r.Post("/", driverHandler.CreateDriver)
			r.Get("/photo", driverHandler.PhotoProxy)
			r.Get("/{id}/sticker.png", driverHandler.StickerPNG)
		})
	})

	// --- driver routes ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(deps.SessionSource, middleware.AccessRoles(model.RoleDriver)))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/my-profile", driverHandler.MyProfile)
	})

	return r, nil
}
