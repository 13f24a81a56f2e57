// Package app wires the console together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/stvsteam/regconsole/internal/auth"
	"github.com/stvsteam/regconsole/internal/config"
	"github.com/stvsteam/regconsole/internal/database"
	"github.com/stvsteam/regconsole/internal/handler"
	"github.com/stvsteam/regconsole/internal/logger"
	"github.com/stvsteam/regconsole/internal/metrics"
	"github.com/stvsteam/regconsole/internal/middleware"
	"github.com/stvsteam/regconsole/internal/model"
	"github.com/stvsteam/regconsole/internal/registry"
	"github.com/stvsteam/regconsole/internal/repository"
	"github.com/stvsteam/regconsole/internal/security"
	"github.com/stvsteam/regconsole/internal/session"
	"github.com/stvsteam/regconsole/internal/sticker"
	"github.com/stvsteam/regconsole/internal/worker/expire"
	"github.com/stvsteam/regconsole/internal/worker/probe"
)

const (
	// sessionPurgeInterval is how often expired session rows are purged.
	sessionPurgeInterval = time.Hour
	// backendProbeInterval is the healthy-state backend probe interval.
	backendProbeInterval = 30 * time.Second
)

// Init initializes the application: JSON structured logging first, then the
// configuration from environment variables. w receives the log output.
func Init(w io.Writer) (*config.Config, error) {
	// 1. logging first, so config errors are already structured
	logger.SetupDefault(w)

	// 2. configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run is the main entry point. It parses the subcommand from args and starts
// the corresponding mode. Pass os.Args[1:] as args.
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck is a lightweight subcommand; skip full initialization
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe starts the console server: it opens the database, wires every
// dependency, launches the background workers and serves HTTP until SIGINT
// or SIGTERM triggers a graceful shutdown.
func runServe(cfg *config.Config) error {
	// 1. database connection
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. repositories and session store
	sessionRepo := repository.NewPostgresSessionRepo(db)
	store := session.NewStore(sessionRepo, time.Duration(cfg.SessionMaxAge)*time.Second)

	// 3. metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(promRegistry, func() float64 {
		return float64(store.ActiveCount())
	})

	// 4. session lifecycle log
	store.Subscribe(func(id string, sess *model.Session) {
		if sess != nil {
			slog.Info("session installed",
				slog.String("username", sess.Username),
				slog.String("role", string(sess.Role)),
			)
			return
		}
		slog.Info("session cleared")
	})

	// 5. registry backend client
	backendClient := registry.NewClient(
		&http.Client{Timeout: cfg.BackendTimeout},
		cfg.BackendAPIURL,
		slog.Default(),
		collector,
	)

	// 6. authenticator
	authenticator := auth.NewAuthenticator(backendClient, store, slog.Default())

	// 7. security services
	photoGuard := security.NewPhotoClient()
	photoHTTP := photoGuard.NewSafeClient(cfg.BackendTimeout)
	sanitizer := security.NewTextSanitizer()

	// 8. sticker generator
	stickerGen := sticker.NewGenerator(cfg.BaseURL)

	// 9. rate limiter (config values are req/min, the limiter takes req/sec)
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.LoginRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
	rateLimiterCfg.LoginBurst = cfg.RateLimitLogin

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 10. router
	router, err := handler.NewRouter(&handler.RouterDeps{
		Logger: slog.Default(),

		SessionSource:     store,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Cookies: handler.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		},

		AuthService:   authenticator,
		Registrar:     backendClient,
		DriverService: backendClient,
		StolenService: backendClient,
		PublicService: backendClient,
		Sticker:       stickerGen,

		PhotoGuard: photoGuard,
		PhotoHTTP:  photoHTTP,
		Sanitizer:  sanitizer,

		LoginMetrics:   collector,
		ForcedLogouts:  collector,
		MetricsHandler: metrics.Handler(promRegistry),

		DB: db,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	// 11. background workers
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	purgeJob := expire.NewJob(sessionRepo, store, slog.Default())
	go purgeJob.Start(workerCtx, sessionPurgeInterval)

	prober := probe.NewProber(backendClient, collector, slog.Default(), backendProbeInterval)
	go prober.Start(workerCtx)

	// 12. HTTP server with graceful shutdown
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("console server starting",
			slog.String("addr", server.Addr),
			slog.String("backend", cfg.BackendAPIURL),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down console server...")
	cancelWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("console server stopped gracefully")
	return nil
}

// runMigrate applies all pending database migrations.
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck probes the local health endpoint.
// Subcommand for Docker health checks in distroless images.
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL masks the credential part of a database URL.
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
