package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/nightcapdev/hostdeck/internal/earn/http"
	"github.com/nightcapdev/hostdeck/internal/earn/metrics"
	"github.com/nightcapdev/hostdeck/internal/earn/service"
	"github.com/nightcapdev/hostdeck/internal/earn/store"
	"github.com/nightcapdev/hostdeck/internal/earn/store/drivers/sqlite"
	"github.com/nightcapdev/hostdeck/pkg/cryptox"
	"github.com/nightcapdev/hostdeck/pkg/slogx"
	"github.com/nightcapdev/hostdeck/pkg/trustsdk"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the earn service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	metrics *metrics.Metrics

	// Services
	sessionService      *service.SessionService
	csrfService         *service.CSRFService
	policyService       *service.PolicyService
	adsService          *service.AdsService
	walletService       *service.WalletService
	usersService        *service.UsersService
	recoveryService     *service.RecoveryService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "earn-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.CSRFSecret == "" || cfg.SessionSecret == "" || cfg.TicketSecret == "" {
		return nil, errors.New("EARN_CSRF_SECRET, EARN_SESSION_SECRET and EARN_TICKET_SECRET must be set")
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.metrics = metrics.New()
	app.initServices()
	app.initHTTP()

	if err := app.bootstrapAdmin(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("earn service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down earn service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("earn service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Store:  app.db,
		Secret: []byte(app.cfg.SessionSecret),
		TTL:    service.DefaultSessionTTL,
	}
	app.csrfService = service.NewCSRFService(app.cfg.CSRFSecret)
	app.policyService = &service.PolicyService{
		Base:    app.cfg.Policy,
		Metrics: app.metrics,
	}

	app.adsService = &service.AdsService{
		Store:        app.db,
		Policies:     app.policyService,
		Sessions:     app.sessionService,
		Metrics:      app.metrics,
		TicketSecret: app.cfg.TicketSecret,
		ClaimTTL:     app.cfg.ClaimTTL,
	}
	if app.cfg.ChallengeSecret != "" {
		app.adsService.Challenge = service.NewTurnstileVerifier(app.cfg.ChallengeSecret)
		app.logger.Info("challenge verification enabled")
	}

	app.walletService = &service.WalletService{Store: app.db}
	app.usersService = &service.UsersService{
		Store:    app.db,
		Sessions: app.sessionService,
	}
	app.recoveryService = &service.RecoveryService{
		Store:  app.db,
		Issuer: "hostdeck-earn",
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		trustsdk.DefaultSessionCookie,
		BuildVersion,
		app.cfg.SecureCookies,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.Metrics = app.metrics
	router.SessionService = app.sessionService
	router.CSRFService = app.csrfService
	router.PolicyService = app.policyService
	router.AdsService = app.adsService
	router.WalletService = app.walletService
	router.UsersService = app.usersService
	router.RecoveryService = app.recoveryService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler exposes the fully wired router, mainly for in-process testing.
func (app *Application) Handler() http.Handler {
	return app.router
}

// bootstrapAdmin creates the first admin account on an empty database when
// configured. Without a configured password the database stays empty and the
// deployment is expected to be seeded out of band.
func (app *Application) bootstrapAdmin(ctx context.Context) error {
	if app.cfg.AdminPassword == "" {
		return nil
	}

	empty, err := app.db.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for existing users: %w", err)
	}
	if !empty {
		return nil
	}

	user, err := app.sessionService.Register(ctx, app.cfg.AdminUsername, app.cfg.AdminPassword, true)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	app.logger.Info("bootstrap admin created", "user_id", user.ID, "username", user.Username)
	return nil
}
