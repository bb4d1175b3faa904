package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/go-admin-auth"
	"github.com/goliatone/go-admin-auth/activitymap"
	"github.com/goliatone/go-admin-auth/config"
	"github.com/goliatone/go-admin-auth/metrics"
	"github.com/goliatone/go-admin-auth/repository"
	"github.com/goliatone/go-print"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// App holds the wired server components
type App struct {
	config   *config.BaseConfig
	log      *logrus.Logger
	logger   auth.Logger
	repo     *repository.Manager
	auther   *auth.Auther
	httpAuth *auth.RouteAuthenticator
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	srv      *fiber.App
	audit    *os.File
}

func newLogrus(cfg config.Log, out io.Writer) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return l, nil
}

// NewApp wires persistence, the auth services and the http server
func NewApp(ctx context.Context, cfg *config.BaseConfig, out io.Writer) (*App, error) {
	lgr, err := newLogrus(cfg.Log, out)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:   cfg,
		log:      lgr,
		logger:   auth.NewLogrusLogger(lgr),
		registry: prometheus.NewRegistry(),
	}

	if cfg.Server.Debug {
		fmt.Fprintln(out, "============")
		fmt.Fprintln(out, print.MaybePrettyJSON(cfg.Redacted()))
		fmt.Fprintln(out, "============")
	}

	if cfg.IsDevelopmentKey() {
		app.logger.Warn("using the development signing key, set ADMIN_AUTH_SIGNING_KEY")
	}

	if err := WithPersistence(ctx, app); err != nil {
		return nil, err
	}

	if err := WithHTTPAuth(app); err != nil {
		_ = app.repo.Close()
		return nil, err
	}

	WithHTTPServer(app)

	return app, nil
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.config

	db, err := repository.Open(cfg.Persistence.Driver, cfg.Persistence.DSN)
	if err != nil {
		return err
	}

	driver := cfg.Persistence.Driver
	if driver == "" {
		driver = repository.DriverFromDSN(cfg.Persistence.DSN)
	}

	opts := []repository.Option{
		repository.WithHasher(auth.NewBcryptHasher(cfg.GetBcryptCost())),
		repository.WithLogger(app.logger),
	}
	if cfg.Server.Debug {
		opts = append(opts, repository.WithQueryDebug(app.log.WriterLevel(logrus.DebugLevel)))
	}

	app.repo = repository.NewManager(db, driver, opts...)
	app.repo.MustValidate()

	if err := app.repo.Migrate(ctx); err != nil {
		_ = app.repo.Close()
		return err
	}

	if _, err := app.repo.SeedAdmin(ctx, cfg.Seed.Email, cfg.Seed.Password); err != nil {
		_ = app.repo.Close()
		return err
	}

	return nil
}

func WithHTTPAuth(app *App) error {
	cfg := app.config
	store := app.repo.Admins()
	hasher := auth.NewBcryptHasher(cfg.GetBcryptCost())

	app.metrics = metrics.NewMetrics(app.registry)
	sinks := []auth.ActivitySink{auth.NewLoggerActivitySink(app.logger), app.metrics}

	if cfg.Log.AuditPath != "" {
		f, err := os.OpenFile(cfg.Log.AuditPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		app.audit = f
		sinks = append(sinks, activitymap.NewWriterSink(f))
	}
	sink := auth.MultiActivitySink(sinks...)

	tokens := auth.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		time.Duration(cfg.GetTokenExpiration())*time.Hour,
		cfg.GetIssuer(),
		app.logger,
	)

	app.auther = auth.NewAuthenticator(store, tokens,
		auth.WithAutherLogger(app.logger),
		auth.WithAutherActivitySink(sink),
		auth.WithAutherPasswordHasher(hasher),
	)

	rotation := auth.NewCredentialRotation(store, hasher,
		auth.WithRotationLogger(app.logger),
		auth.WithRotationActivitySink(sink),
	)

	httpAuth, err := auth.NewHTTPAuthenticator(app.auther, rotation, cfg,
		auth.WithValidationListener(auth.StoreBackedSessionCheck(store)),
		auth.WithRouteLogger(app.logger),
		auth.WithRouteActivitySink(sink),
	)
	if err != nil {
		return err
	}

	app.httpAuth = httpAuth
	return nil
}

func WithHTTPServer(app *App) {
	cfg := app.config

	srv := fiber.New(fiber.Config{
		AppName:               "admin-auth",
		DisableStartupMessage: !cfg.Server.Debug,
		ErrorHandler:          auth.FiberErrorHandler(app.logger),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	srv.Use(app.metrics.Middleware())

	srv.Get("/healthz", func(c *fiber.Ctx) error {
		if err := app.repo.Ping(c.UserContext()); err != nil {
			app.logger.Error("health check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}).Name("healthz")

	srv.Get("/metrics", metrics.Handler(app.registry)).Name("metrics")

	auth.RegisterAuthRoutes(srv.Group(cfg.GetRoutePrefix()),
		auth.WithControllerAuther(app.httpAuth),
		auth.WithControllerLogger(app.logger),
		auth.WithControllerDebug(cfg.Server.Debug),
		auth.WithControllerContextKey(cfg.GetContextKey()),
	)

	admin := srv.Group("/api/admin", app.httpAuth.ProtectedRoute())
	admin.Get("/session", func(c *fiber.Ctx) error {
		principal, ok := auth.GetPrincipal(c, cfg.GetContextKey())
		if !ok {
			return auth.ErrNoToken
		}
		return c.JSON(principal)
	}).Name("admin.session")

	app.srv = srv
}

// Close releases the database and the audit log
func (a *App) Close() error {
	var err error
	if a.audit != nil {
		err = a.audit.Close()
	}
	return errors.Join(err, a.repo.Close())
}

// Serve blocks until ctx is done, then drains the server
func (a *App) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", a.config.Server.Addr)
		errCh <- a.srv.Listen(a.config.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return errors.Join(err, a.Close())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.srv.ShutdownWithContext(shutdownCtx)
	err = errors.Join(err, a.Close())

	a.logger.Info("server stopped")
	return err
}
