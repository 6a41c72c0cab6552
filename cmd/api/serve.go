package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/issue-tracker/internal/api/http"
	"github.com/spec-kit/issue-tracker/internal/api/http/handlers"
	"github.com/spec-kit/issue-tracker/internal/auth"
	"github.com/spec-kit/issue-tracker/internal/cache"
	"github.com/spec-kit/issue-tracker/internal/config"
	"github.com/spec-kit/issue-tracker/internal/events"
	"github.com/spec-kit/issue-tracker/internal/identity"
	"github.com/spec-kit/issue-tracker/internal/integrations/assist"
	"github.com/spec-kit/issue-tracker/internal/integrations/jira"
	"github.com/spec-kit/issue-tracker/internal/observability"
	"github.com/spec-kit/issue-tracker/internal/persistence"
	"github.com/spec-kit/issue-tracker/internal/repository"
	"github.com/spec-kit/issue-tracker/internal/service"
	"github.com/spec-kit/issue-tracker/internal/worker"
)

const (
	outboundTimeout = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger, nil
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	return persistence.RunMigrations(ctx, cfg.Postgres.DSN, logger)
}

// storage holds the document store and its backing connections.
type storage struct {
	pg          *persistence.Postgres
	redis       *persistence.Redis
	store       repository.Store
	repos       *repository.Repositories
	initializer *persistence.Initializer
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &storage{pg: pg, redis: persistence.NewRedis(cfg.Redis, logger)}

	if pg.Enabled() {
		s.store = repository.NewPostgresStore(pg.Pool())
	} else {
		s.store = repository.NewMemoryStore()
	}
	s.repos = repository.NewRepositories(s.store, nil)
	s.initializer = persistence.NewInitializer(func(ctx context.Context) error {
		if !pg.Enabled() || !cfg.Postgres.RunMigrations {
			return nil
		}
		return runMigrations(ctx, cfg, logger)
	}, logger)
	return s, nil
}

func (s *storage) Close() {
	s.redis.Close()
	s.pg.Close()
}

func buildVerifier(ctx context.Context, cfg *config.Config, s *storage, logger *zap.Logger) (identity.Verifier, error) {
	var verifier identity.Verifier
	switch cfg.Identity.Provider {
	case config.IdentityProviderStytch:
		stytch, err := identity.NewStytchVerifier(ctx, identity.StytchConfig{
			ProjectID:      cfg.Identity.ProjectID,
			Secret:         cfg.Identity.Secret,
			APIBaseURL:     cfg.Identity.APIBaseURL,
			MemberCacheTTL: cfg.Identity.MemberCacheTTL(),
		}, observability.NewHTTPClient(outboundTimeout), logger)
		if err != nil {
			return nil, err
		}
		verifier = stytch
	default:
		logger.Warn("using the local identity provider; do not use in production")
		verifier = identity.NewLocalVerifier(cfg.Identity.JWTSecret, cfg.Identity.TokenTTL())
	}
	return identity.NewCachingVerifier(verifier, s.redis.Client(), cfg.Redis.IdentityCacheTTL(), logger), nil
}

func buildTracker(cfg *config.Config, logger *zap.Logger) (service.IssueTracker, error) {
	if !cfg.Jira.Enabled() {
		logger.Info("jira not configured; escalation disabled")
		return nil, nil
	}
	client, err := jira.NewJiraClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken, observability.NewHTTPClient(outboundTimeout), logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func buildReporter(cfg *config.Config, logger *zap.Logger) service.BugReporter {
	if !cfg.Assist.Enabled() {
		return nil
	}
	return assist.NewClient(cfg.Assist.BaseURL, cfg.Assist.APIKey, cfg.Assist.Model, observability.NewHTTPClient(60*time.Second), logger)
}

func runServer(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.initializer.Ensure(ctx); err != nil {
		// Readiness keeps retrying through the initializer.
		logger.Error("initial store setup failed", zap.Error(err))
	}

	verifier, err := buildVerifier(ctx, cfg, st, logger)
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}
	tracker, err := buildTracker(cfg, logger)
	if err != nil {
		return fmt.Errorf("jira: %w", err)
	}

	metrics := observability.NewMetrics()
	resolver := auth.NewSessionResolver(auth.ResolverConfig{
		ExternalOrganizationID: cfg.Identity.ExternalOrganization,
		RequireOrganization:    cfg.Identity.Provider == config.IdentityProviderStytch,
	}, auth.ResolverDependencies{
		Verifier:      verifier,
		Organizations: st.repos.Organizations,
		Users:         st.repos.Users,
		Logger:        logger,
		Metrics:       metrics,
	})
	guard := auth.NewGuard(resolver)
	dispatcher := events.NewInMemoryDispatcher(logger)
	stats := cache.NewStatsCache(st.redis.Client(), cfg.Redis.StatsCacheTTL(), logger)

	notifier := worker.NewNotificationWorker(
		service.NewNotificationService(logger, cfg.Notification, observability.NewHTTPClient(outboundTimeout)),
		256, 2, logger,
	)
	notifier.Register(dispatcher)
	notifier.Start()

	issueService := service.NewIssueService(service.IssueDependencies{
		Guard:        guard,
		Repositories: st.repos,
		Dispatcher:   dispatcher,
		Stats:        stats,
		Reporter:     buildReporter(cfg, logger),
		Metrics:      metrics,
		Logger:       logger,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		Guard:        guard,
		Repositories: st.repos,
		Tracker:      tracker,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	reconcileService := service.NewReconcileService(guard, st.repos, metrics, logger)

	var reconciler *worker.ReconcileWorker
	if cfg.Worker.ReconcileSchedule != "" {
		reconciler, err = worker.NewReconcileWorker(cfg.Worker.ReconcileSchedule, reconcileService, logger)
		if err != nil {
			return err
		}
		reconciler.Start()
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:  cfg.App.RequestTimeout(),
		LoginURL: cfg.App.LoginURL,
	})

	var redisPinger handlers.Pinger
	if st.redis.Client() != nil {
		redisPinger = st.redis
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Guard:        guard,
		Tokens:       auth.NewTokenMiddleware(cfg.App.SessionCookieName),
		Metrics:      metrics,
		Health:       handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st.initializer, st.store, redisPinger),
		Session:      handlers.NewSessionHandler(guard, cfg.App.SessionCookieName, cfg.App.Env == "production"),
		Issues:       handlers.NewIssuesHandler(issueService, escalationService),
		Customers:    handlers.NewCustomersHandler(service.NewCustomerService(guard, st.repos, logger)),
		Catalog:      handlers.NewCatalogHandler(service.NewCatalogService(guard, st.repos)),
		Users:        handlers.NewUsersHandler(service.NewUserService(guard, st.repos, verifier, logger)),
		Settings:     handlers.NewSettingsHandler(service.NewOrganizationService(guard, st.repos)),
		Dashboard:    handlers.NewDashboardHandler(service.NewDashboardService(guard, st.repos, stats, logger, nil)),
		Maintenance:  handlers.NewMaintenanceHandler(reconcileService),
		Integrations: handlers.NewIntegrationsHandler(escalationService),
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case <-waitForShutdown(logger):
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if reconciler != nil {
		reconciler.Stop(shutdownCtx)
	}
	notifier.Stop(shutdownCtx)
	return nil
}

func runReconcile(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if !st.pg.Enabled() {
		return errors.New("POSTGRES_DSN is required for reconcile")
	}
	if err := st.initializer.Ensure(ctx); err != nil {
		return err
	}

	reconciler := service.NewReconcileService(nil, st.repos, observability.NewMetrics(), logger)
	reports, err := reconciler.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	for _, report := range reports {
		logger.Info("organization reconciled",
			zap.String("organization_id", report.OrganizationID),
			zap.Int("customers", report.CustomersChecked),
			zap.Int("drifts", len(report.Drifts)),
		)
	}
	return nil
}

type tokenInput struct {
	MemberID       string
	OrganizationID string
	Name           string
	Email          string
}

func runToken(out io.Writer, in tokenInput) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	verifier := identity.NewLocalVerifier(cfg.Identity.JWTSecret, cfg.Identity.TokenTTL())
	token, expiresAt, err := verifier.Issue(identity.IssueInput{
		MemberID:       in.MemberID,
		OrganizationID: in.OrganizationID,
		Name:           in.Name,
		Email:          in.Email,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
	return err
}

func waitForShutdown(logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		close(done)
	}()
	return done
}
