package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/loveshotsmedia/l3arn-updated/config"
	"github.com/loveshotsmedia/l3arn-updated/handlers"
	"github.com/loveshotsmedia/l3arn-updated/jwks"
	"github.com/loveshotsmedia/l3arn-updated/middleware"
	"github.com/loveshotsmedia/l3arn-updated/repositories"
	"github.com/loveshotsmedia/l3arn-updated/repositories/postgres"
	"github.com/loveshotsmedia/l3arn-updated/requestctx"
	"github.com/loveshotsmedia/l3arn-updated/services/audit"
	"github.com/loveshotsmedia/l3arn-updated/tenant"
	"github.com/loveshotsmedia/l3arn-updated/verifier"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	// DB is nil when DATABASE_URL is unset
	DB *postgres.DB

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	AuditLogs repositories.AuditRepository

	// Services
	AuditService *audit.AuditService

	// Auth
	KeyCache       *jwks.Cache
	Verifier       *verifier.Verifier
	Resolver       *tenant.Resolver
	Builder        *requestctx.Builder
	AuthMiddleware *middleware.AuthMiddleware

	// Handlers
	HealthHandler *handlers.HealthHandler
	UserHandler   *handlers.UserHandler
	AuditHandler  *handlers.AuditHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initAudit(cfg); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize audit service: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the audit database when one is configured
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Warn("DATABASE_URL not set, audit events will only be logged")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitAuditSchema(ctx); err != nil {
		d.closeDatabase()
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories picks the audit repository for the configured backend
func (d *Dependencies) initRepositories() {
	if d.RepoFactory == nil {
		d.AuditLogs = audit.NewLogRepository(d.Logger)
		return
	}

	repos := d.RepoFactory.NewRepositories()
	d.AuditLogs = repos.AuditLogs
	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initAudit(cfg *config.Config) error {
	d.AuditService = audit.NewAuditService(d.AuditLogs, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	return d.AuditService.Start()
}

// initAuth wires the key-set cache, token verifier and tenant resolver into the auth middleware
func (d *Dependencies) initAuth(cfg *config.Config) error {
	fetcher := jwks.NewHTTPFetcher(cfg.Supabase.JWKSURL, &http.Client{Timeout: cfg.Auth.JWKSHTTPTimeout}, d.Logger)
	d.KeyCache = jwks.NewCache(fetcher, jwks.Config{
		TTL:          cfg.Auth.JWKSCacheTTL,
		FetchTimeout: cfg.Auth.JWKSHTTPTimeout,
	}, d.Logger)

	v, err := verifier.New(d.KeyCache, verifier.Config{
		Audience:          cfg.Auth.Audience,
		AllowedAlgorithms: cfg.Auth.AllowedAlgorithms,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.Verifier = v

	if cfg.Supabase.ServiceRoleKey == "" {
		d.Logger.Warn("SUPABASE_SERVICE_ROLE_KEY not set, tenant lookups will be rejected by the store")
	}
	store := tenant.NewRESTStore(cfg.Supabase.URL, cfg.Supabase.ServiceRoleKey, cfg.Supabase.StoreTimeout, d.Logger)
	d.Resolver = tenant.NewResolver(store, d.Logger)

	d.Builder = requestctx.NewBuilder(d.Verifier, d.Resolver, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Builder, d.AuditService, d.Logger)

	d.Logger.Info("auth initialized",
		zap.String("jwks_url", cfg.Supabase.JWKSURL),
		zap.Strings("algorithms", cfg.Auth.AllowedAlgorithms),
		zap.Duration("jwks_ttl", cfg.Auth.JWKSCacheTTL))
	return nil
}

func (d *Dependencies) initHandlers() {
	var db *sql.DB
	if d.DB != nil {
		db = d.DB.DB
	}
	var keys handlers.KeySource
	if d.KeyCache != nil {
		keys = d.KeyCache
	}
	var auditStats handlers.AuditStatsSource
	if d.AuditService != nil {
		auditStats = d.AuditService
	}

	d.HealthHandler = handlers.NewHealthHandler(db, keys, auditStats, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.AuditService, d.Logger)
}

func (d *Dependencies) closeDatabase() {
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
		d.RepoFactory = nil
		d.DB = nil
	}
}

// Close gracefully shuts down all dependencies. Queued audit events are flushed
// before the database is closed.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.AuditService != nil {
		if err := d.AuditService.Stop(d.Config.Server.ShutdownTimeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
		d.DB = nil
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
