package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neogan74/auditledger/internal/activity"
	"github.com/neogan74/auditledger/internal/auth"
	"github.com/neogan74/auditledger/internal/config"
	"github.com/neogan74/auditledger/internal/directory"
	"github.com/neogan74/auditledger/internal/handlers"
	"github.com/neogan74/auditledger/internal/inventory"
	"github.com/neogan74/auditledger/internal/ledger"
	"github.com/neogan74/auditledger/internal/logger"
	"github.com/neogan74/auditledger/internal/metrics"
	"github.com/neogan74/auditledger/internal/middleware"
	"github.com/neogan74/auditledger/internal/persistence"
	"github.com/neogan74/auditledger/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Builder wires auditledger application dependencies.
type Builder struct {
	cfg        *config.Config
	version    string
	logger     logger.Logger
	fiberApp   *fiber.App
	engine     persistence.Engine
	ledger     *ledger.Ledger
	directory  directory.Directory
	service    *inventory.Service
	trail      *activity.Trail
	jwtService *auth.JWTService
	closers    []func()
}

// NewBuilder creates a new application builder.
func NewBuilder(cfg *config.Config, version string) *Builder {
	return &Builder{cfg: cfg, version: version}
}

// Build assembles the application components.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	b.initLogger()
	b.recordStartupMetrics()
	b.initFiber()
	b.initTracing(ctx)
	b.initMiddleware()

	if err := b.initPersistence(); err != nil {
		b.cleanupOnError()
		return nil, err
	}

	if err := b.initLedger(); err != nil {
		b.cleanupOnError()
		return nil, err
	}

	if err := b.initDirectory(ctx); err != nil {
		b.cleanupOnError()
		return nil, err
	}

	if err := b.initActivity(); err != nil {
		b.cleanupOnError()
		return nil, err
	}

	b.initService()
	b.initHandlers()

	return &App{
		cfg:      b.cfg,
		version:  b.version,
		logger:   b.logger,
		fiberApp: b.fiberApp,
		closers:  b.closers,
	}, nil
}

func (b *Builder) initLogger() {
	b.logger = logger.NewFromConfig(b.cfg.Log.Level, b.cfg.Log.Format)
	logger.SetDefault(b.logger)
}

func (b *Builder) recordStartupMetrics() {
	metrics.BuildInfo.WithLabelValues(b.version, runtime.Version()).Set(1)

	b.logger.Info("Starting auditledger",
		logger.String("version", b.version),
		logger.String("address", b.cfg.Address()),
		logger.String("log_level", b.cfg.Log.Level),
		logger.String("log_format", b.cfg.Log.Format),
		logger.String("persistence_type", b.cfg.Persistence.Type),
		logger.String("directory_type", b.cfg.Directory.Type),
	)
}

func (b *Builder) initFiber() {
	b.fiberApp = fiber.New(fiber.Config{
		AppName:               "auditledger",
		DisableStartupMessage: true,
	})
}

func (b *Builder) initTracing(ctx context.Context) {
	provider, err := telemetry.Setup(ctx, b.cfg.Tracing)
	if err != nil {
		b.logger.Error("Failed to initialize tracing", logger.Error(err))
		return
	}

	if provider.Enabled() {
		b.logger.Info("OpenTelemetry tracing initialized",
			logger.String("endpoint", b.cfg.Tracing.Endpoint),
			logger.String("service_name", b.cfg.Tracing.ServiceName),
		)

		b.addCloser(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				b.logger.Error("Failed to shutdown tracer provider", logger.Error(err))
			}
		})
	}

}

func (b *Builder) initMiddleware() {
	if b.cfg.Tracing.Enabled {
		b.fiberApp.Use(middleware.TracingMiddleware(b.cfg.Tracing.ServiceName))
	}

	b.fiberApp.Use(middleware.RequestLogging(b.logger))
	b.fiberApp.Use(middleware.MetricsMiddleware())

	// Without bearer auth the actor comes from X-Actor-ID.
	if !b.cfg.Auth.Enabled {
		b.fiberApp.Use(middleware.HeaderIdentity(b.cfg.Auth.RequireAuth, b.cfg.Auth.PublicPaths))
		return
	}

	b.jwtService = auth.NewJWTService(b.cfg.Auth.JWTSecret, b.cfg.Auth.JWTExpiry, b.cfg.Auth.Issuer)
	b.fiberApp.Use(middleware.JWTAuth(b.jwtService, b.cfg.Auth.PublicPaths))
	b.logger.Info("Bearer authentication enabled",
		logger.String("issuer", b.cfg.Auth.Issuer),
		logger.Strings("public_paths", b.cfg.Auth.PublicPaths))
}

func (b *Builder) initPersistence() error {
	engine, err := persistence.NewEngine(persistence.Config{
		Type:       b.cfg.Persistence.Type,
		DataDir:    b.cfg.Persistence.DataDir,
		BackupDir:  b.cfg.Persistence.BackupDir,
		SyncWrites: b.cfg.Persistence.SyncWrites,
	}, b.logger.Named("persistence"))
	if err != nil {
		return fmt.Errorf("failed to initialize persistence engine: %w", err)
	}

	b.engine = engine

	b.addCloser(func() {
		if err := engine.Close(); err != nil {
			b.logger.Error("Failed to close persistence engine", logger.Error(err))
		}
	})

	return nil
}

func (b *Builder) initLedger() error {
	signer, err := ledger.NewSigner(b.cfg.Ledger.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger signer: %w", err)
	}
	b.ledger = ledger.New(b.engine, signer, b.logger.Named("ledger"))
	return nil
}

func (b *Builder) initDirectory(ctx context.Context) error {
	switch b.cfg.Directory.Type {
	case "postgres":
		pg, err := directory.OpenPostgres(b.cfg.Directory.DSN, b.logger.Named("directory"))
		if err != nil {
			return err
		}
		b.addCloser(func() {
			if err := pg.Close(); err != nil {
				b.logger.Error("Failed to close asset directory", logger.Error(err))
			}
		})
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate asset directory: %w", err)
		}
		b.directory = pg

	default:
		if b.cfg.Directory.SeedFile == "" {
			b.logger.Warn("Asset directory is empty, set AUDITLEDGER_DIRECTORY_SEED to load assets")
			b.directory = directory.NewMemoryDirectory()
			return nil
		}
		mem, err := directory.LoadSeed(b.cfg.Directory.SeedFile)
		if err != nil {
			return err
		}
		b.logger.Info("Loaded asset directory seed", logger.String("path", b.cfg.Directory.SeedFile))
		b.directory = mem
	}
	return nil
}

func (b *Builder) initActivity() error {
	trail, err := activity.New(activity.Config{
		Enabled:       b.cfg.Activity.Enabled,
		Sink:          b.cfg.Activity.Sink,
		FilePath:      b.cfg.Activity.FilePath,
		BufferSize:    b.cfg.Activity.BufferSize,
		FlushInterval: b.cfg.Activity.FlushInterval,
	}, b.logger.Named("activity"))
	if err != nil {
		return fmt.Errorf("failed to initialize activity trail: %w", err)
	}
	if trail == nil {
		return nil
	}

	b.trail = trail
	b.addCloser(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := trail.Shutdown(shutdownCtx); err != nil {
			b.logger.Error("Failed to shutdown activity trail", logger.Error(err))
		}
	})
	return nil
}

func (b *Builder) initService() {
	b.service = inventory.NewService(b.engine, b.ledger, b.directory, inventory.SystemClock(), inventory.Options{
		SampleSize:         b.cfg.Engine.SampleSize,
		CyclicStaleness:    b.cfg.Engine.CyclicStaleness,
		CollectConcurrency: b.cfg.Engine.CollectConcurrency,
		OperationTimeout:   b.cfg.Engine.OperationTimeout,
		VerifyBatchSize:    b.cfg.Engine.VerifyBatchSize,
		ItemChunkSize:      b.cfg.Engine.ItemChunkSize,
	}, b.logger.Named("inventory"))
}

func (b *Builder) initHandlers() {
	auditHandler := handlers.NewAuditHandler(b.service)
	ledgerHandler := handlers.NewLedgerHandler(b.service)
	healthHandler := handlers.NewHealthHandler(b.engine, b.directory, b.version)
	backupHandler := handlers.NewBackupHandler(b.engine, b.cfg.Persistence.BackupDir, b.logger.Named("backup"))

	b.fiberApp.Get("/health", healthHandler.Check)
	b.fiberApp.Get("/health/live", healthHandler.Liveness)
	b.fiberApp.Get("/health/ready", healthHandler.Readiness)

	audits := b.fiberApp.Group("/audits", middleware.Activity(middleware.ActivityConfig{
		Trail:        b.trail,
		ResourceType: "audit",
		Operation:    middleware.AuditOperation,
	}))
	audits.Post("/", auditHandler.Create)
	audits.Get("/", auditHandler.List)
	audits.Get("/:id", auditHandler.Get)
	audits.Get("/:id/items", auditHandler.Items)
	audits.Get("/:id/count-list", auditHandler.CountList)
	audits.Put("/:id/start", auditHandler.Start)
	audits.Post("/:id/readings", auditHandler.Collect)
	audits.Put("/:id/reconcile", auditHandler.Reconcile)
	audits.Get("/:id/report", auditHandler.Report)
	audits.Put("/:id/finalize", auditHandler.Finalize)
	audits.Put("/:id/cancel", auditHandler.Cancel)

	b.fiberApp.Get("/ledger/:asset", ledgerHandler.Entries)
	b.fiberApp.Get("/ledger/:asset/verify", ledgerHandler.Verify)

	admin := b.fiberApp.Group("/admin", middleware.Activity(middleware.ActivityConfig{
		Trail:        b.trail,
		ResourceType: "backup",
		Operation:    func(*fiber.Ctx) string { return "backup.create" },
	}))
	if b.jwtService != nil {
		admin.Use(middleware.RequireRole("admin"))
	}
	admin.Post("/backup", backupHandler.CreateBackup)
	admin.Get("/backups", backupHandler.ListBackups)

	b.fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (b *Builder) addCloser(closer func()) {
	b.closers = append(b.closers, closer)
}

func (b *Builder) cleanupOnError() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// App represents a configured application ready to run.
type App struct {
	cfg      *config.Config
	version  string
	logger   logger.Logger
	fiberApp *fiber.App
	closers  []func()
}

// Handler exposes the HTTP application, mainly for in-process tests.
func (a *App) Handler() *fiber.App {
	return a.fiberApp
}

// Run starts the application and handles graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Server starting", logger.String("address", a.cfg.Address()))

	serverErr := make(chan error, 1)

	go func() {
		serverErr <- a.fiberApp.Listen(a.cfg.Address())
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("Failed to start server", logger.Error(err))
			a.runClosers()
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")

	if err := a.fiberApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
		a.logger.Error("Server forced to shutdown", logger.Error(err))
	}

	a.runClosers()

	if err := <-serverErr; err != nil {
		return err
	}

	a.logger.Info("Server exited gracefully")
	return nil
}

// Close releases resources without running the server.
func (a *App) Close() {
	a.runClosers()
}

func (a *App) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
