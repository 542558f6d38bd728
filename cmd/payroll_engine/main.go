package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/SscSPs/payroll_engine/internal/adapters/archive"
	"github.com/SscSPs/payroll_engine/internal/adapters/authz"
	"github.com/SscSPs/payroll_engine/internal/adapters/events"
	"github.com/SscSPs/payroll_engine/internal/adapters/statement"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/core/services"
	"github.com/SscSPs/payroll_engine/internal/handlers"
	"github.com/SscSPs/payroll_engine/internal/middleware"
	"github.com/SscSPs/payroll_engine/internal/repositories/database/pgsql"
	"github.com/SscSPs/payroll_engine/pkg/config"
	"github.com/SscSPs/payroll_engine/pkg/database"
)

// @title Payroll Engine API
// @version 1.0
// @description Pay structure resolution, payroll calculation and currency approvals.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// one connection per calculation worker plus headroom for requests
	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, int32(cfg.CalcWorkers)+4, cfg.EnableDBCheck)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.ClosePgxPool(dbPool)
	logger.Info("Database connection pool established.")

	if cfg.RunMigrations {
		if err := runMigrations(cfg, logger); err != nil {
			logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	collab, closeCollab, err := buildCollaborators(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize collaborators", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeCollab()

	repos := pgsql.NewRepositoryProvider(dbPool)
	svc := services.NewServiceContainer(cfg, repos, collab)

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		logger.Error("Invalid rate limit", slog.String("rate", cfg.RateLimit), slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	handlers.RegisterRoutes(r, cfg, svc, rateLimiter)

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweepApprovals(ctx, svc.Approval, cfg.ApprovalSweepInterval, logger)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}
	<-sweeperDone

	// background resumptions triggered by approvals must finish before the pool closes
	if w, ok := svc.PayrollRun.(interface{ Wait() }); ok {
		w.Wait()
	}
	logger.Info("Shutdown complete")
}

func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Running database migrations...")
	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return err
	}

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return upErr
	}
	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

// buildCollaborators picks an adapter per integration. Unconfigured
// integrations fall back to local implementations.
func buildCollaborators(ctx context.Context, cfg *config.Config, logger *slog.Logger) (services.Collaborators, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	collab := services.Collaborators{
		Publisher: events.LogPublisher{},
		Archive:   archive.Noop{},
		Statement: statement.NewPDFRenderer(cfg.StatementTitle),
	}

	if cfg.ServiceBusConnectionString != "" {
		publisher, err := events.NewServiceBusPublisher(cfg.ServiceBusConnectionString, cfg.ServiceBusQueue)
		if err != nil {
			return collab, func() {}, err
		}
		collab.Publisher = publisher
		closers = append(closers, func() {
			if err := publisher.Close(context.WithoutCancel(ctx)); err != nil {
				logger.Error("Failed to close Service Bus publisher", slog.String("error", err.Error()))
			}
		})
		logger.Info("Approval events go to Service Bus", slog.String("queue", cfg.ServiceBusQueue))
	}

	if cfg.AuditArchiveDSN != "" {
		mysqlArchive, err := archive.NewMySQLArchive(cfg.AuditArchiveDSN)
		if err != nil {
			closeAll()
			return collab, func() {}, err
		}
		collab.Archive = mysqlArchive
		closers = append(closers, func() {
			if err := mysqlArchive.Close(); err != nil {
				logger.Error("Failed to close audit archive", slog.String("error", err.Error()))
			}
		})
		logger.Info("Compliance records are archived to MySQL")
	}

	if cfg.AuthzModelPath != "" && cfg.AuthzPolicyPath != "" {
		authorizer, err := authz.NewCasbinAuthorizer(cfg.AuthzModelPath, cfg.AuthzPolicyPath)
		if err != nil {
			closeAll()
			return collab, func() {}, err
		}
		collab.Authorizer = authorizer
	} else {
		logger.Warn("No approver policy configured; approver roles are not verified")
	}

	return collab, closeAll, nil
}

// sweepApprovals expires stale approval requests until ctx is done.
func sweepApprovals(ctx context.Context, approvals portssvc.ApprovalWriterSvc, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := approvals.ExpireStale(ctx, now.UTC())
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("Approval sweep failed", slog.String("error", err.Error()))
				}
				continue
			}
			if n > 0 {
				logger.Info("Expired stale approval requests", slog.Int("count", n))
			}
		}
	}
}
