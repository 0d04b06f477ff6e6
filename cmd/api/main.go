package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/DevDonal19/imparablesmujeres/internal/api/http"
	"github.com/DevDonal19/imparablesmujeres/internal/api/http/handlers"
	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	"github.com/DevDonal19/imparablesmujeres/internal/config"
	"github.com/DevDonal19/imparablesmujeres/internal/events"
	"github.com/DevDonal19/imparablesmujeres/internal/observability"
	"github.com/DevDonal19/imparablesmujeres/internal/persistence"
	"github.com/DevDonal19/imparablesmujeres/internal/repository"
	"github.com/DevDonal19/imparablesmujeres/internal/service"
	"github.com/DevDonal19/imparablesmujeres/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(dispatcher, logger)

	userRepo, store, closeStore := openCredentialStore(ctx, cfg, logger)
	defer closeStore()

	authService, err := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: userRepo,
		Logger:   logger,
		Metrics:  metrics,
		Events:   dispatcher,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}
	authService.BootstrapAdmin(ctx, cfg.Auth)

	userService := service.NewUserService(service.UserDependencies{
		UserRepo:  userRepo,
		Passwords: authService.Passwords(),
		Logger:    logger,
		Events:    dispatcher,
	})

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:         logger,
		Metrics:        metrics,
		Timeout:        cfg.App.RequestTimeout(),
		AllowedOrigins: cfg.App.AllowedOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{cfg.Store.Driver: store}),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// openCredentialStore connects the configured principal store.
func openCredentialStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.UserRepository, handlers.Pinger, func()) {
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := persistence.OpenPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		return repository.NewUserRepository(pg.Pool()), pg, pg.Close
	default:
		db, err := persistence.NewSQLite(ctx, cfg.Store.SQLiteDSN, logger)
		if err != nil {
			logger.Fatal("failed to open sqlite", zap.Error(err))
		}
		return repository.NewSQLiteUserRepository(db.DB), db, db.Close
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
