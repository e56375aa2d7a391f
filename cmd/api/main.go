package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fieldops/dispatch-service/internal/api/http"
	"github.com/fieldops/dispatch-service/internal/api/http/handlers"
	"github.com/fieldops/dispatch-service/internal/auth"
	"github.com/fieldops/dispatch-service/internal/config"
	"github.com/fieldops/dispatch-service/internal/events"
	"github.com/fieldops/dispatch-service/internal/geocoder"
	"github.com/fieldops/dispatch-service/internal/notify"
	"github.com/fieldops/dispatch-service/internal/observability"
	"github.com/fieldops/dispatch-service/internal/persistence"
	"github.com/fieldops/dispatch-service/internal/repository"
	"github.com/fieldops/dispatch-service/internal/service"
	"github.com/fieldops/dispatch-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, redisErr := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	var geo geocoder.Geocoder = geocoder.NewNominatimClient(cfg.Geocoder)
	if redisErr == nil {
		geo = geocoder.NewCachedGeocoder(geo, redis.Client, cfg.Geocoder.CacheTTL(), redis.OpTimeout(), logger)
	} else {
		logger.Warn("geocode cache and event stream disabled", zap.Error(redisErr))
	}

	store := repository.NewStore(pool)
	hazardRepo := repository.NewHazardRepository(pool)
	inbox := repository.NewNotificationRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(logger)
	if redisErr == nil {
		events.NewStreamRelay(redis.Client, cfg.Notification.StreamKey, redis.OpTimeout(), logger).Register(dispatcher)
	}

	var sink notify.Sink = notify.NewLogSink(logger)
	if cfg.Notification.RelayURL != "" {
		sink = notify.NewHTTPRelaySink(cfg.Notification.RelayURL)
	}
	mailer := worker.NewNotificationWorker(sink, cfg.Notification, logger)
	mailer.Start()

	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Deliverer:  mailer,
		Inbox:      inbox,
		Logger:     logger,
	})
	notifications.RegisterHandlers()
	history := service.NewHistoryService(service.HistoryDependencies{
		HistoryRepo: historyRepo,
		TicketRepo:  store.Tickets(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	history.RegisterHandlers()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Store:    store,
		Geocoder: geo,
		Logger:   logger,
	})
	assignment, err := service.NewAssignmentService(service.AssignmentDependencies{
		Store:      store,
		Geocoder:   geo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Config:     cfg.Assignment,
	})
	if err != nil {
		logger.Fatal("failed to build assignment engine", zap.Error(err))
	}
	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Store:           store,
		Dispatcher:      dispatcher,
		Metrics:         metrics,
		Logger:          logger,
		MaxWriteRetries: cfg.Assignment.MaxWriteRetries,
	})
	admin := service.NewAdminService(service.AdminDependencies{
		Store:           store,
		Dispatcher:      dispatcher,
		Metrics:         metrics,
		Logger:          logger,
		MaxWriteRetries: cfg.Assignment.MaxWriteRetries,
	})
	profiles := service.NewProfileService(service.ProfileDependencies{
		Store:           store,
		Geocoder:        geo,
		Metrics:         metrics,
		Logger:          logger,
		MaxWriteRetries: cfg.Assignment.MaxWriteRetries,
	})
	tickets := service.NewTicketService(service.TicketDependencies{TicketRepo: store.Tickets()})
	hazards := service.NewHazardService(service.HazardDependencies{
		HazardRepo: hazardRepo,
		Geocoder:   geo,
		Logger:     logger,
	})

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Credentials(), cfg.Auth.CookieName)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.CORSAllowOrigins)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Users:          handlers.NewUsersHandler(authService, assignment, profiles, cfg.Auth.CookieName),
		Tickets:        handlers.NewTicketsHandler(tickets, lifecycle),
		Admin:          handlers.NewAdminHandler(admin, lifecycle, history),
		Hazards:        handlers.NewHazardsHandler(hazards),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	mailer.Stop()
	logger.Info("notification queue drained")
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
