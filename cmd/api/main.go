package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parkly/internal/api"
	"parkly/internal/config"
	"parkly/internal/database"
	"parkly/internal/domain"
	"parkly/internal/events"
	"parkly/internal/export"
	"parkly/internal/logging"
	"parkly/internal/metrics"
	"parkly/internal/repository"
	"parkly/internal/service"
	"parkly/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	sessionTTL := time.Duration(cfg.API.SessionTTL) * time.Second
	sessions := initSessions(cfg, sessionTTL, logger)

	eventBus := events.NewEventBus()
	subscribeEventLog(eventBus, logger)

	reportWriter := export.NewReportWriter(cfg.Exports.Path, logger)
	reportWorker := worker.NewReportWorker(db, reportWriter, worker.DefaultRetryPolicy(),
		logging.ForComponent(logger, "report_worker"))

	parkingService := service.NewParkingService(db, eventBus, reportWorker, logger)
	lotService := service.NewLotService(db, eventBus, logger)
	userService := service.NewUserService(db, sessions, cfg.Admins, sessionTTL, logger)

	httpServer := api.NewHTTPServer(cfg.API, parkingService, lotService, userService, sessions, reportWriter,
		logging.ForComponent(logger, "http"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reportWorker.Start(ctx)

	backupService := database.NewBackupService(db, cfg.Backup,
		logging.ForComponent(logger, "backup"))
	go backupService.Start(ctx)

	startMetrics(ctx, cfg, logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("parkly API started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("parkly API stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.ForComponent(baseLogger, "main"), closer, nil
}

// initSessions wires the session store: Redis fronted by an in-memory
// fallback when the address is configured and reachable, memory-only
// otherwise.
func initSessions(cfg *config.Config, ttl time.Duration, logger *zerolog.Logger) domain.SessionRepository {
	memory := repository.NewMemorySessionRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory sessions")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, using in-memory sessions")
		return memory
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return repository.NewFailoverSessionRepository(
		repository.NewRedisSessionRepository(client, ttl),
		memory,
		logger,
	)
}

func subscribeEventLog(bus *events.EventBus, logger *zerolog.Logger) {
	for _, eventType := range []string{
		events.EventSpotBooked,
		events.EventSpotReserved,
		events.EventSpotReleased,
		events.EventLotCreated,
		events.EventLotDeleted,
	} {
		bus.Subscribe(eventType, func(event *events.Event) error {
			logger.Debug().Str("event_type", event.Type).RawJSON("payload", event.Payload).Msg("event")
			return nil
		})
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
