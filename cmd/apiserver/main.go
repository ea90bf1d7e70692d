// API server entry point: REST profiling endpoints, async jobs, clause
// search and the optional gRPC health service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/turtacn/clauselens/internal/app"
	"github.com/turtacn/clauselens/internal/application/jobs"
	"github.com/turtacn/clauselens/internal/config"
	"github.com/turtacn/clauselens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	grpcserver "github.com/turtacn/clauselens/internal/interfaces/grpc"
	httpserver "github.com/turtacn/clauselens/internal/interfaces/http"
	"github.com/turtacn/clauselens/internal/interfaces/http/handlers"
	"github.com/turtacn/clauselens/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const healthCheckInterval = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults and CLAUSELENS_* env when empty)")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC health port (overrides config)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	loader, err := config.NewLoader(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg, err := loader.Config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.HTTP.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.Server.GRPC.Port = *grpcPort
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	loader.Watch(func(next *config.Config) {
		if logging.SetLevel(logger, next.Logging.Level) {
			logger.Info("log level reloaded", logging.String("level", next.Logging.Level))
		}
	}, func(err error) {
		logger.Warn("config reload rejected", logging.Err(err))
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("api server exited", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	logger.Info("starting clauselens api server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("build_date", buildDate),
		logging.Int("http_port", cfg.Server.HTTP.Port),
		logging.Bool("grpc", cfg.Server.GRPC.Enabled),
		logging.Bool("kafka", cfg.Kafka.Enabled),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	infra, err := app.Open(startCtx, cfg, logger)
	cancelStart()
	if err != nil {
		return err
	}
	defer infra.Close()

	publisher, stopQueue, err := jobPublisher(cfg, infra, logger)
	if err != nil {
		return err
	}
	jobService, err := infra.NewJobService(publisher)
	if err != nil {
		return err
	}

	checks := infra.Checks()
	healthCheckers := make([]handlers.HealthChecker, len(checks))
	grpcCheckers := make([]grpcserver.Checker, len(checks))
	for i, c := range checks {
		healthCheckers[i] = c
		grpcCheckers[i] = c
	}

	gin.SetMode(cfg.Server.HTTP.Mode)
	routerCfg := httpserver.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(version, infra.Profiler.Model(), healthCheckers...),
		ProfileHandler: handlers.NewProfileHandler(infra.Profiler, logger),
		JobHandler:     handlers.NewJobHandler(jobService, logger),
		Logger:         logger,
		Metrics:        infra.Metrics,
		Logging:        middleware.DefaultLoggingConfig(),
		MaxBodyBytes:   cfg.Server.HTTP.MaxBodyBytes,
	}
	if infra.Searcher != nil {
		routerCfg.SearchHandler = handlers.NewSearchHandler(infra.Searcher, logger)
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	if origins := cfg.Server.HTTP.CORSAllowedOrigins; len(origins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = origins
		routerCfg.CORS = &cors
	}
	if rl := cfg.RateLimit; rl.Enabled {
		limit := middleware.DefaultRateLimitConfig()
		limit.RequestsPerSecond = rl.RequestsPerSecond
		limit.Burst = rl.Burst
		if cfg.Metrics.Path != "" {
			limit.SkipPaths = append(limit.SkipPaths, cfg.Metrics.Path)
		}
		routerCfg.RateLimit = &limit
	}

	httpSrv := httpserver.NewServer(cfg.Server.HTTP, httpserver.NewRouter(routerCfg), logger)

	var grpcSrv *grpcserver.Server
	if cfg.Server.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.Server.HTTP.Host, cfg.Server.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(infra.Metrics),
			grpcserver.WithCheckers(healthCheckInterval, grpcCheckers...),
			grpcserver.WithGracefulTimeout(cfg.Server.HTTP.ShutdownTimeout),
			grpcserver.WithReflection(),
		)
		if err != nil {
			return err
		}
	}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Start() }()
	if grpcSrv != nil {
		go func() { errCh <- grpcSrv.Start() }()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", logging.String("signal", sig.String()))
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("server failed", logging.Err(runErr))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Stop(ctx); err != nil {
		logger.Error("http server shutdown error", logging.Err(err))
	}
	if grpcSrv != nil {
		if err := grpcSrv.Stop(ctx); err != nil {
			logger.Error("grpc server shutdown error", logging.Err(err))
		}
	}
	if err := stopQueue(ctx); err != nil {
		logger.Warn("job queue did not drain", logging.Err(err))
	}

	logger.Info("api server stopped")
	return runErr
}

// jobPublisher returns the Kafka producer when a broker is configured,
// otherwise an in-process queue with a worker subscribed to it.
func jobPublisher(cfg *config.Config, infra *app.Infrastructure, logger logging.Logger) (jobs.Publisher, func(context.Context) error, error) {
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(app.ProducerConfig(cfg.Kafka), logger)
		if err != nil {
			return nil, nil, err
		}
		infra.AddCloser(producer.Close)
		return producer, func(context.Context) error { return nil }, nil
	}

	queue := jobs.NewLocalQueue(jobs.LocalQueueConfig{
		Workers:      cfg.Worker.Concurrency,
		MaxRetries:   cfg.Kafka.MaxRetries,
		RetryBackoff: cfg.Kafka.RetryBackoff,
	}, logger)
	worker, err := infra.NewWorker(queue)
	if err != nil {
		_ = queue.Close(context.Background())
		return nil, nil, err
	}
	queue.Subscribe(cfg.Kafka.RequestTopic, worker.Handle)
	logger.Warn("kafka disabled, jobs run in-process",
		logging.Int("workers", cfg.Worker.Concurrency))
	return queue, queue.Close, nil
}
