// Worker entry point: consumes profiling job requests from Kafka and runs
// the profile, refine, archive and index pipeline for each.
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
	"github.com/turtacn/clauselens/internal/config"
	"github.com/turtacn/clauselens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/clauselens/internal/interfaces/http"
	"github.com/turtacn/clauselens/internal/interfaces/http/handlers"
	"github.com/turtacn/clauselens/internal/interfaces/http/middleware"
	"github.com/turtacn/clauselens/pkg/errors"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const (
	defaultHealthPort = 8081
	topicReplication  = 1
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults and CLAUSELENS_* env when empty)")
	workers := flag.Int("workers", 0, "number of consumers in the group (overrides worker.concurrency)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the /health, /readyz and metrics endpoints")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Worker.Concurrency = *workers
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logging.SetDefault(logger)

	if err := run(cfg, *healthPort, logger); err != nil {
		logger.Error("worker exited", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, healthPort int, logger logging.Logger) error {
	if !cfg.Kafka.Enabled {
		return errors.New(errors.ErrCodeFeatureDisabled, "worker needs kafka.enabled; the api server runs jobs in-process otherwise")
	}
	logger.Info("starting clauselens worker",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.String("build_date", buildDate),
		logging.Int("consumers", cfg.Worker.Concurrency),
		logging.String("topic", cfg.Kafka.RequestTopic),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStart()

	infra, err := app.Open(startCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	if err := ensureTopics(startCtx, cfg.Kafka, logger); err != nil {
		return err
	}

	producer, err := kafka.NewProducer(app.ProducerConfig(cfg.Kafka), logger)
	if err != nil {
		return err
	}
	infra.AddCloser(producer.Close)

	worker, err := infra.NewWorker(producer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumers := make([]*kafka.Consumer, 0, cfg.Worker.Concurrency)
	defer func() {
		for _, c := range consumers {
			if err := c.Close(); err != nil {
				logger.Warn("consumer close failed", logging.Err(err))
			}
		}
	}()
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		c, err := kafka.NewConsumer(app.ConsumerConfig(cfg.Kafka), producer, logger.With(logging.Int("consumer", i)))
		if err != nil {
			return err
		}
		c.Subscribe(cfg.Kafka.RequestTopic, worker.Handle)
		if err := c.Start(ctx); err != nil {
			return err
		}
		consumers = append(consumers, c)
	}

	healthSrv := startHealthServer(cfg, infra, healthPort, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", logging.String("signal", sig.String()))

	// Closing the consumers waits for each in-flight job.
	cancel()
	for _, c := range consumers {
		if err := c.Close(); err != nil {
			logger.Warn("consumer close failed", logging.Err(err))
		}
	}
	consumers = nil

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := healthSrv.Stop(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}

	logger.Info("worker stopped")
	return nil
}

func ensureTopics(ctx context.Context, kc config.KafkaConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(ctx, kc.Brokers, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(kc.RequestTopic, kc.ResultTopic, topicReplication))
}

// startHealthServer exposes liveness, readiness and metrics for probes.
func startHealthServer(cfg *config.Config, infra *app.Infrastructure, port int, logger logging.Logger) *httpserver.Server {
	checks := infra.Checks()
	checkers := make([]handlers.HealthChecker, len(checks))
	for i, c := range checks {
		checkers[i] = c
	}

	gin.SetMode(gin.ReleaseMode)
	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, infra.Profiler.Model(), checkers...),
		Logger:        logger,
		Metrics:       infra.Metrics,
		Logging:       middleware.DefaultLoggingConfig(),
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = infra.Collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	httpCfg := cfg.Server.HTTP
	httpCfg.Port = port
	srv := httpserver.NewServer(httpCfg, httpserver.NewRouter(routerCfg), logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("health server failed", logging.Err(err))
		}
	}()
	return srv
}
