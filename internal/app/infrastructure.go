// Package app wires configuration into the backends shared by the API server
// and the worker. Every optional backend is opened only when enabled; the
// in-process fallbacks (memory cache, memory job store) fill the gaps.
package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/clauselens/internal/application/jobs"
	"github.com/turtacn/clauselens/internal/application/profiling"
	"github.com/turtacn/clauselens/internal/config"
	"github.com/turtacn/clauselens/internal/infrastructure/database/memory"
	"github.com/turtacn/clauselens/internal/infrastructure/database/postgres"
	"github.com/turtacn/clauselens/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/clauselens/internal/infrastructure/database/redis"
	"github.com/turtacn/clauselens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/clauselens/internal/infrastructure/search/opensearch"
	"github.com/turtacn/clauselens/internal/infrastructure/storage/minio"
	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/pkg/errors"
)

// Cache is the method set shared by the memory and redis caches.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Ping(ctx context.Context) error
}

// Check is a named readiness probe. It satisfies both the HTTP and the gRPC
// checker interfaces.
type Check struct {
	Component string
	Fn        func(ctx context.Context) error
}

func (c Check) Name() string                    { return c.Component }
func (c Check) Check(ctx context.Context) error { return c.Fn(ctx) }

// Infrastructure holds the opened backends. Fields of disabled backends are
// nil.
type Infrastructure struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Classifier *clause_ner.RemoteClassifier
	Profiler   *profiling.Service

	Cache     Cache
	CacheName string
	Redis     *redis.Client
	Locker    redis.Locker

	Pool  *pgxpool.Pool
	Store jobs.Store

	MinIO   *minio.MinIOClient
	Archive *minio.Archive

	Search   *opensearch.Client
	Indexer  *opensearch.Indexer
	Searcher *opensearch.Searcher

	checks  []Check
	closers []func() error
}

// Open connects every enabled backend. On error the backends opened so far
// are closed.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Infrastructure, error) {
	if cfg == nil {
		return nil, errors.InvalidParam("config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	infra := &Infrastructure{Config: cfg, Logger: logger}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"metrics", infra.openMetrics},
		{"inference", infra.openInference},
		{"cache", infra.openCache},
		{"postgres", infra.openStore},
		{"minio", infra.openArchive},
		{"opensearch", infra.openSearch},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			logger.Error("backend initialization failed", logging.String("backend", s.name), logging.Err(err))
			infra.Close()
			return nil, err
		}
	}

	logger.Info("infrastructure initialized",
		logging.Strings("checks", infra.checkNames()),
		logging.Bool("postgres", infra.Pool != nil),
		logging.Bool("minio", infra.Archive != nil),
		logging.Bool("opensearch", infra.Search != nil),
		logging.String("cache", cfg.Cache.Backend),
	)
	return infra, nil
}

func (i *Infrastructure) openMetrics(context.Context) error {
	mc := i.Config.Metrics
	if !mc.Enabled {
		i.Collector = prometheus.NewNoopCollector()
		return nil
	}
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            mc.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Collector = collector
	i.Metrics = prometheus.NewAppMetrics(collector)
	return nil
}

func (i *Infrastructure) openInference(context.Context) error {
	inf := i.Config.Inference
	classifier, err := clause_ner.NewRemoteClassifier(clause_ner.RemoteConfig{
		Endpoint:     inf.Endpoint,
		ModelName:    inf.ModelName,
		Timeout:      inf.Timeout,
		Retries:      inf.Retries,
		RetryBackoff: inf.RetryBackoff,

		BreakerThreshold: inf.BreakerThreshold,
		BreakerReset:     inf.BreakerReset,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Classifier = classifier
	i.addCheck("inference", classifier.Ping)
	return nil
}

func (i *Infrastructure) openCache(context.Context) error {
	cc := i.Config.Cache
	switch cc.Backend {
	case "memory":
		i.Cache, i.CacheName = memory.NewCache(cc.TTL, cc.CleanupInterval), "memory"
	case "redis":
		rc := i.Config.Redis
		client, err := redis.NewClient(&redis.RedisConfig{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			PoolSize: rc.PoolSize,
		}, i.Logger)
		if err != nil {
			return err
		}
		i.Redis = client
		i.closers = append(i.closers, client.Close)
		i.Cache, i.CacheName = redis.NewRedisCache(client, i.Logger, redis.WithDefaultTTL(cc.TTL)), "redis"
		i.Locker = redis.NewLocker(client, i.Logger)
		i.addCheck("redis", client.Ping)
	}

	var opts []profiling.Option
	if i.Cache != nil {
		opts = append(opts, profiling.WithCache(i.Cache, i.CacheName, cc.TTL))
	}
	if i.Metrics != nil {
		opts = append(opts, profiling.WithMetrics(i.Metrics))
	}
	svc, err := profiling.NewService(i.Classifier, i.Logger, opts...)
	if err != nil {
		return err
	}
	i.Profiler = svc
	return nil
}

func (i *Infrastructure) openStore(ctx context.Context) error {
	pc := i.Config.Postgres
	if !pc.Enabled {
		i.Store = memory.NewJobStore(0)
		i.Logger.Warn("postgres disabled, jobs are kept in memory")
		return nil
	}
	if pc.AutoMigrate {
		if err := postgres.RunMigrations(pc.DSN, i.Logger); err != nil {
			return err
		}
	}
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: pc.DSN, MaxConns: pc.MaxConns}, i.Logger)
	if err != nil {
		return err
	}
	i.Pool = pool
	i.closers = append(i.closers, func() error { pool.Close(); return nil })
	i.Store = repositories.NewJobRepo(pool, i.Logger, i.Metrics)
	i.addCheck("postgres", func(ctx context.Context) error { return postgres.HealthCheck(ctx, pool, i.Logger) })
	return nil
}

func (i *Infrastructure) openArchive(ctx context.Context) error {
	mc := i.Config.MinIO
	if !mc.Enabled {
		return nil
	}
	client, err := minio.NewMinIOClient(ctx, &minio.MinIOConfig{
		Endpoint:        mc.Endpoint,
		AccessKeyID:     mc.AccessKeyID,
		SecretAccessKey: mc.SecretAccessKey,
		UseSSL:          mc.UseSSL,
		Region:          mc.Region,
		Bucket:          mc.Bucket,
		RetentionDays:   mc.RetentionDays,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.MinIO = client
	i.closers = append(i.closers, client.Close)
	i.Archive = minio.NewArchive(client, i.Logger)
	i.addCheck("minio", client.HealthCheck)
	return nil
}

func (i *Infrastructure) openSearch(ctx context.Context) error {
	oc := i.Config.OpenSearch
	if !oc.Enabled {
		return nil
	}
	client, err := opensearch.NewClient(ctx, opensearch.ClientConfig{
		Addresses:          oc.Addresses,
		Username:           oc.Username,
		Password:           oc.Password,
		InsecureSkipVerify: oc.InsecureSkipVerify,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Search = client
	i.Indexer = opensearch.NewIndexer(client, opensearch.IndexerConfig{Index: oc.Index}, i.Logger)
	if err := i.Indexer.EnsureIndex(ctx); err != nil {
		return err
	}
	i.Searcher = opensearch.NewSearcher(client, oc.Index, i.Logger)
	i.addCheck("opensearch", client.Ping)
	return nil
}

// ProducerConfig maps the kafka section onto a producer.
func ProducerConfig(kc config.KafkaConfig) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:    kc.Brokers,
		Acks:       "all",
		MaxRetries: kc.MaxRetries,
		Security:   kafkaSecurity(kc),
	}
}

func kafkaSecurity(kc config.KafkaConfig) kafka.SecurityConfig {
	return kafka.SecurityConfig{
		SASLEnabled:   kc.SASL.Enabled,
		SASLMechanism: kc.SASL.Mechanism,
		SASLUsername:  kc.SASL.Username,
		SASLPassword:  kc.SASL.Password,
		TLSEnabled:    kc.TLS.Enabled,
		TLSCAPath:     kc.TLS.CAPath,
		TLSInsecure:   kc.TLS.Insecure,
	}
}

// ConsumerConfig maps the kafka section onto a request-topic consumer.
func ConsumerConfig(kc config.KafkaConfig) kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:         kc.Brokers,
		GroupID:         kc.GroupID,
		Topics:          []string{kc.RequestTopic},
		AutoOffsetReset: "earliest",
		Security:        kafkaSecurity(kc),
		Retry: kafka.RetryConfig{
			MaxRetries:   kc.MaxRetries,
			RetryBackoff: kc.RetryBackoff,
			DeadLetter:   true,
		},
	}
}

// Topics names the job topics.
func Topics(kc config.KafkaConfig) jobs.Topics {
	return jobs.Topics{Request: kc.RequestTopic, Result: kc.ResultTopic}
}

// WorkerConfig derives the job run limits. A job gets one run per delivery
// attempt the queue makes.
func WorkerConfig(cfg *config.Config) jobs.WorkerConfig {
	return jobs.WorkerConfig{
		MaxAttempts:    cfg.Kafka.MaxRetries + 1,
		HandlerTimeout: cfg.Worker.HandlerTimeout,
		ResultTTL:      cfg.Cache.TTL,
	}
}

// NewWorker builds a job worker over the opened backends.
func (i *Infrastructure) NewWorker(publisher jobs.Publisher) (*jobs.Worker, error) {
	var opts []jobs.WorkerOption
	if i.Archive != nil {
		opts = append(opts, jobs.WithWorkerArchive(i.Archive))
	}
	if i.Cache != nil {
		opts = append(opts, jobs.WithWorkerCache(i.Cache))
	}
	if i.Indexer != nil {
		opts = append(opts, jobs.WithIndexer(i.Indexer))
	}
	if i.Locker != nil {
		opts = append(opts, jobs.WithLocker(i.Locker))
	}
	if i.Metrics != nil {
		opts = append(opts, jobs.WithWorkerMetrics(i.Metrics))
	}
	return jobs.NewWorker(i.Store, i.Profiler, publisher, Topics(i.Config.Kafka), WorkerConfig(i.Config), i.Logger, opts...)
}

// NewJobService builds the submission side over the opened backends.
func (i *Infrastructure) NewJobService(publisher jobs.Publisher) (*jobs.Service, error) {
	var opts []jobs.ServiceOption
	if i.Archive != nil {
		opts = append(opts, jobs.WithArchive(i.Archive))
	}
	if i.Cache != nil {
		opts = append(opts, jobs.WithResultCache(i.Cache, i.Config.Cache.TTL))
	}
	if i.Metrics != nil {
		opts = append(opts, jobs.WithServiceMetrics(i.Metrics))
	}
	return jobs.NewService(i.Store, publisher, Topics(i.Config.Kafka), i.Logger, opts...)
}

// AddCheck registers an extra readiness probe, e.g. for a Kafka producer
// opened by the caller.
func (i *Infrastructure) AddCheck(component string, fn func(ctx context.Context) error) {
	i.addCheck(component, fn)
}

// AddCloser registers fn to run on Close before the backends opened by Open.
func (i *Infrastructure) AddCloser(fn func() error) {
	i.closers = append(i.closers, fn)
}

func (i *Infrastructure) addCheck(component string, fn func(ctx context.Context) error) {
	i.checks = append(i.checks, Check{Component: component, Fn: fn})
}

// Checks returns the readiness probes of the opened backends.
func (i *Infrastructure) Checks() []Check {
	return append([]Check(nil), i.checks...)
}

func (i *Infrastructure) checkNames() []string {
	names := make([]string, len(i.checks))
	for n, c := range i.checks {
		names[n] = c.Component
	}
	return names
}

// Close releases backends in reverse order of opening.
func (i *Infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			i.Logger.Warn("close failed", logging.Err(err))
		}
	}
	i.closers = nil
}
