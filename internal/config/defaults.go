package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultHTTPHost        = "0.0.0.0"
	DefaultHTTPPort        = 8080
	DefaultHTTPMode        = "release"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes    = 10 << 20
	DefaultGRPCPort        = 9090

	DefaultInferenceEndpoint = "http://localhost:8000"
	DefaultModelName         = "legal-ner"
	DefaultInferenceTimeout  = 60 * time.Second
	DefaultMaxLen            = 384
	DefaultStride            = 128
	DefaultBatchSize         = 16
	DefaultInferenceRetries  = 2
	DefaultRetryBackoff      = 500 * time.Millisecond
	DefaultBreakerThreshold  = 5
	DefaultBreakerReset      = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "clauselens"
	DefaultMetricsPath      = "/metrics"

	DefaultRateLimitRPS   = 20.0
	DefaultRateLimitBurst = 40

	DefaultCacheBackend         = "memory"
	DefaultCacheTTL             = time.Hour
	DefaultCacheCleanupInterval = 10 * time.Minute

	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisPoolSize = 20

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "clauselens-worker"
	DefaultRequestTopic      = "profile.requested"
	DefaultResultTopic       = "profile.completed"
	DefaultKafkaMaxRetries   = 3
	DefaultKafkaRetryBackoff = time.Second

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIORegion   = "us-east-1"
	DefaultMinIOBucket   = "clauselens-profiles"

	DefaultPostgresMaxConns = 10

	DefaultOpenSearchAddress = "http://localhost:9200"
	DefaultOpenSearchIndex   = "clauselens-clauses"

	DefaultWorkerConcurrency    = 4
	DefaultWorkerHandlerTimeout = 5 * time.Minute
)

// DefaultYAML is the file written by `clauselens config init` and the base
// layer every Load starts from, so each key is known to viper before env
// overrides are applied.
const DefaultYAML = `server:
  http:
    host: 0.0.0.0
    port: 8080
    mode: release
    read_timeout: 30s
    write_timeout: 60s
    shutdown_timeout: 15s
    max_body_bytes: 10485760
    cors_allowed_origins: []
  grpc:
    enabled: false
    port: 9090
inference:
  endpoint: http://localhost:8000
  model_name: legal-ner
  timeout: 60s
  max_len: 384
  stride: 128
  batch_size: 16
  retries: 2
  retry_backoff: 500ms
  breaker_threshold: 5
  breaker_reset: 30s
logging:
  level: info
  format: json
  output_paths: [stdout]
  error_output_paths: [stderr]
metrics:
  enabled: true
  namespace: clauselens
  path: /metrics
rate_limit:
  enabled: false
  requests_per_second: 20
  burst: 40
cache:
  backend: memory
  ttl: 1h
  cleanup_interval: 10m
redis:
  addr: localhost:6379
  password: ""
  db: 0
  pool_size: 20
kafka:
  enabled: false
  brokers: [localhost:9092]
  group_id: clauselens-worker
  request_topic: profile.requested
  result_topic: profile.completed
  max_retries: 3
  retry_backoff: 1s
  sasl:
    enabled: false
    mechanism: SCRAM-SHA-512
    username: ""
    password: ""
  tls:
    enabled: false
    ca_path: ""
    insecure: false
minio:
  enabled: false
  endpoint: localhost:9000
  access_key_id: ""
  secret_access_key: ""
  use_ssl: false
  region: us-east-1
  bucket: clauselens-profiles
  retention_days: 90
postgres:
  enabled: false
  dsn: ""
  max_conns: 10
  auto_migrate: true
opensearch:
  enabled: false
  addresses: [http://localhost:9200]
  username: ""
  password: ""
  index: clauselens-clauses
  insecure_skip_verify: false
worker:
  concurrency: 4
  handler_timeout: 5m
`

// ApplyDefaults fills every zero-value field in cfg with the default.
// Explicitly set fields are left unchanged. Booleans cannot be told apart
// from an explicit false, so only DefaultYAML enables them.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	h := &cfg.Server.HTTP
	setString(&h.Host, DefaultHTTPHost)
	setInt(&h.Port, DefaultHTTPPort)
	setString(&h.Mode, DefaultHTTPMode)
	setDuration(&h.ReadTimeout, DefaultReadTimeout)
	setDuration(&h.WriteTimeout, DefaultWriteTimeout)
	setDuration(&h.ShutdownTimeout, DefaultShutdownTimeout)
	if h.MaxBodyBytes == 0 {
		h.MaxBodyBytes = DefaultMaxBodyBytes
	}
	setInt(&cfg.Server.GRPC.Port, DefaultGRPCPort)

	// ── Inference ─────────────────────────────────────────────────────────────
	in := &cfg.Inference
	setString(&in.Endpoint, DefaultInferenceEndpoint)
	setString(&in.ModelName, DefaultModelName)
	setDuration(&in.Timeout, DefaultInferenceTimeout)
	setInt(&in.MaxLen, DefaultMaxLen)
	setInt(&in.Stride, DefaultStride)
	setInt(&in.BatchSize, DefaultBatchSize)
	setDuration(&in.RetryBackoff, DefaultRetryBackoff)
	setDuration(&in.BreakerReset, DefaultBreakerReset)

	// ── Logging / metrics ─────────────────────────────────────────────────────
	setString(&cfg.Logging.Level, DefaultLogLevel)
	setString(&cfg.Logging.Format, DefaultLogFormat)
	setString(&cfg.Metrics.Namespace, DefaultMetricsNamespace)
	setString(&cfg.Metrics.Path, DefaultMetricsPath)
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	setInt(&cfg.RateLimit.Burst, DefaultRateLimitBurst)

	// ── Cache ─────────────────────────────────────────────────────────────────
	setString(&cfg.Cache.Backend, DefaultCacheBackend)
	setDuration(&cfg.Cache.TTL, DefaultCacheTTL)
	setDuration(&cfg.Cache.CleanupInterval, DefaultCacheCleanupInterval)
	setString(&cfg.Redis.Addr, DefaultRedisAddr)
	setInt(&cfg.Redis.PoolSize, DefaultRedisPoolSize)

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	setString(&cfg.Kafka.GroupID, DefaultKafkaGroupID)
	setString(&cfg.Kafka.RequestTopic, DefaultRequestTopic)
	setString(&cfg.Kafka.ResultTopic, DefaultResultTopic)
	setInt(&cfg.Kafka.MaxRetries, DefaultKafkaMaxRetries)
	setDuration(&cfg.Kafka.RetryBackoff, DefaultKafkaRetryBackoff)

	// ── Storage / search ──────────────────────────────────────────────────────
	setString(&cfg.MinIO.Endpoint, DefaultMinIOEndpoint)
	setString(&cfg.MinIO.Region, DefaultMinIORegion)
	setString(&cfg.MinIO.Bucket, DefaultMinIOBucket)
	setInt(&cfg.Postgres.MaxConns, DefaultPostgresMaxConns)
	if len(cfg.OpenSearch.Addresses) == 0 {
		cfg.OpenSearch.Addresses = []string{DefaultOpenSearchAddress}
	}
	setString(&cfg.OpenSearch.Index, DefaultOpenSearchIndex)

	// ── Worker ────────────────────────────────────────────────────────────────
	setInt(&cfg.Worker.Concurrency, DefaultWorkerConcurrency)
	setDuration(&cfg.Worker.HandlerTimeout, DefaultWorkerHandlerTimeout)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
	}
}
