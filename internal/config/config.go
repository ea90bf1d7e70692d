// Package config defines the configuration structures of the clauselens
// service. Loading lives in loader.go, defaults in defaults.go.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// HTTPConfig holds HTTP server tunables.
type HTTPConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Mode            string        `mapstructure:"mode" yaml:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	// CORSAllowedOrigins enables CORS for these origins; empty disables it.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins" yaml:"cors_allowed_origins"`
}

// GRPCConfig holds the gRPC health endpoint settings.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http" yaml:"http"`
	GRPC GRPCConfig `mapstructure:"grpc" yaml:"grpc"`
}

// InferenceConfig points at the token-classification model server and sets
// the sliding-window parameters sent with every request.
type InferenceConfig struct {
	Endpoint         string        `mapstructure:"endpoint" yaml:"endpoint"`
	ModelName        string        `mapstructure:"model_name" yaml:"model_name"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxLen           int           `mapstructure:"max_len" yaml:"max_len"`
	Stride           int           `mapstructure:"stride" yaml:"stride"`
	BatchSize        int           `mapstructure:"batch_size" yaml:"batch_size"`
	Retries          int           `mapstructure:"retries" yaml:"retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	// BreakerThreshold of 0 disables the circuit breaker.
	BreakerThreshold int           `mapstructure:"breaker_threshold" yaml:"breaker_threshold"`
	BreakerReset     time.Duration `mapstructure:"breaker_reset" yaml:"breaker_reset"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	Path      string `mapstructure:"path" yaml:"path"`
}

// RateLimitConfig is a token bucket per client IP.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// CacheConfig selects the profile cache backend.
type CacheConfig struct {
	Backend         string        `mapstructure:"backend" yaml:"backend"` // "memory" | "redis" | "none"
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	PoolSize int    `mapstructure:"pool_size" yaml:"pool_size"`
}

type KafkaConfig struct {
	Enabled      bool            `mapstructure:"enabled" yaml:"enabled"`
	Brokers      []string        `mapstructure:"brokers" yaml:"brokers"`
	GroupID      string          `mapstructure:"group_id" yaml:"group_id"`
	RequestTopic string          `mapstructure:"request_topic" yaml:"request_topic"`
	ResultTopic  string          `mapstructure:"result_topic" yaml:"result_topic"`
	MaxRetries   int             `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff time.Duration   `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	SASL         KafkaSASLConfig `mapstructure:"sasl" yaml:"sasl"`
	TLS          KafkaTLSConfig  `mapstructure:"tls" yaml:"tls"`
}

type KafkaSASLConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Mechanism string `mapstructure:"mechanism" yaml:"mechanism"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password"`
}

type KafkaTLSConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	CAPath   string `mapstructure:"ca_path" yaml:"ca_path"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

// MinIOConfig configures the result archive.
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	Region          string `mapstructure:"region" yaml:"region"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	RetentionDays   int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// PostgresConfig configures the job store.
type PostgresConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	MaxConns    int    `mapstructure:"max_conns" yaml:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// OpenSearchConfig configures clause search.
type OpenSearchConfig struct {
	Enabled            bool     `mapstructure:"enabled" yaml:"enabled"`
	Addresses          []string `mapstructure:"addresses" yaml:"addresses"`
	Username           string   `mapstructure:"username" yaml:"username"`
	Password           string   `mapstructure:"password" yaml:"password"`
	Index              string   `mapstructure:"index" yaml:"index"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

type WorkerConfig struct {
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" yaml:"handler_timeout"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration shared by the API server, the worker and
// the CLI.
type Config struct {
	Server     ServerConfig      `mapstructure:"server" yaml:"server"`
	Inference  InferenceConfig   `mapstructure:"inference" yaml:"inference"`
	Logging    logging.LogConfig `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	RateLimit  RateLimitConfig   `mapstructure:"rate_limit" yaml:"rate_limit"`
	Cache      CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Redis      RedisConfig       `mapstructure:"redis" yaml:"redis"`
	Kafka      KafkaConfig       `mapstructure:"kafka" yaml:"kafka"`
	MinIO      MinIOConfig       `mapstructure:"minio" yaml:"minio"`
	Postgres   PostgresConfig    `mapstructure:"postgres" yaml:"postgres"`
	OpenSearch OpenSearchConfig  `mapstructure:"opensearch" yaml:"opensearch"`
	Worker     WorkerConfig      `mapstructure:"worker" yaml:"worker"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate returns the first semantic error in c. Optional backends are only
// checked when enabled.
func (c *Config) Validate() error {
	if err := validPort("server.http.port", c.Server.HTTP.Port); err != nil {
		return err
	}
	switch c.Server.HTTP.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.http.mode %q is invalid; expected debug|release|test", c.Server.HTTP.Mode)
	}
	if c.Server.GRPC.Enabled {
		if err := validPort("server.grpc.port", c.Server.GRPC.Port); err != nil {
			return err
		}
		if c.Server.GRPC.Port == c.Server.HTTP.Port {
			return fmt.Errorf("config: server.grpc.port must differ from server.http.port")
		}
	}

	if c.Inference.MaxLen <= 0 {
		return fmt.Errorf("config: inference.max_len must be > 0, got %d", c.Inference.MaxLen)
	}
	if c.Inference.Stride < 0 || c.Inference.Stride >= c.Inference.MaxLen {
		return fmt.Errorf("config: inference.stride must be in [0, max_len), got %d", c.Inference.Stride)
	}
	if c.Inference.BatchSize <= 0 {
		return fmt.Errorf("config: inference.batch_size must be > 0, got %d", c.Inference.BatchSize)
	}
	if c.Inference.BreakerThreshold < 0 {
		return fmt.Errorf("config: inference.breaker_threshold must be ≥ 0, got %d", c.Inference.BreakerThreshold)
	}
	if c.Inference.Retries < 0 {
		return fmt.Errorf("config: inference.retries must be ≥ 0, got %d", c.Inference.Retries)
	}

	if !logging.IsValidLevel(c.Logging.Level) {
		return fmt.Errorf("config: logging.level %q is invalid; expected debug|info|warn|error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: logging.format %q is invalid; expected json|console", c.Logging.Format)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("config: rate_limit needs requests_per_second > 0 and burst ≥ 1")
	}

	switch c.Cache.Backend {
	case "none", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("config: cache.backend %q is invalid; expected none|memory|redis", c.Cache.Backend)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required")
		}
	}
	if c.MinIO.Enabled && (c.MinIO.Endpoint == "" || c.MinIO.Bucket == "") {
		return fmt.Errorf("config: minio.endpoint and minio.bucket are required when minio is enabled")
	}
	if c.MinIO.RetentionDays < 0 {
		return fmt.Errorf("config: minio.retention_days must be ≥ 0, got %d", c.MinIO.RetentionDays)
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required when postgres is enabled")
	}
	if c.OpenSearch.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses must not be empty when opensearch is enabled")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}
	return nil
}

func validPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("config: %s %d is out of range [1, 65535]", name, port)
	}
	return nil
}
