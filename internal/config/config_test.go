package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/internal/config"
)

// validConfig returns a Config that passes Validate.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestConfig_Validate_Defaults(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
	}{
		{"http port zero", func(c *config.Config) { c.Server.HTTP.Port = 0 }, "server.http.port"},
		{"http port too large", func(c *config.Config) { c.Server.HTTP.Port = 70000 }, "server.http.port"},
		{"bad gin mode", func(c *config.Config) { c.Server.HTTP.Mode = "prod" }, "server.http.mode"},
		{"grpc port clash", func(c *config.Config) {
			c.Server.GRPC.Enabled = true
			c.Server.GRPC.Port = c.Server.HTTP.Port
		}, "server.grpc.port"},
		{"max_len not positive", func(c *config.Config) { c.Inference.MaxLen = -1 }, "inference.max_len"},
		{"stride equals max_len", func(c *config.Config) { c.Inference.Stride = c.Inference.MaxLen }, "inference.stride"},
		{"negative stride", func(c *config.Config) { c.Inference.Stride = -4 }, "inference.stride"},
		{"batch size", func(c *config.Config) { c.Inference.BatchSize = -1 }, "inference.batch_size"},
		{"retries", func(c *config.Config) { c.Inference.Retries = -1 }, "inference.retries"},
		{"breaker threshold", func(c *config.Config) { c.Inference.BreakerThreshold = -1 }, "inference.breaker_threshold"},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", func(c *config.Config) { c.Logging.Format = "text" }, "logging.format"},
		{"rate limit burst", func(c *config.Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.Burst = -1
		}, "rate_limit"},
		{"cache backend", func(c *config.Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis addr", func(c *config.Config) {
			c.Cache.Backend = "redis"
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"kafka brokers", func(c *config.Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}, "kafka.brokers"},
		{"minio bucket", func(c *config.Config) {
			c.MinIO.Enabled = true
			c.MinIO.Bucket = ""
		}, "minio.endpoint"},
		{"postgres dsn", func(c *config.Config) { c.Postgres.Enabled = true }, "postgres.dsn"},
		{"opensearch addresses", func(c *config.Config) {
			c.OpenSearch.Enabled = true
			c.OpenSearch.Addresses = []string{}
		}, "opensearch.addresses"},
		{"worker concurrency", func(c *config.Config) { c.Worker.Concurrency = -2 }, "worker.concurrency"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestConfig_Validate_DisabledBackendsNotChecked(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Kafka.Brokers = nil
	cfg.Postgres.DSN = ""
	cfg.OpenSearch.Addresses = nil
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Server.HTTP.Port = 9999
	config.ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.HTTP.Port)
	assert.Equal(t, config.DefaultHTTPHost, cfg.Server.HTTP.Host)
	assert.Equal(t, 384, cfg.Inference.MaxLen)
	assert.Equal(t, 128, cfg.Inference.Stride)
	assert.Equal(t, 16, cfg.Inference.BatchSize)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "profile.requested", cfg.Kafka.RequestTopic)

	assert.NotPanics(t, func() { config.ApplyDefaults(nil) })
}
