package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPPort, cfg.Server.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.HTTP.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Inference.RetryBackoff)
	assert.Equal(t, DefaultInferenceRetries, cfg.Inference.Retries)
	assert.Equal(t, DefaultBreakerThreshold, cfg.Inference.BreakerThreshold)
	assert.Equal(t, DefaultBreakerReset, cfg.Inference.BreakerReset)
	assert.Equal(t, []string{"stdout"}, cfg.Logging.OutputPaths)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Postgres.AutoMigrate)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    port: 9000
inference:
  max_len: 512
  stride: 64
cache:
  backend: redis
  ttl: 5m
kafka:
  enabled: true
  brokers: [k1:9092, k2:9092]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTP.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.HTTP.Host)
	assert.Equal(t, 512, cfg.Inference.MaxLen)
	assert.Equal(t, 64, cfg.Inference.Stride)
	assert.Equal(t, 16, cfg.Inference.BatchSize)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  http:\n    port: 9000\n")
	t.Setenv("CLAUSELENS_SERVER_HTTP_PORT", "9999")
	t.Setenv("CLAUSELENS_INFERENCE_ENDPOINT", "http://model:8000")
	t.Setenv("CLAUSELENS_CACHE_TTL", "90s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTP.Port)
	assert.Equal(t, "http://model:8000", cfg.Inference.Endpoint)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{"missing file", func(*testing.T) string { return "does-not-exist.yaml" }, ErrConfigFileNotFound},
		{"invalid yaml", func(t *testing.T) string { return writeConfig(t, "server: [") }, ErrConfigParseError},
		{"invalid values", func(t *testing.T) string {
			return writeConfig(t, "inference:\n  max_len: 64\n  stride: 64\n")
		}, ErrConfigValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoader_Settings(t *testing.T) {
	t.Setenv("CLAUSELENS_LOGGING_LEVEL", "debug")
	l, err := NewLoader("")
	require.NoError(t, err)

	settings := l.Settings()
	logging, ok := settings["logging"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "debug", logging["level"])
}

func TestLoader_Watch(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	l, err := NewLoader(path)
	require.NoError(t, err)

	changed := make(chan *Config, 4)
	l.Watch(func(c *Config) { changed <- c }, nil)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))

	select {
	case c := <-changed:
		assert.Equal(t, "warn", c.Logging.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad("does-not-exist.yaml") })
}
