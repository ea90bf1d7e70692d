// Package opensearch indexes refined clause entries and serves keyword
// search over them.
package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v3"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
)

var ErrInvalidConfig = errors.New(errors.ErrCodeValidation, "invalid opensearch configuration")

// ClientConfig holds the configuration for the OpenSearch client.
type ClientConfig struct {
	Addresses          []string
	Username           string
	Password           string
	InsecureSkipVerify bool
	MaxRetries         int
	RetryBackoff       time.Duration
	RequestTimeout     time.Duration
}

// Client wraps the typed opensearchapi client.
type Client struct {
	api     *opensearchapi.Client
	config  ClientConfig
	logger  logging.Logger
	healthy atomic.Bool
}

// NewClient creates a client and pings the cluster.
func NewClient(ctx context.Context, cfg ClientConfig, logger logging.Logger) (*Client, error) {
	c, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "opensearch unreachable")
	}
	c.logger.Info("opensearch client connected", logging.Strings("addresses", cfg.Addresses))
	return c, nil
}

func newClient(cfg ClientConfig, logger logging.Logger) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}
	backoff := cfg.RetryBackoff
	api, err := opensearchapi.NewClient(opensearchapi.Config{Client: opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		Transport:     transport,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff:  func(attempt int) time.Duration { return backoff * time.Duration(attempt) },
	}})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create opensearch client")
	}
	return &Client{api: api, config: cfg, logger: logger}, nil
}

// Ping issues HEAD / and records the result for IsHealthy.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.api.Ping(ctx, nil)
	err = responseError(resp, err, "ping")
	c.healthy.Store(err == nil)
	if err != nil {
		c.logger.Warn("opensearch ping failed", logging.Err(err))
	}
	return err
}

// IsHealthy reports the result of the last Ping.
func (c *Client) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.config.RequestTimeout)
}

// responseError maps an opensearchapi failure onto an AppError: 404 becomes
// NotFound, any other status or transport failure SEARCH_001. op names the
// request in the error detail.
func responseError(resp *opensearch.Response, err error, op string) error {
	if err == nil {
		return nil
	}
	if resp == nil {
		return errors.Wrap(err, errors.ErrCodeSearchFailed, "opensearch request failed").WithDetail(op)
	}

	code := errors.ErrCodeSearchFailed
	if resp.StatusCode == http.StatusNotFound {
		code = errors.ErrCodeNotFound
	}
	detail := op
	var apiErr opensearchapi.Error
	if errors.As(err, &apiErr) {
		detail = fmt.Sprintf("%s: %s %s", op, apiErr.Err.Type, apiErr.Err.Reason)
	}
	return errors.Newf(code, "opensearch returned %d", resp.StatusCode).
		WithDetail(detail).
		WithCause(err)
}

// statusOf returns the HTTP status of resp, or 0 when no response arrived.
func statusOf(resp *opensearch.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// ValidateConfig validates the client configuration.
func ValidateConfig(cfg ClientConfig) error {
	if len(cfg.Addresses) == 0 {
		return ErrInvalidConfig.WithDetail("at least one address required")
	}
	if cfg.MaxRetries < 0 {
		return ErrInvalidConfig.WithDetail("max retries must be >= 0")
	}
	if cfg.RequestTimeout < 0 {
		return ErrInvalidConfig.WithDetail("request timeout must be >= 0")
	}
	return nil
}
