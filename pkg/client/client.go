// Package client is the Go SDK for the clauselens HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/turtacn/clauselens/pkg/errors"
)

const Version = "0.1.0"

// Logger is the printf-style logger the client reports retries to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}

// Client talks to one clauselens API server.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	pollInterval time.Duration
}

// APIError is a non-2xx answer decoded from the server's error body.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("clauselens: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg + " [request_id=" + e.RequestID + "]"
}

func (e *APIError) IsNotFound() bool    { return e.StatusCode == http.StatusNotFound }
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }
func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 && e.StatusCode < 600 }

// NewClient validates baseURL and applies opts.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.InvalidParam("base url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.InvalidParam("base url scheme must be http or https").WithDetail(baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		userAgent:    "clauselens-go-sdk/" + Version,
		logger:       noopLogger{},
		retryMax:     3,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWaitMin
	b.MaxInterval = c.retryWaitMax
	b.RandomizationFactor = 0.25
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retryMax)), ctx)
}

// do sends one JSON request, retrying transport failures, 5xx and 429.
// 4xx answers are permanent.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "marshal request body")
		}
	}

	attempt := 0
	op := func() error {
		attempt++
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		requestID := uuid.NewString()
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Errorf("%s %s attempt %d failed: %v", method, path, attempt, err)
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()
		c.logger.Debugf("%s %s %d (%v)", method, path, resp.StatusCode, time.Since(start))

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "read response body")
		}

		if resp.StatusCode >= 400 {
			apiErr := decodeAPIError(resp.StatusCode, raw, requestID)
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 {
					c.logger.Infof("rate limited, waiting %v", wait)
					select {
					case <-time.After(wait):
					case <-ctx.Done():
						return backoff.Permanent(ctx.Err())
					}
				}
				return apiErr
			case apiErr.IsServerError():
				return apiErr
			default:
				return backoff.Permanent(apiErr)
			}
		}

		if result != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, result); err != nil {
				return backoff.Permanent(errors.Wrap(err, errors.ErrCodeSerialization, "decode response"))
			}
		}
		return nil
	}

	return backoff.Retry(op, c.newBackOff(ctx))
}

func decodeAPIError(status int, raw []byte, requestID string) *APIError {
	apiErr := &APIError{StatusCode: status, RequestID: requestID}
	var body struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Detail    string `json:"detail"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Code != "" {
		apiErr.Code, apiErr.Message, apiErr.Detail = body.Code, body.Message, body.Detail
		if body.RequestID != "" {
			apiErr.RequestID = body.RequestID
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}
