package clause_ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/pkg/errors"
)

// RemoteConfig configures a RemoteClassifier.
type RemoteConfig struct {
	Endpoint         string
	ModelName        string
	Timeout          time.Duration
	Retries          int
	RetryBackoff     time.Duration
	// BreakerThreshold consecutive failed calls open the breaker for
	// BreakerReset. Zero disables it.
	BreakerThreshold int
	BreakerReset     time.Duration
}

// RemoteClassifier calls a model server over HTTP. The server receives
// {text, max_len, stride, batch_size} on POST /classify and answers with a
// Prediction, optionally carrying num_tokens.
type RemoteClassifier struct {
	cfg     RemoteConfig
	client  *http.Client
	logger  logging.Logger
	breaker *breaker
}

type classifyRequest struct {
	Text      string `json:"text"`
	MaxLen    int    `json:"max_len"`
	Stride    int    `json:"stride"`
	BatchSize int    `json:"batch_size"`
}

type classifyResponse struct {
	Prediction
	NumTokens int `json:"num_tokens,omitempty"`
}

// NewRemoteClassifier validates cfg and builds a RemoteClassifier.
func NewRemoteClassifier(cfg RemoteConfig, logger logging.Logger) (*RemoteClassifier, error) {
	if cfg.Endpoint == "" {
		return nil, errors.InvalidParam("inference endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "remote"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.BreakerThreshold > 0 && cfg.BreakerReset <= 0 {
		cfg.BreakerReset = 30 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	logger = logger.Named("classifier")
	return &RemoteClassifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		breaker: newBreaker(cfg.BreakerThreshold, cfg.BreakerReset, logger),
	}, nil
}

// Name implements TokenClassifier.
func (r *RemoteClassifier) Name() string { return r.cfg.ModelName }

// Classify implements TokenClassifier. Transport failures are retried with
// exponential backoff; a non-2xx answer is not.
func (r *RemoteClassifier) Classify(ctx context.Context, text string, opts WindowOptions) (*Prediction, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(classifyRequest{Text: text, MaxLen: opts.MaxLen, Stride: opts.Stride, BatchSize: opts.BatchSize})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode classify request")
	}
	if !r.breaker.allow() {
		return nil, errors.New(errors.ErrCodeModelUnavailable, "model server circuit open").
			WithDetailf("endpoint=%s", r.cfg.Endpoint)
	}

	var resp *classifyResponse
	attempt := 0
	op := func() error {
		attempt++
		out, err := r.post(ctx, body)
		if err != nil {
			if !errors.IsCode(err, errors.ErrCodeModelUnavailable) {
				return backoff.Permanent(err)
			}
			r.logger.Warn("classify attempt failed",
				logging.Int("attempt", attempt),
				logging.Err(err))
			return err
		}
		resp = out
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.Retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.IsCode(err, errors.ErrCodeModelUnavailable) || errors.IsCode(err, errors.ErrCodeInferenceFailed) {
			r.breaker.failure()
		}
		if ctx.Err() != nil && !errors.IsCode(err, errors.ErrCodeInferenceFailed) {
			return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "classify cancelled")
		}
		return nil, err
	}

	r.breaker.success()

	if resp.NumTokens > 0 {
		windows, err := PlanWindows(resp.NumTokens, opts.MaxLen, opts.Stride)
		if err != nil {
			return nil, err
		}
		if len(windows) != len(resp.Chunks) {
			return nil, errors.InvalidInputShape("chunk count does not match window plan").
				WithDetailf("tokens=%d windows=%d chunks=%d", resp.NumTokens, len(windows), len(resp.Chunks))
		}
	}
	r.logger.Debug("classified",
		logging.Int("chunks", len(resp.Chunks)),
		logging.Int("tokens", resp.Prediction.Tokens()),
		logging.Int("attempts", attempt))
	pred := resp.Prediction
	return &pred, nil
}

func (r *RemoteClassifier) post(ctx context.Context, body []byte) (*classifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "build classify request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelUnavailable, "model server unreachable")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, errors.New(errors.ErrCodeInferenceFailed, "model server returned an error").
			WithDetail(fmt.Sprintf("status=%d body=%s", res.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var out classifyResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInferenceFailed, "decode classify response")
	}
	if len(out.Labels) == 0 {
		return nil, errors.InvalidInputShape("model response has no id2label table")
	}
	return &out, nil
}

// BreakerState reports "closed", "open" or "half_open".
func (r *RemoteClassifier) BreakerState() string { return r.breaker.current() }

// Ping checks GET /health on the model server.
func (r *RemoteClassifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.Endpoint+"/health", nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "build health request")
	}
	res, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeModelUnavailable, "model server unreachable")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrCodeModelUnavailable, "model server health status %d", res.StatusCode)
	}
	return nil
}
