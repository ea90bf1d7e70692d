// Package jobs runs profiling asynchronously. Service accepts submissions
// and answers status queries; Worker consumes requests and drives the
// profile → refine → archive → index pipeline for one job at a time.
package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/clauselens/internal/infrastructure/search/opensearch"
	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/job"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// Store persists job state.
type Store interface {
	Create(ctx context.Context, j *job.Job) error
	Get(ctx context.Context, id string) (*job.Job, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, archiveKey string) error
	MarkFailed(ctx context.Context, id, message string) error
}

// Publisher sends a JSON payload to a topic.
type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, payload interface{}, headers map[string]string) error
}

// Profiler produces the first-stage profile.
type Profiler interface {
	Profile(ctx context.Context, text string, opts clause_ner.WindowOptions) (*profile.Profile, error)
	Model() string
}

// ResultArchive keeps completed results durably.
type ResultArchive interface {
	Put(ctx context.Context, res *job.Result) (string, error)
	Get(ctx context.Context, jobID string) (*job.Result, error)
}

// ResultCache holds recently completed results.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ClauseIndexer makes refined bucket entries searchable.
type ClauseIndexer interface {
	IndexRefined(ctx context.Context, jobID, model string, refined *profile.RefinedProfile) (*opensearch.BulkResult, error)
}

// Topics names the request and result topics.
type Topics struct {
	Request string
	Result  string
}

// ResultCacheKey is where a completed job's result is cached.
func ResultCacheKey(jobID string) string {
	return "job:" + jobID
}

// ErrResultUnavailable is returned when a completed job's result is neither
// cached nor archived.
var ErrResultUnavailable = errors.New(errors.ErrCodeNotFound, "job result no longer available")

// Status is what Service.Get reports for a job.
type Status struct {
	Job    *job.Job    `json:"job"`
	Result *job.Result `json:"result,omitempty"`
}

// Service is the submission side of the job pipeline.
type Service struct {
	store     Store
	publisher Publisher
	topics    Topics
	archive   ResultArchive
	cache     ResultCache
	cacheTTL  time.Duration
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

func WithArchive(a ResultArchive) ServiceOption {
	return func(s *Service) { s.archive = a }
}

// WithResultCache caches results read back from the archive for ttl.
func WithResultCache(c ResultCache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithServiceMetrics(m *prometheus.AppMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service publishing to topics.Request.
func NewService(store Store, publisher Publisher, topics Topics, logger logging.Logger, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.InvalidParam("job store is required")
	}
	if publisher == nil {
		return nil, errors.InvalidParam("publisher is required")
	}
	if topics.Request == "" {
		return nil, errors.InvalidParam("request topic is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Service{
		store:     store,
		publisher: publisher,
		topics:    topics,
		cacheTTL:  time.Hour,
		logger:    logger.Named("jobs"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit records a queued job and publishes its request. A job whose request
// cannot be published is marked failed before the error is returned.
func (s *Service) Submit(ctx context.Context, text string, opts clause_ner.WindowOptions) (*job.Job, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(text))
	j := &job.Job{
		ID:         uuid.NewString(),
		Status:     job.StatusQueued,
		TextSHA256: hex.EncodeToString(sum[:]),
		TextLength: utf8.RuneCountInString(text),
		MaxLen:     opts.MaxLen,
		Stride:     opts.Stride,
		BatchSize:  opts.BatchSize,
	}
	if err := s.store.Create(ctx, j); err != nil {
		return nil, err
	}

	req := job.Request{
		JobID:     j.ID,
		Text:      text,
		MaxLen:    opts.MaxLen,
		Stride:    opts.Stride,
		BatchSize: opts.BatchSize,
	}
	if err := s.publisher.PublishJSON(ctx, s.topics.Request, j.ID, req, map[string]string{"job_id": j.ID}); err != nil {
		s.logger.Error("job request publish failed", logging.String("job_id", j.ID), logging.Err(err))
		if mErr := s.store.MarkFailed(ctx, j.ID, "request could not be queued"); mErr != nil {
			s.logger.Warn("mark failed after publish error", logging.String("job_id", j.ID), logging.Err(mErr))
		}
		prometheus.RecordError(s.metrics, "jobs", "publish")
		return nil, errors.Wrap(err, errors.ErrCodePublishFailed, "failed to queue job").WithDetail(j.ID)
	}

	prometheus.RecordJob(s.metrics, string(job.StatusQueued), 0)
	s.logger.Info("job queued",
		logging.String("job_id", j.ID),
		logging.Int("text_length", j.TextLength))
	return j, nil
}

// Get returns the job and, once it has completed, its result.
func (s *Service) Get(ctx context.Context, id string) (*Status, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.InvalidParam("job id must be a uuid").WithDetail(id)
	}
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &Status{Job: j}
	if j.Status != job.StatusCompleted {
		return st, nil
	}
	res, err := s.Result(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Result = res
	return st, nil
}

// Result loads a completed job's result from the cache, falling back to the
// archive. Archive hits are written back to the cache.
func (s *Service) Result(ctx context.Context, id string) (*job.Result, error) {
	key := ResultCacheKey(id)
	if s.cache != nil {
		var res job.Result
		err := s.cache.Get(ctx, key, &res)
		if err == nil {
			prometheus.RecordCacheAccess(s.metrics, "results", true)
			return &res, nil
		}
		prometheus.RecordCacheAccess(s.metrics, "results", false)
		if !errors.IsCode(err, errors.ErrCodeCacheMiss) {
			s.logger.Warn("result cache read failed", logging.String("job_id", id), logging.Err(err))
		}
	}

	if s.archive == nil {
		return nil, ErrResultUnavailable.WithDetail(id)
	}
	res, err := s.archive.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrResultUnavailable.WithDetail(id)
		}
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res, s.cacheTTL); err != nil {
			s.logger.Warn("result cache write failed", logging.String("job_id", id), logging.Err(err))
		}
	}
	return res, nil
}
