package profiling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// ProfileCache memoizes profiles. The redis and memory caches satisfy it.
type ProfileCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// DefaultCacheTTL applies when WithCache is given a non-positive ttl.
const DefaultCacheTTL = time.Hour

// Service runs the profiling pipeline against a token classifier.
type Service struct {
	classifier clause_ner.TokenClassifier
	logger     logging.Logger
	metrics    *prometheus.AppMetrics
	cache      ProfileCache
	cacheName  string
	cacheTTL   time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache memoizes profiles in c under name (used as the metrics label).
func WithCache(c ProfileCache, name string, ttl time.Duration) Option {
	return func(s *Service) {
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		s.cache, s.cacheName, s.cacheTTL = c, name, ttl
	}
}

// WithMetrics records stage, profile and cache metrics.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a profiling Service.
func NewService(classifier clause_ner.TokenClassifier, logger logging.Logger, opts ...Option) (*Service, error) {
	if classifier == nil {
		return nil, errors.InvalidParam("classifier is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Service{
		classifier: classifier,
		logger:     logger.Named("profiling"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Model names the classifier behind the service.
func (s *Service) Model() string { return s.classifier.Name() }

// CacheKey identifies a profiling request by its text and window options.
func CacheKey(text string, opts clause_ner.WindowOptions) string {
	h := sha256.New()
	h.Write([]byte(text))
	fmt.Fprintf(h, "\x00%d:%d:%d", opts.MaxLen, opts.Stride, opts.BatchSize)
	return "profile:" + hex.EncodeToString(h.Sum(nil))
}

// Profile analyzes text. Empty text is not an error: it yields a profile with
// no spans and both red flags.
func (s *Service) Profile(ctx context.Context, text string, opts clause_ner.WindowOptions) (*profile.Profile, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if s.cache == nil {
		return s.run(ctx, text, opts)
	}

	var (
		out      profile.Profile
		computed bool
		runErr   error
	)
	key := CacheKey(text, opts)
	err := s.cache.GetOrSet(ctx, key, &out, s.cacheTTL, func(ctx context.Context) (interface{}, error) {
		computed = true
		p, err := s.run(ctx, text, opts)
		runErr = err
		return p, err
	})
	switch {
	case err == nil:
		prometheus.RecordCacheAccess(s.metrics, s.cacheName, !computed)
		return &out, nil
	case runErr != nil:
		return nil, runErr
	default:
		s.logger.Warn("profile cache unavailable, computing directly", logging.String("key", key), logging.Err(err))
		prometheus.RecordError(s.metrics, "cache", "get_or_set")
		return s.run(ctx, text, opts)
	}
}

func (s *Service) run(ctx context.Context, raw string, opts clause_ner.WindowOptions) (*profile.Profile, error) {
	start := time.Now()
	observe := func(stage string, d time.Duration) { prometheus.RecordStage(s.metrics, stage, d) }

	t := time.Now()
	text := textnorm.Normalize(raw)
	observe(StageNormalize, time.Since(t))

	pred := &clause_ner.Prediction{}
	if strings.TrimSpace(text) != "" {
		t = time.Now()
		var err error
		pred, err = s.classifier.Classify(ctx, text, opts)
		observe(StageClassify, time.Since(t))
		if err != nil {
			s.fail("classify", err)
			return nil, err
		}
		if pred == nil || len(pred.Chunks) == 0 {
			err := errors.NoUsableInput("classifier returned no chunks for non-empty text")
			s.fail("classify", err)
			return nil, err
		}
	}

	p, err := assemble(text, pred, s.classifier.Name(), s.now(), observe)
	if err != nil {
		s.fail("decode", err)
		return nil, err
	}

	flags := make([]string, 0, len(p.Meta.Quality.RedFlags))
	for _, f := range p.Meta.Quality.RedFlags {
		flags = append(flags, FlagName(f))
	}
	prometheus.RecordProfile(s.metrics, true, p.Meta.Quality.SpanCount, flags)
	s.logger.Info("profile generated",
		logging.String("model", s.classifier.Name()),
		logging.Int("text_length", p.Meta.Quality.TextLength),
		logging.Int("span_count", p.Meta.Quality.SpanCount),
		logging.Int("date_count", len(p.ImportantDates)),
		logging.Strings("red_flags", flags),
		logging.Duration("duration", time.Since(start)),
	)
	return p, nil
}

func (s *Service) fail(stage string, err error) {
	prometheus.RecordProfile(s.metrics, false, 0, nil)
	prometheus.RecordError(s.metrics, "profiling", string(errors.GetCode(err)))
	s.logger.Error("profiling failed", logging.String("stage", stage), logging.Err(err))
}
