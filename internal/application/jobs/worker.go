package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/turtacn/clauselens/internal/application/refinement"
	"github.com/turtacn/clauselens/internal/infrastructure/database/redis"
	"github.com/turtacn/clauselens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/common"
	"github.com/turtacn/clauselens/pkg/types/job"
)

// WorkerConfig bounds one job run.
type WorkerConfig struct {
	// MaxAttempts is how many runs a job gets before it is marked failed.
	MaxAttempts    int
	HandlerTimeout time.Duration
	ResultTTL      time.Duration
	LockTTL        time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 5 * time.Minute
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	return c
}

// Worker processes job requests taken off the request topic.
type Worker struct {
	store     Store
	profiler  Profiler
	publisher Publisher
	topics    Topics
	config    WorkerConfig

	archive ResultArchive
	cache   ResultCache
	indexer ClauseIndexer
	locker  redis.Locker
	metrics *prometheus.AppMetrics
	logger  logging.Logger
	now     func() time.Time
}

// WorkerOption configures optional collaborators.
type WorkerOption func(*Worker)

func WithWorkerArchive(a ResultArchive) WorkerOption {
	return func(w *Worker) { w.archive = a }
}

func WithWorkerCache(c ResultCache) WorkerOption {
	return func(w *Worker) { w.cache = c }
}

func WithIndexer(ix ClauseIndexer) WorkerOption {
	return func(w *Worker) { w.indexer = ix }
}

// WithLocker serializes runs of the same job across workers.
func WithLocker(l redis.Locker) WorkerOption {
	return func(w *Worker) { w.locker = l }
}

func WithWorkerMetrics(m *prometheus.AppMetrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// NewWorker creates a Worker. publisher may be nil when nobody listens for
// completions.
func NewWorker(store Store, profiler Profiler, publisher Publisher, topics Topics, cfg WorkerConfig, logger logging.Logger, opts ...WorkerOption) (*Worker, error) {
	if store == nil {
		return nil, errors.InvalidParam("job store is required")
	}
	if profiler == nil {
		return nil, errors.InvalidParam("profiler is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	w := &Worker{
		store:     store,
		profiler:  profiler,
		publisher: publisher,
		topics:    topics,
		config:    cfg.withDefaults(),
		logger:    logger.Named("worker"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Handle is a common.MessageHandler for the request topic. A returned error
// asks the caller to redeliver; kafka.Permanent errors must not be retried.
func (w *Worker) Handle(ctx context.Context, msg *common.Message) error {
	var req job.Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		w.logger.Error("undecodable job request", logging.Int64("offset", msg.Offset), logging.Err(err))
		return kafka.Permanent(errors.Wrap(err, errors.ErrCodeSerialization, "invalid job request"))
	}
	if req.JobID == "" {
		return kafka.Permanent(errors.InvalidParam("job request without job_id"))
	}
	log := w.logger.With(logging.String("job_id", req.JobID))

	if w.locker != nil {
		lock := w.locker.NewLock("job:"+req.JobID, redis.WithLockTTL(w.config.LockTTL), redis.WithWatchdog(w.config.LockTTL/3))
		ok, err := lock.TryLock(ctx)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeCacheError, "job lock failed")
		}
		if !ok {
			log.Info("job is being processed elsewhere, skipping")
			return nil
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				log.Warn("job unlock failed", logging.Err(err))
			}
		}()
	}

	j, err := w.store.Get(ctx, req.JobID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeJobNotFound) {
			return kafka.Permanent(err)
		}
		return err
	}
	if j.Status == job.StatusCompleted {
		log.Info("job already completed, skipping")
		return nil
	}
	if err := w.store.MarkRunning(ctx, req.JobID); err != nil {
		return err
	}
	attempt := j.Attempts + 1

	start := w.now()
	runCtx, cancel := context.WithTimeout(ctx, w.config.HandlerTimeout)
	res, archiveKey, err := w.run(runCtx, &req)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		if !isPermanent(err) && attempt < w.config.MaxAttempts {
			log.Warn("job run failed, will retry",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", w.config.MaxAttempts),
				logging.Err(err))
			return err
		}
		w.fail(ctx, log, req.JobID, err, w.now().Sub(start))
		return kafka.Permanent(err)
	}

	if err := w.store.MarkCompleted(ctx, req.JobID, archiveKey); err != nil {
		return err
	}
	duration := w.now().Sub(start)
	prometheus.RecordJob(w.metrics, string(job.StatusCompleted), duration)

	q := res.Profile.Meta.Quality
	w.publish(ctx, log, job.Completed{
		JobID:      req.JobID,
		Status:     job.StatusCompleted,
		ArchiveKey: archiveKey,
		SpanCount:  q.SpanCount,
		RedFlags:   q.RedFlags,
	})
	log.Info("job completed",
		logging.Int("attempt", attempt),
		logging.Int("span_count", q.SpanCount),
		logging.String("archive_key", archiveKey),
		logging.Duration("duration", duration))
	return nil
}

// run executes the pipeline and stores the result. The archive key is empty
// when no archive is configured.
func (w *Worker) run(ctx context.Context, req *job.Request) (*job.Result, string, error) {
	opts := clause_ner.WindowOptions{MaxLen: req.MaxLen, Stride: req.Stride, BatchSize: req.BatchSize}
	p, err := w.profiler.Profile(ctx, req.Text, opts)
	if err != nil {
		return nil, "", err
	}
	refined, err := refinement.Refine(p)
	if err != nil {
		return nil, "", err
	}
	prometheus.RecordSpansDropped(w.metrics, refined.Meta.SourceQuality.SpansDropped)

	res := &job.Result{JobID: req.JobID, Profile: p, Refined: refined}
	var key string
	if w.archive != nil {
		if key, err = w.archive.Put(ctx, res); err != nil {
			return nil, "", err
		}
	}
	if w.cache != nil {
		if err := w.cache.Set(ctx, ResultCacheKey(req.JobID), res, w.config.ResultTTL); err != nil {
			if w.archive == nil {
				return nil, "", err
			}
			w.logger.Warn("result cache write failed", logging.String("job_id", req.JobID), logging.Err(err))
		}
	}
	if w.indexer != nil {
		br, err := w.indexer.IndexRefined(ctx, req.JobID, w.profiler.Model(), refined)
		switch {
		case err != nil:
			prometheus.RecordError(w.metrics, "worker", "index")
			w.logger.Warn("clause indexing failed", logging.String("job_id", req.JobID), logging.Err(err))
		case br != nil && br.Failed > 0:
			w.logger.Warn("clause indexing partially failed",
				logging.String("job_id", req.JobID),
				logging.Int("failed", br.Failed))
		}
	}
	return res, key, nil
}

func (w *Worker) fail(ctx context.Context, log logging.Logger, id string, cause error, d time.Duration) {
	prometheus.RecordJob(w.metrics, string(job.StatusFailed), d)
	prometheus.RecordError(w.metrics, "worker", string(errors.GetCode(cause)))
	if err := w.store.MarkFailed(ctx, id, cause.Error()); err != nil {
		log.Error("mark job failed", logging.Err(err))
	}
	w.publish(ctx, log, job.Completed{
		JobID:    id,
		Status:   job.StatusFailed,
		Error:    cause.Error(),
		RedFlags: []string{},
	})
	log.Error("job failed", logging.Err(cause))
}

func (w *Worker) publish(ctx context.Context, log logging.Logger, c job.Completed) {
	if w.publisher == nil || w.topics.Result == "" {
		return
	}
	if c.RedFlags == nil {
		c.RedFlags = []string{}
	}
	err := w.publisher.PublishJSON(ctx, w.topics.Result, c.JobID, c, map[string]string{
		"job_id": c.JobID,
		"status": string(c.Status),
	})
	if err != nil {
		prometheus.RecordError(w.metrics, "worker", "publish")
		log.Warn("completion publish failed", logging.Err(err))
	}
}

// isPermanent reports whether rerunning the job cannot change the outcome.
func isPermanent(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeNoUsableInput, errors.ErrCodeInvalidInputShape,
		errors.ErrCodeValidation, errors.ErrCodeBadRequest, errors.ErrCodeSerialization:
		return true
	}
	return false
}
