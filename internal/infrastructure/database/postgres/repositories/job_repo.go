package repositories

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/clauselens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/job"
)

// DBTX is the subset of pgxpool.Pool and pgx.Tx the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobRepo persists profiling jobs in the profiling_jobs table.
type JobRepo struct {
	db      DBTX
	log     logging.Logger
	metrics *prometheus.AppMetrics
	now     func() time.Time
}

func NewJobRepo(db DBTX, log logging.Logger, metrics *prometheus.AppMetrics) *JobRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &JobRepo{db: db, log: log.Named("job_repo"), metrics: metrics, now: time.Now}
}

const jobColumns = `id, status, text_sha256, text_length, max_len, stride, batch_size,
	attempts, error, archive_key, created_at, updated_at, started_at, finished_at`

// Create inserts j as queued and fills its timestamps.
func (r *JobRepo) Create(ctx context.Context, j *job.Job) error {
	now := r.now().UTC()
	j.Status = job.StatusQueued
	j.CreatedAt, j.UpdatedAt = now, now

	_, err := r.exec(ctx, "insert_job", `
		INSERT INTO profiling_jobs (id, status, text_sha256, text_length, max_len, stride, batch_size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, string(j.Status), j.TextSHA256, j.TextLength, j.MaxLen, j.Stride, j.BatchSize, now, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errors.New(errors.ErrCodeConflict, "job already exists").WithDetail(j.ID)
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert job")
	}
	return nil
}

// Get returns the job or a JOB_001 error.
func (r *JobRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	start := time.Now()
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM profiling_jobs WHERE id = $1`, id)

	var (
		j      job.Job
		status string
	)
	err := row.Scan(&j.ID, &status, &j.TextSHA256, &j.TextLength, &j.MaxLen, &j.Stride, &j.BatchSize,
		&j.Attempts, &j.Error, &j.ArchiveKey, &j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.FinishedAt)
	prometheus.RecordDBQuery(r.metrics, "postgres", "get_job", time.Since(start), ignoreNoRows(err))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeJobNotFound, "job not found").WithDetail(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load job")
	}
	j.Status = job.Status(status)
	return &j, nil
}

// MarkRunning moves a queued or failed job to running and counts the attempt.
// Completed jobs are left alone and reported as a conflict.
func (r *JobRepo) MarkRunning(ctx context.Context, id string) error {
	now := r.now().UTC()
	return r.transition(ctx, "mark_running", id, `
		UPDATE profiling_jobs
		SET status = 'running', attempts = attempts + 1, error = '', started_at = $2, updated_at = $2
		WHERE id = $1 AND status <> 'completed'`, id, now)
}

// MarkCompleted records the archive key of a finished job.
func (r *JobRepo) MarkCompleted(ctx context.Context, id, archiveKey string) error {
	now := r.now().UTC()
	return r.transition(ctx, "mark_completed", id, `
		UPDATE profiling_jobs
		SET status = 'completed', archive_key = $2, error = '', finished_at = $3, updated_at = $3
		WHERE id = $1`, id, archiveKey, now)
}

// MarkFailed records the failure message.
func (r *JobRepo) MarkFailed(ctx context.Context, id, message string) error {
	now := r.now().UTC()
	return r.transition(ctx, "mark_failed", id, `
		UPDATE profiling_jobs
		SET status = 'failed', error = $2, finished_at = $3, updated_at = $3
		WHERE id = $1 AND status <> 'completed'`, id, message, now)
}

func (r *JobRepo) transition(ctx context.Context, op, id, sql string, args ...any) error {
	tag, err := r.exec(ctx, op, sql, args...)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeDatabaseError, "failed to %s", op)
	}
	if tag.RowsAffected() == 0 {
		r.log.Warn("job transition matched no row", logging.String("job_id", id), logging.String("op", op))
		return errors.New(errors.ErrCodeJobNotFound, "job not found or already completed").WithDetail(id)
	}
	return nil
}

func (r *JobRepo) exec(ctx context.Context, op, sql string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := r.db.Exec(ctx, sql, args...)
	prometheus.RecordDBQuery(r.metrics, "postgres", op, time.Since(start), err)
	return tag, err
}

func ignoreNoRows(err error) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
