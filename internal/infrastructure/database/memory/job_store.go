package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/job"
)

// JobStore keeps jobs in process memory for deployments without postgres.
// Jobs are forgotten retention after their last update.
type JobStore struct {
	mu        sync.Mutex
	store     *gocache.Cache
	retention time.Duration
	now       func() time.Time
}

func NewJobStore(retention time.Duration) *JobStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &JobStore{
		store:     gocache.New(retention, retention/4),
		retention: retention,
		now:       time.Now,
	}
}

func (s *JobStore) Create(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store.Get(j.ID); ok {
		return errors.New(errors.ErrCodeConflict, "job already exists").WithDetail(j.ID)
	}
	now := s.now().UTC()
	j.Status = job.StatusQueued
	j.CreatedAt, j.UpdatedAt = now, now
	cp := *j
	s.store.Set(j.ID, &cp, s.retention)
	return nil
}

func (s *JobStore) Get(_ context.Context, id string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.load(id)
	if err != nil {
		return nil, err
	}
	cp := *j
	return &cp, nil
}

func (s *JobStore) MarkRunning(_ context.Context, id string) error {
	return s.update(id, false, func(j *job.Job, now time.Time) {
		j.Status = job.StatusRunning
		j.Attempts++
		j.Error = ""
		j.StartedAt = &now
	})
}

func (s *JobStore) MarkCompleted(_ context.Context, id, archiveKey string) error {
	return s.update(id, true, func(j *job.Job, now time.Time) {
		j.Status = job.StatusCompleted
		j.ArchiveKey = archiveKey
		j.Error = ""
		j.FinishedAt = &now
	})
}

func (s *JobStore) MarkFailed(_ context.Context, id, message string) error {
	return s.update(id, false, func(j *job.Job, now time.Time) {
		j.Status = job.StatusFailed
		j.Error = message
		j.FinishedAt = &now
	})
}

// update applies fn to a copy of the job. Completed jobs only accept
// transitions when allowCompleted is set, matching the postgres store.
func (s *JobStore) update(id string, allowCompleted bool, fn func(*job.Job, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.load(id)
	if err != nil {
		return err
	}
	if j.Status == job.StatusCompleted && !allowCompleted {
		return errors.New(errors.ErrCodeJobNotFound, "job not found or already completed").WithDetail(id)
	}
	cp := *j
	now := s.now().UTC()
	fn(&cp, now)
	cp.UpdatedAt = now
	s.store.Set(id, &cp, s.retention)
	return nil
}

func (s *JobStore) load(id string) (*job.Job, error) {
	v, ok := s.store.Get(id)
	if !ok {
		return nil, errors.New(errors.ErrCodeJobNotFound, "job not found").WithDetail(id)
	}
	return v.(*job.Job), nil
}
