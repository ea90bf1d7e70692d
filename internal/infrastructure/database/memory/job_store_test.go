package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/job"
)

func TestJobStore_Lifecycle(t *testing.T) {
	s := NewJobStore(time.Hour)
	clock := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	j := &job.Job{ID: "j1", TextLength: 10}
	require.NoError(t, s.Create(ctx, j))
	assert.Equal(t, job.StatusQueued, j.Status)
	assert.Equal(t, clock, j.CreatedAt)

	err := s.Create(ctx, &job.Job{ID: "j1"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))

	require.NoError(t, s.MarkRunning(ctx, "j1"))
	require.NoError(t, s.MarkRunning(ctx, "j1"))
	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, job.StatusRunning, got.Status)
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.StartedAt)

	clock = clock.Add(time.Minute)
	require.NoError(t, s.MarkCompleted(ctx, "j1", "profiles/j1.json"))
	got, _ = s.Get(ctx, "j1")
	assert.Equal(t, job.StatusCompleted, got.Status)
	assert.Equal(t, "profiles/j1.json", got.ArchiveKey)
	assert.Equal(t, clock, got.UpdatedAt)

	assert.True(t, errors.IsCode(s.MarkRunning(ctx, "j1"), errors.ErrCodeJobNotFound))
	assert.True(t, errors.IsCode(s.MarkFailed(ctx, "j1", "late"), errors.ErrCodeJobNotFound))
}

func TestJobStore_UnknownJob(t *testing.T) {
	s := NewJobStore(0)
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.True(t, errors.IsCode(err, errors.ErrCodeJobNotFound))
	assert.True(t, errors.IsCode(s.MarkFailed(ctx, "nope", "x"), errors.ErrCodeJobNotFound))
}

func TestJobStore_ReturnsCopies(t *testing.T) {
	s := NewJobStore(time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &job.Job{ID: "j"}))

	got, err := s.Get(ctx, "j")
	require.NoError(t, err)
	got.Status = job.StatusFailed

	again, _ := s.Get(ctx, "j")
	assert.Equal(t, job.StatusQueued, again.Status)
}
