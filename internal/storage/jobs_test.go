package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJobStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.UpdateJobStatus(ctx, &JobUpdate{
		JobID:         "job-1",
		ApplicationID: "app-9",
		Sequence:      3,
		Status:        StatusQueued,
		Filename:      "passport.jpg",
	}))

	clock = clock.Add(time.Second)
	require.NoError(t, store.UpdateJobStatus(ctx, &JobUpdate{
		JobID:  "job-1",
		Status: StatusProcessing,
	}))

	clock = clock.Add(time.Second)
	require.NoError(t, store.UpdateJobStatus(ctx, &JobUpdate{
		JobID:             "job-1",
		Status:            StatusFailed,
		Stage:             "quality",
		QualityConfidence: 40,
		Issues:            []string{"a", "b"},
		ErrorCode:         "QUALITY_CHECK_FAILED",
	}))

	job, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "app-9", job.ApplicationID, "earlier values survive partial updates")
	assert.Equal(t, int64(3), job.Sequence)
	assert.Equal(t, "passport.jpg", job.Filename)
	assert.Equal(t, "quality", job.Stage)
	assert.Equal(t, 40, job.QualityConfidence)
	assert.Equal(t, []string{"a", "b"}, job.Issues)
	assert.Equal(t, "QUALITY_CHECK_FAILED", job.ErrorCode)
	assert.Equal(t, clock.Add(-2*time.Second), job.CreatedAt)
	assert.Equal(t, clock, job.UpdatedAt)
}

func TestMemoryJobStoreClearsErrorOnRetry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()

	require.NoError(t, store.UpdateJobStatus(ctx, &JobUpdate{JobID: "job-2", Status: StatusFailed, ErrorCode: "OCR_FAILED"}))
	require.NoError(t, store.UpdateJobStatus(ctx, &JobUpdate{JobID: "job-2", Status: StatusCompleted}))

	job, err := store.GetJob(ctx, "job-2")
	require.NoError(t, err)
	assert.Empty(t, job.ErrorCode)
}

func TestMemoryJobStoreValidation(t *testing.T) {
	store := NewMemoryJobStore()

	assert.Error(t, store.UpdateJobStatus(context.Background(), &JobUpdate{Status: StatusQueued}))
	assert.Error(t, store.UpdateJobStatus(context.Background(), &JobUpdate{JobID: "job-3"}))
}

func TestMemoryJobStoreNotFound(t *testing.T) {
	_, err := NewMemoryJobStore().GetJob(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestMemoryJobStoreReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobStore()
	require.NoError(t, store.UpdateJobStatus(ctx, &JobUpdate{JobID: "job-4", Status: StatusQueued}))

	job, err := store.GetJob(ctx, "job-4")
	require.NoError(t, err)
	job.Status = "tampered"

	again, err := store.GetJob(ctx, "job-4")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, again.Status)
}
