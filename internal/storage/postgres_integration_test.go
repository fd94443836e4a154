//go:build integration

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: go test -tags integration ./internal/storage/
// against a scratch database named by PASSPORT_OCR_TEST_DATABASE_URL.
func newTestPostgres(t *testing.T) *PostgresClient {
	t.Helper()
	url := os.Getenv("PASSPORT_OCR_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PASSPORT_OCR_TEST_DATABASE_URL not set")
	}

	pg, err := NewPostgresClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })

	require.NoError(t, pg.EnsureSchema(context.Background()))
	// second run must be a no-op
	require.NoError(t, pg.EnsureSchema(context.Background()))
	return pg
}

func TestPostgresJobLifecycle(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	jobID := uuid.New().String()

	require.NoError(t, pg.UpdateJobStatus(ctx, &JobUpdate{
		JobID:         jobID,
		ApplicationID: "app-9",
		Sequence:      3,
		Status:        StatusQueued,
		Filename:      "passport.jpg",
		MimeType:      "image/jpeg",
		FileSize:      5 << 20,
	}))

	require.NoError(t, pg.UpdateJobStatus(ctx, &JobUpdate{
		JobID:  jobID,
		Status: StatusProcessing,
	}))

	require.NoError(t, pg.UpdateJobStatus(ctx, &JobUpdate{
		JobID:             jobID,
		Status:            StatusFailed,
		Stage:             "quality",
		OCREngine:         "ocrspace",
		QualityConfidence: 40,
		Issues:            []string{"Text too short", "MRZ not found"},
		ErrorCode:         "QUALITY_CHECK_FAILED",
		ErrorMessage:      "quality check failed",
		ProcessingTimeMs:  1250,
		Metadata:          map[string]interface{}{"latest": true},
	}))

	job, err := pg.GetJob(ctx, jobID)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "app-9", job.ApplicationID, "earlier values survive partial updates")
	assert.Equal(t, int64(3), job.Sequence)
	assert.Equal(t, "passport.jpg", job.Filename)
	assert.Equal(t, int64(5<<20), job.FileSize)
	assert.Equal(t, "quality", job.Stage)
	assert.Equal(t, 40, job.QualityConfidence)
	assert.Equal(t, []string{"Text too short", "MRZ not found"}, job.Issues)
	assert.Equal(t, "QUALITY_CHECK_FAILED", job.ErrorCode)
	assert.Equal(t, int64(1250), job.ProcessingTimeMs)
	assert.Equal(t, true, job.Metadata["latest"])
	assert.False(t, job.UpdatedAt.Before(job.CreatedAt))
}

func TestPostgresClearsErrorOnRetry(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	jobID := uuid.New().String()

	require.NoError(t, pg.UpdateJobStatus(ctx, &JobUpdate{
		JobID:        jobID,
		Status:       StatusFailed,
		ErrorCode:    "OCR_FAILED",
		ErrorMessage: "E500",
		Metadata:     map[string]interface{}{"attempt": 1},
	}))
	require.NoError(t, pg.UpdateJobStatus(ctx, &JobUpdate{
		JobID:           jobID,
		Status:          StatusCompleted,
		FieldsExtracted: 9,
		Metadata:        map[string]interface{}{"latest": false},
	}))

	job, err := pg.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Empty(t, job.ErrorCode)
	assert.Empty(t, job.ErrorMessage)
	assert.Equal(t, 9, job.FieldsExtracted)
	assert.Nil(t, job.Issues)
	assert.Equal(t, map[string]interface{}{"attempt": float64(1), "latest": false}, job.Metadata)
}

func TestPostgresJobNotFound(t *testing.T) {
	pg := newTestPostgres(t)

	_, err := pg.GetJob(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.Error(t, pg.UpdateJobStatus(context.Background(), &JobUpdate{Status: StatusQueued}))
	assert.NoError(t, pg.Ping(context.Background()))
}
