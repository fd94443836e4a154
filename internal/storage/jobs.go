package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Job statuses
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrJobNotFound is returned when a job ID has no tracking record
var ErrJobNotFound = errors.New("job not found")

// JobStore tracks passport OCR job status. It never holds extracted field values.
type JobStore interface {
	UpdateJobStatus(ctx context.Context, update *JobUpdate) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	Ping(ctx context.Context) error
	Close() error
}

// JobUpdate represents a job status update. Zero values leave the stored
// column unchanged, except Status which is always written.
type JobUpdate struct {
	JobID             string
	ApplicationID     string
	Sequence          int64
	Status            string
	Stage             string
	Filename          string
	MimeType          string
	FileSize          int64
	OCREngine         string
	QualityConfidence int
	FieldsExtracted   int
	Issues            []string
	ErrorCode         string
	ErrorMessage      string
	ProcessingTimeMs  int64
	Metadata          map[string]interface{}
}

// Job is the tracked state of one passport OCR job
type Job struct {
	ID                string                 `json:"id"`
	ApplicationID     string                 `json:"applicationId,omitempty"`
	Sequence          int64                  `json:"sequence,omitempty"`
	Status            string                 `json:"status"`
	Stage             string                 `json:"stage,omitempty"`
	Filename          string                 `json:"filename,omitempty"`
	MimeType          string                 `json:"mimeType,omitempty"`
	FileSize          int64                  `json:"fileSize,omitempty"`
	OCREngine         string                 `json:"ocrEngine,omitempty"`
	QualityConfidence int                    `json:"qualityConfidence,omitempty"`
	FieldsExtracted   int                    `json:"fieldsExtracted,omitempty"`
	Issues            []string               `json:"issues,omitempty"`
	ErrorCode         string                 `json:"errorCode,omitempty"`
	ErrorMessage      string                 `json:"errorMessage,omitempty"`
	ProcessingTimeMs  int64                  `json:"processingTimeMs,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

func validateUpdate(update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}
	return nil
}

// MemoryJobStore keeps job state in process memory. Used when no database is
// configured and in tests.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewMemoryJobStore creates an empty in-memory job store
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// UpdateJobStatus creates or merges the job record, mirroring the upsert
// semantics of the PostgreSQL store.
func (m *MemoryJobStore) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if err := validateUpdate(update); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	job, ok := m.jobs[update.JobID]
	if !ok {
		job = &Job{ID: update.JobID, CreatedAt: now}
		m.jobs[update.JobID] = job
	}

	job.Status = update.Status
	job.UpdatedAt = now
	setString(&job.ApplicationID, update.ApplicationID)
	setString(&job.Stage, update.Stage)
	setString(&job.Filename, update.Filename)
	setString(&job.MimeType, update.MimeType)
	setString(&job.OCREngine, update.OCREngine)
	if update.Sequence != 0 {
		job.Sequence = update.Sequence
	}
	if update.FileSize != 0 {
		job.FileSize = update.FileSize
	}
	if update.QualityConfidence != 0 {
		job.QualityConfidence = update.QualityConfidence
	}
	if update.FieldsExtracted != 0 {
		job.FieldsExtracted = update.FieldsExtracted
	}
	if update.ProcessingTimeMs != 0 {
		job.ProcessingTimeMs = update.ProcessingTimeMs
	}
	if update.Issues != nil {
		job.Issues = append([]string(nil), update.Issues...)
	}
	if update.Metadata != nil {
		job.Metadata = update.Metadata
	}
	// error columns always follow the latest update
	job.ErrorCode = update.ErrorCode
	job.ErrorMessage = update.ErrorMessage

	return nil
}

// GetJob returns a copy of the tracked job
func (m *MemoryJobStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryJobStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryJobStore) Close() error { return nil }

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
