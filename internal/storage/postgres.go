/**
 * PostgreSQL Client for the Passport OCR Worker
 *
 * Persists job tracking rows only: status, stage, engine, quality confidence,
 * issue list and error codes. Extracted passport field values are never
 * written to the database.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS passport_ocr;

	CREATE TABLE IF NOT EXISTS passport_ocr.jobs (
		id                  TEXT PRIMARY KEY,
		application_id      TEXT,
		sequence            BIGINT,
		status              TEXT NOT NULL,
		stage               TEXT,
		filename            TEXT,
		mime_type           TEXT,
		file_size           BIGINT,
		ocr_engine          TEXT,
		quality_confidence  INTEGER,
		fields_extracted    INTEGER,
		issues              TEXT[],
		error_code          TEXT,
		error_message       TEXT,
		processing_time_ms  BIGINT,
		metadata            JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS jobs_application_idx
		ON passport_ocr.jobs (application_id, sequence DESC);
`

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the tracking schema and table if missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create job tracking schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row. The first update for a job creates it.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if err := validateUpdate(update); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var issues interface{}
	if update.Issues != nil {
		issues = pq.Array(update.Issues)
	}

	query := `
		INSERT INTO passport_ocr.jobs (
			id, application_id, sequence, status, stage,
			filename, mime_type, file_size, ocr_engine,
			quality_confidence, fields_extracted, issues,
			error_code, error_message, processing_time_ms, metadata,
			created_at, updated_at
		) VALUES (
			$1, NULLIF($2, ''), NULLIF($3::BIGINT, 0), $4, NULLIF($5, ''),
			NULLIF($6, ''), NULLIF($7, ''), NULLIF($8::BIGINT, 0), NULLIF($9, ''),
			NULLIF($10, 0), NULLIF($11, 0), $12,
			NULLIF($13, ''), NULLIF($14, ''), NULLIF($15::BIGINT, 0),
			COALESCE(NULLIF($16, 'null')::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			application_id = COALESCE(EXCLUDED.application_id, passport_ocr.jobs.application_id),
			sequence = COALESCE(EXCLUDED.sequence, passport_ocr.jobs.sequence),
			stage = COALESCE(EXCLUDED.stage, passport_ocr.jobs.stage),
			filename = COALESCE(EXCLUDED.filename, passport_ocr.jobs.filename),
			mime_type = COALESCE(EXCLUDED.mime_type, passport_ocr.jobs.mime_type),
			file_size = COALESCE(EXCLUDED.file_size, passport_ocr.jobs.file_size),
			ocr_engine = COALESCE(EXCLUDED.ocr_engine, passport_ocr.jobs.ocr_engine),
			quality_confidence = COALESCE(EXCLUDED.quality_confidence, passport_ocr.jobs.quality_confidence),
			fields_extracted = COALESCE(EXCLUDED.fields_extracted, passport_ocr.jobs.fields_extracted),
			issues = COALESCE(EXCLUDED.issues, passport_ocr.jobs.issues),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, passport_ocr.jobs.processing_time_ms),
			metadata = passport_ocr.jobs.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,             // $1
		update.ApplicationID,     // $2
		update.Sequence,          // $3
		update.Status,            // $4
		update.Stage,             // $5
		update.Filename,          // $6
		update.MimeType,          // $7
		update.FileSize,          // $8
		update.OCREngine,         // $9
		update.QualityConfidence, // $10
		update.FieldsExtracted,   // $11
		issues,                   // $12
		update.ErrorCode,         // $13
		update.ErrorMessage,      // $14
		update.ProcessingTimeMs,  // $15
		string(metadataJSON),     // $16
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// GetJob retrieves the tracked state of a job
func (p *PostgresClient) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT id, COALESCE(application_id, ''), COALESCE(sequence, 0), status,
			COALESCE(stage, ''), COALESCE(filename, ''), COALESCE(mime_type, ''),
			COALESCE(file_size, 0), COALESCE(ocr_engine, ''),
			COALESCE(quality_confidence, 0), COALESCE(fields_extracted, 0), issues,
			COALESCE(error_code, ''), COALESCE(error_message, ''),
			COALESCE(processing_time_ms, 0), metadata, created_at, updated_at
		FROM passport_ocr.jobs
		WHERE id = $1
	`

	var (
		job          Job
		issues       pq.StringArray
		metadataJSON []byte
	)
	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.ApplicationID, &job.Sequence, &job.Status,
		&job.Stage, &job.Filename, &job.MimeType,
		&job.FileSize, &job.OCREngine,
		&job.QualityConfidence, &job.FieldsExtracted, &issues,
		&job.ErrorCode, &job.ErrorMessage,
		&job.ProcessingTimeMs, &metadataJSON, &job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Issues = []string(issues)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &job.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode job metadata: %w", err)
		}
	}

	return &job, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	return p.db.Close()
}
