/**
 * Passport Processor for the Passport OCR Worker
 *
 * Runs one uploaded passport image through the pipeline:
 * 1. Load the file (buffer or URL download)
 * 2. Detect the real content type from magic bytes
 * 3. Acquire raw text from the configured OCR engine (single attempt)
 * 4. Classify, quality-gate, extract, reconcile and score
 *
 * Every failure comes back as a structured outcome. Only the file download
 * is retried; the OCR call never is.
 */

package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	perrors "github.com/adverant/nexus/passport-ocr-worker/internal/errors"
	"github.com/adverant/nexus/passport-ocr-worker/internal/logging"
	"github.com/adverant/nexus/passport-ocr-worker/internal/passport"
	"github.com/adverant/nexus/passport-ocr-worker/internal/storage"
)

// PassportProcessorInterface defines the interface for passport processing
type PassportProcessorInterface interface {
	ProcessPassport(ctx context.Context, req *ProcessRequest) *ProcessResult
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
	GetJob(ctx context.Context, jobID string) (*storage.Job, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Engine      OCREngine
	Jobs        storage.JobStore
	MaxFileSize int64
	Logger      *logging.Logger
}

// ProcessRequest represents one passport OCR request
type ProcessRequest struct {
	JobID         string
	ApplicationID string
	Sequence      int64
	Filename      string
	MimeType      string
	FileSize      int64
	FileURL       string
	FileBuffer    []byte
	Metadata      map[string]interface{}
}

// ProcessResult is the outcome of one request plus run metadata
type ProcessResult struct {
	JobID            string                   `json:"jobId"`
	ApplicationID    string                   `json:"applicationId,omitempty"`
	Sequence         int64                    `json:"sequence,omitempty"`
	Outcome          *passport.Outcome        `json:"outcome"`
	OCREngine        string                   `json:"ocrEngine,omitempty"`
	MimeType         string                   `json:"mimeType,omitempty"`
	ProcessingTimeMs int64                    `json:"processingTimeMs"`
	CompletedAt      time.Time                `json:"completedAt"`
	Failure          *perrors.ProcessingError `json:"-"`
}

// ErrorCode returns the failure code, or "" for a successful run
func (r *ProcessResult) ErrorCode() perrors.ErrorCode {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Code
}

// FieldsExtracted counts the scored fields of a successful run
func (r *ProcessResult) FieldsExtracted() int {
	if r.Outcome == nil || r.Outcome.Data == nil {
		return 0
	}
	return len(r.Outcome.Data.Fields)
}

// supportedMimeTypes lists the content types sent to OCR
var supportedMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"image/tiff":      true,
	"image/bmp":       true,
	"application/pdf": true,
}

// retryPolicy bounds URL download retries
type retryPolicy struct {
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

var defaultDownloadRetry = retryPolicy{
	maxRetries:     3,
	initialBackoff: time.Second,
	maxBackoff:     8 * time.Second,
}

// PassportProcessor handles passport processing
type PassportProcessor struct {
	engine      OCREngine
	jobs        storage.JobStore
	maxFileSize int64
	httpClient  *http.Client
	retry       retryPolicy
	logger      *logging.Logger
}

// NewPassportProcessor creates a new passport processor
func NewPassportProcessor(cfg *ProcessorConfig) (*PassportProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Engine == nil {
		return nil, fmt.Errorf("OCR engine is required")
	}

	jobs := cfg.Jobs
	if jobs == nil {
		jobs = storage.NewMemoryJobStore()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("PassportProcessor")
	}

	return &PassportProcessor{
		engine:      cfg.Engine,
		jobs:        jobs,
		maxFileSize: cfg.MaxFileSize,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		retry:  defaultDownloadRetry,
		logger: logger,
	}, nil
}

// ProcessPassport runs the full pipeline for one request. It never returns an
// error; failures are described by the outcome and the result's Failure.
func (p *PassportProcessor) ProcessPassport(ctx context.Context, req *ProcessRequest) *ProcessResult {
	startTime := time.Now()
	log := p.logger.With("job_id", req.JobID)
	log.Info("Starting passport processing pipeline")

	result := &ProcessResult{
		JobID:         req.JobID,
		ApplicationID: req.ApplicationID,
		Sequence:      req.Sequence,
		OCREngine:     p.engine.Name(),
	}
	finish := func(outcome *passport.Outcome, failure *perrors.ProcessingError) *ProcessResult {
		result.Outcome = outcome
		result.Failure = failure
		result.CompletedAt = time.Now()
		result.ProcessingTimeMs = time.Since(startTime).Milliseconds()
		log.Info("Passport processing finished",
			"stage", outcome.Stage,
			"success", outcome.Success,
			"error_code", result.ErrorCode(),
			"duration_ms", result.ProcessingTimeMs)
		return result
	}

	// Step 1: Load file
	log.Info("Step 1: Loading file", "declared_size", req.FileSize)
	fileData, err := p.loadFile(ctx, req)
	if err != nil {
		log.Warn("File load failed", "error", err)
		source := "buffer"
		if len(req.FileBuffer) == 0 {
			source = "url"
		}
		return finish(passport.AcquisitionFailure(err.Error()),
			perrors.NewFileLoadFailedError(req.JobID, source, err))
	}

	// Step 2: Detect actual MIME type from magic bytes
	mimeType := detectMimeTypeFromMagicBytes(fileData)
	if mimeType == "" {
		mimeType = req.MimeType
	}
	if mimeType != req.MimeType && req.MimeType != "" {
		log.Info("Corrected MIME type from magic bytes", "declared", req.MimeType, "detected", mimeType)
	}
	result.MimeType = mimeType
	log.Info("Step 2: File type detected", "mime_type", mimeType, "size", len(fileData))
	if !supportedMimeTypes[mimeType] {
		unsupported := perrors.NewUnsupportedFormatError(req.JobID, mimeType)
		return finish(passport.AcquisitionFailure(unsupported.Message), unsupported)
	}

	// Step 3: Acquire text (single attempt)
	log.Info("Step 3: Recognizing text", "engine", p.engine.Name())
	raw, err := p.acquire(ctx, &Document{Data: fileData, Filename: req.Filename, MimeType: mimeType})
	if err != nil {
		log.Warn("Text acquisition failed", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return finish(passport.AcquisitionFailure(raw.Error),
				perrors.NewProcessingTimeoutError(req.JobID, time.Since(startTime), err))
		}
		return finish(passport.AcquisitionFailure(raw.Error),
			perrors.NewOCRFailedError(req.JobID, p.engine.Name(), err))
	}
	log.Info("Text acquired", "chars", len([]rune(raw.Text)), "exit_code", raw.ExitCode)

	// Step 4: Interpret
	outcome := passport.Interpret(raw)
	switch outcome.Stage {
	case passport.StageClassification:
		log.Info("Step 4: Document rejected by classifier", "reasons", len(outcome.Reasons))
		return finish(outcome, perrors.NewNotAPassportError(req.JobID, len(outcome.Reasons)))
	case passport.StageQuality:
		log.Info("Step 4: Quality gate failed", "issues", len(outcome.Issues))
		return finish(outcome, perrors.NewQualityCheckFailedError(req.JobID, outcome.Issues, outcome.QualityCheck.Confidence))
	}

	log.Info("Step 4: Fields extracted", "fields", len(outcome.Data.Fields))
	return finish(outcome, nil)
}

// acquire calls the engine once and converts its answer into the raw OCR record.
func (p *PassportProcessor) acquire(ctx context.Context, doc *Document) (passport.RawOCRResult, error) {
	res, err := p.engine.Recognize(ctx, doc)
	if err != nil {
		msg := err.Error()
		var providerErr *ProviderError
		if errors.As(err, &providerErr) {
			msg = providerErr.Message
		}
		return passport.RawOCRResult{Success: false, Error: msg}, err
	}

	return passport.RawOCRResult{
		Success:      true,
		Text:         res.Text,
		ExitCode:     res.ExitCode,
		ErrorDetails: res.ErrorDetails,
	}, nil
}

// UpdateJobStatus updates job status in the job store
func (p *PassportProcessor) UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error {
	return p.jobs.UpdateJobStatus(ctx, update)
}

// GetJob returns the tracked job state
func (p *PassportProcessor) GetJob(ctx context.Context, jobID string) (*storage.Job, error) {
	return p.jobs.GetJob(ctx, jobID)
}

// loadFile loads file from buffer or URL
func (p *PassportProcessor) loadFile(ctx context.Context, req *ProcessRequest) ([]byte, error) {
	var data []byte
	switch {
	case len(req.FileBuffer) > 0:
		data = req.FileBuffer
	case req.FileURL != "":
		downloaded, err := p.downloadFileFromURL(ctx, req.JobID, req.FileURL)
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		data = downloaded
	default:
		return nil, fmt.Errorf("no file source provided (buffer or URL)")
	}

	if p.maxFileSize > 0 && int64(len(data)) > p.maxFileSize {
		return nil, fmt.Errorf("file size exceeds maximum: %d > %d bytes", len(data), p.maxFileSize)
	}

	return data, nil
}

// downloadFileFromURL downloads a file with bounded retries and exponential backoff
func (p *PassportProcessor) downloadFileFromURL(ctx context.Context, jobID string, fileURL string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= p.retry.maxRetries; attempt++ {
		p.logger.Debug("Download attempt", "job_id", jobID, "attempt", attempt, "max_attempts", p.retry.maxRetries)

		data, err := p.fetch(ctx, fileURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var tooLarge *fileTooLargeError
		if errors.As(err, &tooLarge) || ctx.Err() != nil {
			return nil, err
		}

		p.logger.Warn("Download attempt failed", "job_id", jobID, "attempt", attempt, "error", err)

		if attempt < p.retry.maxRetries {
			backoff := p.backoff(attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("failed to download file after %d attempts: %w", p.retry.maxRetries, lastErr)
}

func (p *PassportProcessor) backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.retry.initialBackoff) * math.Pow(2, float64(attempt-1)))
	if d > p.retry.maxBackoff {
		d = p.retry.maxBackoff
	}
	return d
}

type fileTooLargeError struct {
	size, limit int64
}

func (e *fileTooLargeError) Error() string {
	return fmt.Sprintf("file size exceeds maximum: %d > %d bytes", e.size, e.limit)
}

func (p *PassportProcessor) fetch(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid file URL: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if p.maxFileSize > 0 && resp.ContentLength > p.maxFileSize {
		return nil, &fileTooLargeError{size: resp.ContentLength, limit: p.maxFileSize}
	}

	reader := io.Reader(resp.Body)
	if p.maxFileSize > 0 {
		// one extra byte tells an oversized body from one exactly at the limit
		reader = io.LimitReader(resp.Body, p.maxFileSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if p.maxFileSize > 0 && int64(len(data)) > p.maxFileSize {
		return nil, &fileTooLargeError{size: int64(len(data)), limit: p.maxFileSize}
	}

	return data, nil
}

// detectMimeTypeFromMagicBytes detects the actual MIME type from file content.
// Uploads frequently arrive as application/octet-stream.
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp"
	case bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}), bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return "image/tiff"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}):
		return "application/zip"
	}

	return ""
}
