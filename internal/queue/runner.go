package queue

import (
	"context"
	"fmt"
	"time"

	perrors "github.com/adverant/nexus/passport-ocr-worker/internal/errors"
	"github.com/adverant/nexus/passport-ocr-worker/internal/logging"
	"github.com/adverant/nexus/passport-ocr-worker/internal/processor"
	"github.com/adverant/nexus/passport-ocr-worker/internal/storage"
)

// ResultSink keeps finished results for later retrieval. SaveResult reports
// whether the result became the application's latest one.
type ResultSink interface {
	SaveResult(ctx context.Context, result *processor.ProcessResult) (bool, error)
}

// Runner executes one job end to end: status tracking, the pipeline under a
// deadline, and result storage. Every consumer and the synchronous HTTP path
// go through it.
type Runner struct {
	processor processor.PassportProcessorInterface
	results   ResultSink
	timeout   time.Duration
	logger    *logging.Logger
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Processor         processor.PassportProcessorInterface
	Results           ResultSink
	ProcessingTimeout time.Duration
	Logger            *logging.Logger
}

// NewRunner creates a job runner
func NewRunner(cfg *RunnerConfig) (*Runner, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	timeout := cfg.ProcessingTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("Runner")
	}

	return &Runner{
		processor: cfg.Processor,
		results:   cfg.Results,
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// Run processes req. The result is always returned; the error is non-nil only
// when the result could not be stored.
func (r *Runner) Run(ctx context.Context, req *processor.ProcessRequest) (*processor.ProcessResult, error) {
	log := r.logger.With("job_id", req.JobID)

	if err := r.processor.UpdateJobStatus(ctx, &storage.JobUpdate{
		JobID:         req.JobID,
		ApplicationID: req.ApplicationID,
		Sequence:      req.Sequence,
		Status:        storage.StatusProcessing,
		Filename:      req.Filename,
		MimeType:      req.MimeType,
		FileSize:      req.FileSize,
	}); err != nil {
		log.Warn("Failed to update status to processing", "error", err)
	}

	log.Debug("Processing timeout set", "timeout", r.timeout)
	processCtx, cancel := context.WithTimeout(ctx, r.timeout)
	result := r.processor.ProcessPassport(processCtx, req)
	cancel()

	latest := false
	var storeErr error
	if r.results != nil {
		applied, err := r.results.SaveResult(ctx, result)
		if err != nil {
			log.Error("Failed to store result", "error", err)
			storeErr = perrors.NewStorageFailedError(req.JobID, err)
		}
		latest = applied
		if err == nil && req.ApplicationID != "" && !applied {
			log.Info("Result is older than the application's latest; kept per job only",
				"application_id", req.ApplicationID, "sequence", req.Sequence)
		}
	}

	if err := r.processor.UpdateJobStatus(ctx, completionUpdate(result, latest)); err != nil {
		log.Warn("Failed to update final job status", "error", err)
	}

	return result, storeErr
}

// completionUpdate builds the final tracking update. It carries counts and
// codes only, never field values.
func completionUpdate(result *processor.ProcessResult, latest bool) *storage.JobUpdate {
	update := &storage.JobUpdate{
		JobID:            result.JobID,
		Status:           storage.StatusCompleted,
		OCREngine:        result.OCREngine,
		MimeType:         result.MimeType,
		FieldsExtracted:  result.FieldsExtracted(),
		ProcessingTimeMs: result.ProcessingTimeMs,
		Metadata: map[string]interface{}{
			"latest": latest,
		},
	}

	if outcome := result.Outcome; outcome != nil {
		update.Stage = string(outcome.Stage)
		update.Issues = outcome.Issues
		if outcome.QualityCheck != nil {
			update.QualityConfidence = outcome.QualityCheck.Confidence
		}
	}

	if result.Failure != nil {
		update.Status = storage.StatusFailed
		update.ErrorCode = string(result.Failure.Code)
		update.ErrorMessage = result.Failure.Message
		update.Metadata["error"] = result.Failure.ToMap()
	}

	return update
}
