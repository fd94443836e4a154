package errors

import (
	"errors"
	"fmt"
	"time"
)

/**
 * Structured errors for the passport OCR worker
 *
 * Domain failures (not a passport, poor quality) travel as outcomes; these
 * errors describe infrastructure failures and are also used to label failed
 * jobs in the tracking table.
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Pipeline errors
	ErrorOCRFailed          ErrorCode = "OCR_FAILED"
	ErrorNotAPassport       ErrorCode = "NOT_A_PASSPORT"
	ErrorQualityCheckFailed ErrorCode = "QUALITY_CHECK_FAILED"
	ErrorUnsupportedFormat  ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorFileLoadFailed     ErrorCode = "FILE_LOAD_FAILED"
	ErrorProcessingTimeout  ErrorCode = "PROCESSING_TIMEOUT"

	// Storage errors
	ErrorStorageFailed ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// CodeOf returns the code of the first ProcessingError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Factory functions

func NewOCRFailedError(jobID string, engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   fmt.Sprintf("Text extraction failed on engine: %s", engine),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewNotAPassportError(jobID string, indicatorCount int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNotAPassport,
		Message:   "Document does not appear to be a passport",
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"indicator_count": indicatorCount,
		},
	}
}

func NewQualityCheckFailedError(jobID string, issues []string, confidence int) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorQualityCheckFailed,
		Message:   fmt.Sprintf("Quality check failed with %d issue(s)", len(issues)),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"issue_count":        len(issues),
			"quality_confidence": confidence,
		},
	}
}

func NewUnsupportedFormatError(jobID string, mimeType string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorUnsupportedFormat,
		Message:   fmt.Sprintf("Unsupported file format: %s", mimeType),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
	}
}

func NewFileLoadFailedError(jobID string, source string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorFileLoadFailed,
		Message:   fmt.Sprintf("Failed to load file from %s", source),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"source": source,
		},
		Cause: cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store job state",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
