/**
 * OCR Types - Shared data structures for text acquisition
 *
 * Common types used by the OCR.space engine and the local Tesseract engine
 */

package processor

import (
	"context"
	"time"
)

// OCREngine turns one document into raw recognized text
type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, doc *Document) (*OCRResult, error)
}

// Document is a loaded file ready for recognition
type Document struct {
	Data     []byte
	Filename string
	MimeType string
}

// OCRResult represents the first-page result of a recognition call
type OCRResult struct {
	Text         string
	ExitCode     int
	ErrorDetails string
	Engine       string
	Duration     time.Duration
}

// ProviderError is a failure reported by the OCR engine itself rather than by
// the transport. Message is the engine's own wording and is surfaced as is.
type ProviderError struct {
	Engine  string
	Message string
}

func (e *ProviderError) Error() string {
	return e.Message
}
