package processor

import (
	"context"
	"time"

	"github.com/adverant/nexus/passport-ocr-worker/internal/clients"
)

// EngineOCRSpace is the name reported by the OCR.space engine
const EngineOCRSpace = "ocrspace"

// ocrSpaceParser is the client surface the engine needs
type ocrSpaceParser interface {
	Parse(ctx context.Context, req *clients.OCRSpaceRequest) (*clients.OCRSpaceResponse, error)
}

// OCRSpaceEngine recognizes documents through the OCR.space API
type OCRSpaceEngine struct {
	client ocrSpaceParser
}

// NewOCRSpaceEngine creates an engine backed by the given client
func NewOCRSpaceEngine(client *clients.OCRSpaceClient) *OCRSpaceEngine {
	return &OCRSpaceEngine{client: client}
}

func (e *OCRSpaceEngine) Name() string { return EngineOCRSpace }

// Recognize sends the document once. A provider-side processing error comes
// back as a *ProviderError carrying the provider's message.
func (e *OCRSpaceEngine) Recognize(ctx context.Context, doc *Document) (*OCRResult, error) {
	startTime := time.Now()

	resp, err := e.client.Parse(ctx, &clients.OCRSpaceRequest{
		File:     doc.Data,
		Filename: doc.Filename,
		MimeType: doc.MimeType,
	})
	if err != nil {
		return nil, err
	}

	if resp.IsErroredOnProcessing {
		return nil, &ProviderError{Engine: EngineOCRSpace, Message: resp.ErrorText()}
	}

	page := resp.FirstPage()
	return &OCRResult{
		Text:         page.ParsedText,
		ExitCode:     int(page.FileParseExitCode),
		ErrorDetails: page.ErrorDetails,
		Engine:       EngineOCRSpace,
		Duration:     time.Since(startTime),
	}, nil
}
