/**
 * Tesseract OCR - Offline text acquisition
 *
 * Local alternative to the OCR.space engine for air-gapped deployments.
 * Images only; Tesseract cannot rasterize PDFs.
 */

package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/passport-ocr-worker/internal/passport"
)

// EngineTesseract is the name reported by the Tesseract engine
const EngineTesseract = "tesseract"

// TesseractEngine handles OCR using a local Tesseract installation
type TesseractEngine struct {
	language string
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Language string
}

// NewTesseractEngine creates a new Tesseract engine
func NewTesseractEngine(cfg *TesseractConfig) *TesseractEngine {
	lang := cfg.Language
	if lang == "" {
		lang = "eng"
	}
	return &TesseractEngine{language: lang}
}

func (t *TesseractEngine) Name() string { return EngineTesseract }

// Recognize performs OCR on an image. Tesseract has no exit code of its own, so
// a successful read reports the success code.
func (t *TesseractEngine) Recognize(ctx context.Context, doc *Document) (*OCRResult, error) {
	if !strings.HasPrefix(doc.MimeType, "image/") {
		return nil, &ProviderError{
			Engine:  EngineTesseract,
			Message: fmt.Sprintf("tesseract cannot read %s", doc.MimeType),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(t.language, "+")...); err != nil {
		return nil, fmt.Errorf("failed to set tesseract language %q: %w", t.language, err)
	}

	if err := client.SetImageFromBytes(doc.Data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, &ProviderError{Engine: EngineTesseract, Message: fmt.Sprintf("tesseract OCR failed: %v", err)}
	}

	return &OCRResult{
		Text:     text,
		ExitCode: passport.OCRSuccessExitCode,
		Engine:   EngineTesseract,
		Duration: time.Since(startTime),
	}, nil
}
