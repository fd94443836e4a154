package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/passport-ocr-worker/internal/clients"
)

type stubParser struct {
	body string
	err  error
	got  *clients.OCRSpaceRequest
}

func (s *stubParser) Parse(ctx context.Context, req *clients.OCRSpaceRequest) (*clients.OCRSpaceResponse, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	var resp clients.OCRSpaceResponse
	if err := json.Unmarshal([]byte(s.body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func TestOCRSpaceEngineFirstPage(t *testing.T) {
	parser := &stubParser{body: `{
		"ParsedResults": [
			{"ParsedText": "PASSPORT\nP<IND", "FileParseExitCode": 1, "ErrorDetails": ""},
			{"ParsedText": "second page", "FileParseExitCode": 1}
		],
		"OCRExitCode": 1,
		"IsErroredOnProcessing": false
	}`}
	engine := &OCRSpaceEngine{client: parser}

	res, err := engine.Recognize(context.Background(), &Document{Data: pngHeader, Filename: "p.png", MimeType: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, "PASSPORT\nP<IND", res.Text)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, EngineOCRSpace, res.Engine)
	assert.Equal(t, "image/png", parser.got.MimeType)
	assert.Equal(t, pngHeader, parser.got.File)
}

func TestOCRSpaceEnginePartialParse(t *testing.T) {
	parser := &stubParser{body: `{
		"ParsedResults": [{"ParsedText": "", "FileParseExitCode": "-10", "ErrorDetails": "Low resolution"}],
		"OCRExitCode": "2",
		"IsErroredOnProcessing": false
	}`}
	engine := &OCRSpaceEngine{client: parser}

	res, err := engine.Recognize(context.Background(), &Document{Data: pngHeader})
	require.NoError(t, err)

	assert.Equal(t, -10, res.ExitCode)
	assert.Equal(t, "Low resolution", res.ErrorDetails)
}

func TestOCRSpaceEngineProviderError(t *testing.T) {
	parser := &stubParser{body: `{
		"OCRExitCode": 3,
		"IsErroredOnProcessing": true,
		"ErrorMessage": ["File failed validation", "Unsupported type"]
	}`}
	engine := &OCRSpaceEngine{client: parser}

	_, err := engine.Recognize(context.Background(), &Document{Data: pngHeader})

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "File failed validation; Unsupported type", providerErr.Message)
	assert.Equal(t, EngineOCRSpace, providerErr.Engine)
}

func TestOCRSpaceEngineTransportError(t *testing.T) {
	engine := &OCRSpaceEngine{client: &stubParser{err: context.DeadlineExceeded}}

	_, err := engine.Recognize(context.Background(), &Document{Data: pngHeader})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTesseractRejectsNonImages(t *testing.T) {
	engine := NewTesseractEngine(&TesseractConfig{})

	_, err := engine.Recognize(context.Background(), &Document{Data: []byte("%PDF-1.4"), MimeType: "application/pdf"})

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, EngineTesseract, providerErr.Engine)
	assert.Equal(t, "eng", engine.language)
}
