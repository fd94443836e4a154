/**
 * OCR.space Client for the Passport OCR Worker
 *
 * Sends one document per request to the OCR.space parse endpoint as a
 * multipart form with fixed recognition options:
 * - language=eng
 * - detectOrientation=true, scale=true
 * - OCREngine=2 (the provider's higher accuracy engine)
 *
 * The client never retries. A failed call is reported to the caller, who
 * treats it as terminal for that document.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adverant/nexus/passport-ocr-worker/internal/logging"
)

// Fixed recognition options sent with every request
const (
	ocrSpaceLanguage = "eng"
	ocrSpaceEngine   = "2"
)

// OCRSpaceClient handles communication with the OCR.space parse API
type OCRSpaceClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// OCRSpaceRequest is one document to recognize
type OCRSpaceRequest struct {
	File     []byte
	Filename string
	MimeType string
}

// OCRSpaceResponse is the provider's JSON response
type OCRSpaceResponse struct {
	ParsedResults                []OCRSpaceParsedResult `json:"ParsedResults"`
	OCRExitCode                  flexibleInt            `json:"OCRExitCode"`
	IsErroredOnProcessing        bool                   `json:"IsErroredOnProcessing"`
	ErrorMessage                 messageList            `json:"ErrorMessage"`
	ErrorDetails                 string                 `json:"ErrorDetails"`
	ProcessingTimeInMilliseconds string                 `json:"ProcessingTimeInMilliseconds"`
}

// OCRSpaceParsedResult is the recognition result for one page
type OCRSpaceParsedResult struct {
	ParsedText        string      `json:"ParsedText"`
	FileParseExitCode flexibleInt `json:"FileParseExitCode"`
	ErrorMessage      string      `json:"ErrorMessage"`
	ErrorDetails      string      `json:"ErrorDetails"`
}

// ErrorText joins the provider's error messages, or returns a generic message
// when the provider sent none.
func (r *OCRSpaceResponse) ErrorText() string {
	if msg := strings.Join(r.ErrorMessage, "; "); msg != "" {
		return msg
	}
	if r.ErrorDetails != "" {
		return r.ErrorDetails
	}
	return "OCR processing failed"
}

// FirstPage returns the first page result, or a zero value when the provider
// returned no pages.
func (r *OCRSpaceResponse) FirstPage() OCRSpaceParsedResult {
	if len(r.ParsedResults) == 0 {
		return OCRSpaceParsedResult{}
	}
	return r.ParsedResults[0]
}

// NewOCRSpaceClient creates a new OCR.space client
func NewOCRSpaceClient(endpoint, apiKey string, timeout time.Duration) *OCRSpaceClient {
	return &OCRSpaceClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("OCRSpaceClient"),
	}
}

// HealthCheck verifies the OCR.space endpoint is reachable. The parse endpoint
// has no health route, so any HTTP response short of a server error counts.
func (c *OCRSpaceClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr.space health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ocr.space health check returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Parse uploads the document and returns the decoded provider response.
// Transport failures, non-2xx statuses and undecodable bodies are errors; a
// provider-side processing error is returned as a response with
// IsErroredOnProcessing set.
func (c *OCRSpaceClient) Parse(ctx context.Context, req *OCRSpaceRequest) (*OCRSpaceResponse, error) {
	if len(req.File) == 0 {
		return nil, fmt.Errorf("file is required: received empty buffer")
	}

	filename := req.Filename
	if filename == "" {
		filename = "passport" + extensionFor(req.MimeType)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file part: %w", err)
	}
	if _, err := part.Write(req.File); err != nil {
		return nil, fmt.Errorf("failed to write file data to form: %w", err)
	}

	fields := [][2]string{
		{"apikey", c.apiKey},
		{"language", ocrSpaceLanguage},
		{"isOverlayRequired", "false"},
		{"detectOrientation", "true"},
		{"scale", "true"},
		{"OCREngine", ocrSpaceEngine},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write %s field: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to ocr.space failed after %v: %w", time.Since(startTime), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ocr.space returned HTTP %d: %s", resp.StatusCode, truncate(string(respBody), 256))
	}

	var result OCRSpaceResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ocr.space response: %w", err)
	}

	c.logger.Debug("OCR.space request completed",
		"size_bytes", len(req.File),
		"mime_type", req.MimeType,
		"pages", len(result.ParsedResults),
		"errored", result.IsErroredOnProcessing,
		"duration", time.Since(startTime))

	return &result, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	}
	return ".jpg"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// messageList decodes a field the provider sends as null, a string or an
// array of strings.
type messageList []string

func (m *messageList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*m = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == "" {
		*m = nil
	} else {
		*m = messageList{single}
	}
	return nil
}

// flexibleInt decodes an exit code sent either as a number or a numeric string.
type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("exit code %s is not an integer: %w", string(data), err)
	}
	*f = flexibleInt(n)
	return nil
}
