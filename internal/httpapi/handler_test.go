package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/adverant/nexus/passport-ocr-worker/internal/logging"
	"github.com/adverant/nexus/passport-ocr-worker/internal/passport"
	"github.com/adverant/nexus/passport-ocr-worker/internal/processor"
	"github.com/adverant/nexus/passport-ocr-worker/internal/queue"
	"github.com/adverant/nexus/passport-ocr-worker/internal/storage"
)

const passportText = `REPUBLIC OF INDIA
PASSPORT
Passport No. M1234567
Surname: SHARMA
Given Name(s): RAHUL KUMAR
Nationality: INDIAN
Sex: M
Date of Birth: 15/08/1985
Place of Birth: NEW DELHI
Date of Issue: 10/01/2015
Date of Expiry: 09/01/2025
P<INDSHARMA<<RAHUL<KUMAR<<<<<<<<<<<<<<<<<<<<<
M1234567<0IND8508159M2501093<<<<<<<<<<<<<<02`

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

type stubEngine struct {
	text string
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Recognize(ctx context.Context, doc *processor.Document) (*processor.OCRResult, error) {
	return &processor.OCRResult{Text: s.text, ExitCode: passport.OCRSuccessExitCode, Engine: "stub"}, nil
}

type apiFixture struct {
	server *httptest.Server
	redis  *redis.Client
	jobs   *storage.MemoryJobStore
}

func newFixture(t *testing.T, text string, withQueue bool) *apiFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	jobs := storage.NewMemoryJobStore()
	proc, err := processor.NewPassportProcessor(&processor.ProcessorConfig{
		Engine:      &stubEngine{text: text},
		Jobs:        jobs,
		MaxFileSize: 1 << 20,
		Logger:      logging.FromZap(logger, "PassportProcessor"),
	})
	require.NoError(t, err)

	results := queue.NewResultStore(client, "passport-ocr", time.Hour)
	runner, err := queue.NewRunner(&queue.RunnerConfig{
		Processor:         proc,
		Results:           results,
		ProcessingTimeout: 5 * time.Second,
		Logger:            logging.FromZap(logger, "Runner"),
	})
	require.NoError(t, err)

	cfg := &HandlerConfig{
		Runner:      runner,
		Jobs:        jobs,
		Results:     results,
		MaxFileSize: 1 << 20,
		Logger:      logger,
	}
	if withQueue {
		cfg.Enqueuer = queue.NewRedisProducer(client, "passport-ocr")
	}

	h, err := NewHandler(cfg)
	require.NoError(t, err)

	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)

	return &apiFixture{server: server, redis: client, jobs: jobs}
}

func multipartBody(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "passport.jpg")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestProcessPassportEndpoint(t *testing.T) {
	f := newFixture(t, passportText, false)

	body, contentType := multipartBody(t, map[string]string{"applicationId": "app-1", "sequence": "1"}, jpegBytes)
	resp, err := http.Post(f.server.URL+"/api/v1/passport/ocr", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	jobID := resp.Header.Get("X-Job-ID")
	require.NotEmpty(t, jobID)

	var outcome map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.Equal(t, true, outcome["success"])
	assert.Equal(t, passport.MessageSuccess, outcome["message"])
	data := outcome["data"].(map[string]interface{})
	assert.Equal(t, "M1234567", data["passportNumber"])

	job, err := f.jobs.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, job.Status)
	assert.Equal(t, "app-1", job.ApplicationID)

	latest, err := http.Get(f.server.URL + "/api/v1/passport/applications/app-1/latest")
	require.NoError(t, err)
	defer latest.Body.Close()
	assert.Equal(t, http.StatusOK, latest.StatusCode)
}

func TestProcessPassportEndpointRejection(t *testing.T) {
	f := newFixture(t, "Monthly electricity statement", false)

	body, contentType := multipartBody(t, nil, jpegBytes)
	resp, err := http.Post(f.server.URL+"/api/v1/passport/ocr", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode, "rejections are outcomes")

	var outcome passport.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.IsPassport)
	assert.False(t, *outcome.IsPassport)
	assert.Equal(t, passport.MessageNotPassport, outcome.Message)
}

func TestProcessPassportEndpointBadRequests(t *testing.T) {
	f := newFixture(t, passportText, false)

	testCases := []struct {
		name        string
		body        func() (*bytes.Buffer, string)
		wantMessage string
	}{
		{"missing file", func() (*bytes.Buffer, string) { return multipartBody(t, nil, nil) }, "file is required"},
		{"bad sequence", func() (*bytes.Buffer, string) {
			return multipartBody(t, map[string]string{"sequence": "-3"}, jpegBytes)
		}, "sequence must be a non-negative integer"},
		{"empty file", func() (*bytes.Buffer, string) {
			return multipartBody(t, nil, []byte{})
		}, "file is empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := tc.body()
			resp, err := http.Post(f.server.URL+"/api/v1/passport/ocr", contentType, body)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var payload map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			assert.Equal(t, tc.wantMessage, payload["error"])
		})
	}
}

func TestSubmitJobEnqueues(t *testing.T) {
	f := newFixture(t, passportText, true)

	body, contentType := multipartBody(t, map[string]string{"applicationId": "app-7", "sequence": "4"}, jpegBytes)
	resp, err := http.Post(f.server.URL+"/api/v1/passport/jobs", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var accepted map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.Equal(t, storage.StatusQueued, accepted["status"])
	jobID := accepted["jobId"]

	ctx := context.Background()
	queued, err := f.redis.LRange(ctx, "passport-ocr", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{jobID}, queued)

	raw, err := f.redis.HGet(ctx, "passport-ocr:data", jobID).Result()
	require.NoError(t, err)
	var job queue.RedisJobData
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, "app-7", job.Payload.ApplicationID)
	assert.Equal(t, int64(4), job.Payload.Sequence)
	assert.Equal(t, jpegBytes, job.Payload.FileBuffer)

	status, err := http.Get(f.server.URL + "/api/v1/passport/jobs/" + jobID)
	require.NoError(t, err)
	defer status.Body.Close()
	require.Equal(t, http.StatusOK, status.StatusCode)

	var got struct {
		Job storage.Job `json:"job"`
	}
	require.NoError(t, json.NewDecoder(status.Body).Decode(&got))
	assert.Equal(t, storage.StatusQueued, got.Job.Status)
}

func TestSubmitJobWithoutQueue(t *testing.T) {
	f := newFixture(t, passportText, false)

	body, contentType := multipartBody(t, nil, jpegBytes)
	resp, err := http.Post(f.server.URL+"/api/v1/passport/jobs", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// TestUploadEndpointsNeverFetchCallerURLs checks that a JSON body naming a
// remote file is refused without the worker contacting that address.
func TestUploadEndpointsNeverFetchCallerURLs(t *testing.T) {
	var hits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(jpegBytes)
	}))
	t.Cleanup(target.Close)

	f := newFixture(t, passportText, true)

	for _, path := range []string{"/api/v1/passport/ocr", "/api/v1/passport/jobs"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Post(f.server.URL+path, "application/json",
				strings.NewReader(`{"fileUrl":"`+target.URL+`/latest/meta-data/"}`))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
			var payload map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			assert.Equal(t, "multipart file upload is required", payload["error"])
		})
	}

	assert.Zero(t, hits.Load())
	queued, err := f.redis.LLen(context.Background(), "passport-ocr").Result()
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestNotFoundResponses(t *testing.T) {
	f := newFixture(t, passportText, false)

	for _, path := range []string{
		"/api/v1/passport/jobs/missing",
		"/api/v1/passport/applications/missing/latest",
	} {
		resp, err := http.Get(f.server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, passportText, false)

	resp, err := http.Get(f.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestLoggingMiddlewareKeepsRequestID(t *testing.T) {
	var seen string
	handler := LoggingMiddleware(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
