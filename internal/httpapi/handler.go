/**
 * HTTP API for the Passport OCR Worker
 *
 * POST /api/v1/passport/ocr                       process one upload and return the outcome
 * POST /api/v1/passport/jobs                      queue an upload for background processing
 * GET  /api/v1/passport/jobs/{id}                 job status, plus the cached result if any
 * GET  /api/v1/passport/applications/{id}/latest  newest result for an application
 * GET  /health
 */

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	perrors "github.com/adverant/nexus/passport-ocr-worker/internal/errors"
	"github.com/adverant/nexus/passport-ocr-worker/internal/processor"
	"github.com/adverant/nexus/passport-ocr-worker/internal/queue"
	"github.com/adverant/nexus/passport-ocr-worker/internal/storage"
)

// multipart bodies carry some form overhead on top of the file itself
const multipartOverhead = 1 << 20

// errMultipartRequired rejects any body that is not a file upload. Remote
// file URLs are accepted only on queue payloads, never from HTTP callers.
var errMultipartRequired = errors.New("multipart file upload is required")

// ResultReader reads cached results
type ResultReader interface {
	GetResult(ctx context.Context, jobID string) (*processor.ProcessResult, error)
	GetLatest(ctx context.Context, applicationID string) (*processor.ProcessResult, error)
	Ping(ctx context.Context) error
}

// QueueStats reports queue depth and status counts
type QueueStats interface {
	GetStats(ctx context.Context) (map[string]int64, error)
}

// Handler serves the passport OCR API
type Handler struct {
	runner      *queue.Runner
	enqueuer    queue.Enqueuer
	jobs        storage.JobStore
	results     ResultReader
	queueStats  QueueStats
	maxFileSize int64
	logger      *zap.Logger
}

// HandlerConfig holds handler dependencies. Enqueuer, Results and QueueStats
// are optional.
type HandlerConfig struct {
	Runner      *queue.Runner
	Enqueuer    queue.Enqueuer
	Jobs        storage.JobStore
	Results     ResultReader
	QueueStats  QueueStats
	MaxFileSize int64
	Logger      *zap.Logger
}

// NewHandler creates the API handler
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("Jobs is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		runner:      cfg.Runner,
		enqueuer:    cfg.Enqueuer,
		jobs:        cfg.Jobs,
		results:     cfg.Results,
		queueStats:  cfg.QueueStats,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}, nil
}

// Routes builds the router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(LoggingMiddleware(h.logger))
		r.Use(RecoveryMiddleware(h.logger))

		r.Route("/api/v1/passport", func(r chi.Router) {
			r.Post("/ocr", h.ProcessPassport)
			r.Post("/jobs", h.SubmitJob)
			r.Get("/jobs/{id}", h.GetJob)
			r.Get("/applications/{id}/latest", h.GetLatest)
		})
	})

	return r
}

// upload is a request decoded from a multipart form
type upload struct {
	ApplicationID string
	Sequence      int64
	Filename      string
	MimeType      string
	FileBuffer    []byte
}

// ProcessPassport handles POST /api/v1/passport/ocr. Every pipeline outcome,
// including rejections, is a 200 response.
func (h *Handler) ProcessPassport(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	up, err := h.decodeUpload(w, r)
	if err != nil {
		h.respondError(w, uploadStatus(err), err.Error(), requestID)
		return
	}

	jobID := uuid.New().String()
	result, err := h.runner.Run(r.Context(), up.request(jobID))
	if err != nil {
		// the outcome is still valid; only the cached copy is missing
		h.logger.Warn("result not stored",
			zap.String("request_id", requestID),
			zap.String("job_id", jobID),
			zap.String("error_code", string(perrors.CodeOf(err))),
			zap.Error(err),
		)
	}

	w.Header().Set("X-Job-ID", jobID)
	h.respondJSON(w, http.StatusOK, result.Outcome, requestID)
}

// SubmitJob handles POST /api/v1/passport/jobs
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)

	if h.enqueuer == nil {
		h.respondError(w, http.StatusServiceUnavailable, "job queue is disabled", requestID)
		return
	}

	up, err := h.decodeUpload(w, r)
	if err != nil {
		h.respondError(w, uploadStatus(err), err.Error(), requestID)
		return
	}

	jobID := uuid.New().String()
	if err := h.jobs.UpdateJobStatus(ctx, &storage.JobUpdate{
		JobID:         jobID,
		ApplicationID: up.ApplicationID,
		Sequence:      up.Sequence,
		Status:        storage.StatusQueued,
		Filename:      up.Filename,
		MimeType:      up.MimeType,
		FileSize:      int64(len(up.FileBuffer)),
	}); err != nil {
		h.logger.Error("failed to record job",
			zap.String("request_id", requestID),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to record job", requestID)
		return
	}

	req := up.request(jobID)
	if err := h.enqueuer.Enqueue(ctx, &queue.JobPayload{
		JobID:         jobID,
		ApplicationID: req.ApplicationID,
		Sequence:      req.Sequence,
		Filename:      req.Filename,
		MimeType:      req.MimeType,
		FileSize:      req.FileSize,
		FileBuffer:    req.FileBuffer,
	}); err != nil {
		h.logger.Error("failed to enqueue job",
			zap.String("request_id", requestID),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		_ = h.jobs.UpdateJobStatus(ctx, &storage.JobUpdate{
			JobID:        jobID,
			Status:       storage.StatusFailed,
			ErrorMessage: "enqueue failed",
		})
		h.respondError(w, http.StatusServiceUnavailable, "failed to enqueue job", requestID)
		return
	}

	h.respondJSON(w, http.StatusAccepted, map[string]string{
		"jobId":  jobID,
		"status": storage.StatusQueued,
	}, requestID)
}

// GetJob handles GET /api/v1/passport/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)
	id := chi.URLParam(r, "id")

	job, err := h.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found", requestID)
			return
		}
		h.logger.Error("failed to get job",
			zap.String("request_id", requestID),
			zap.String("job_id", id),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to get job", requestID)
		return
	}

	resp := map[string]interface{}{"job": job}
	if h.results != nil {
		result, err := h.results.GetResult(ctx, id)
		switch {
		case err == nil:
			resp["result"] = result.Outcome
		case !errors.Is(err, queue.ErrResultNotFound):
			h.logger.Warn("failed to read cached result",
				zap.String("request_id", requestID),
				zap.String("job_id", id),
				zap.Error(err),
			)
		}
	}

	h.respondJSON(w, http.StatusOK, resp, requestID)
}

// GetLatest handles GET /api/v1/passport/applications/{id}/latest
func (h *Handler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := GetRequestID(ctx)
	id := chi.URLParam(r, "id")

	if h.results == nil {
		h.respondError(w, http.StatusServiceUnavailable, "result store is disabled", requestID)
		return
	}

	result, err := h.results.GetLatest(ctx, id)
	if err != nil {
		if errors.Is(err, queue.ErrResultNotFound) {
			h.respondError(w, http.StatusNotFound, "no result for application", requestID)
			return
		}
		h.logger.Error("failed to get latest result",
			zap.String("request_id", requestID),
			zap.String("application_id", id),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to get latest result", requestID)
		return
	}

	h.respondJSON(w, http.StatusOK, result, requestID)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	}
	status := http.StatusOK

	if err := h.jobs.Ping(ctx); err != nil {
		health["status"] = "unhealthy"
		health["jobStore"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.results != nil {
		if err := h.results.Ping(ctx); err != nil {
			health["status"] = "unhealthy"
			health["resultStore"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.queueStats != nil {
		if stats, err := h.queueStats.GetStats(ctx); err == nil {
			health["queue"] = stats
		}
	}

	h.respondJSON(w, status, health, GetRequestID(r.Context()))
}

func (u *upload) request(jobID string) *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:         jobID,
		ApplicationID: u.ApplicationID,
		Sequence:      u.Sequence,
		Filename:      u.Filename,
		MimeType:      u.MimeType,
		FileSize:      int64(len(u.FileBuffer)),
		FileBuffer:    u.FileBuffer,
	}
}

func uploadStatus(err error) int {
	if errors.Is(err, errMultipartRequired) {
		return http.StatusUnsupportedMediaType
	}
	return http.StatusBadRequest
}

// decodeUpload reads a multipart form with a "file" part.
func (h *Handler) decodeUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, errMultipartRequired
	}

	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	up := &upload{
		ApplicationID: r.FormValue("applicationId"),
		Filename:      header.Filename,
		MimeType:      header.Header.Get("Content-Type"),
		FileBuffer:    data,
	}
	if seq := r.FormValue("sequence"); seq != "" {
		n, err := strconv.ParseInt(seq, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("sequence must be a non-negative integer")
		}
		up.Sequence = n
	}

	return up, nil
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message, requestID string) {
	h.respondJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestID,
	}, requestID)
}
