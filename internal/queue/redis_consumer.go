/**
 * Direct Redis Queue Consumer for the Passport OCR Worker
 *
 * Speaks the simple Redis LIST protocol used by the upload service:
 * job IDs are pushed onto {queue}, job bodies live in the {queue}:data hash
 * until a worker takes them.
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	perrors "github.com/adverant/nexus/passport-ocr-worker/internal/errors"
	"github.com/adverant/nexus/passport-ocr-worker/internal/logging"
	"github.com/adverant/nexus/passport-ocr-worker/internal/processor"
	"github.com/adverant/nexus/passport-ocr-worker/internal/storage"
)

var errNoJobs = errors.New("no jobs available")

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// JobPayload contains the actual job data
type JobPayload struct {
	JobID         string                 `json:"jobId"`
	ApplicationID string                 `json:"applicationId,omitempty"`
	Sequence      int64                  `json:"sequence,omitempty"`
	Filename      string                 `json:"filename"`
	MimeType      string                 `json:"mimeType,omitempty"`
	FileSize      int64                  `json:"fileSize,omitempty"`
	FileURL       string                 `json:"fileUrl,omitempty"`
	FileBuffer    []byte                 `json:"-"` // see UnmarshalJSON
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// MarshalJSON writes fileBuffer as a base64 string
func (p JobPayload) MarshalJSON() ([]byte, error) {
	type Alias JobPayload
	aux := struct {
		FileBuffer string `json:"fileBuffer,omitempty"`
		Alias
	}{
		Alias: Alias(p),
	}
	if len(p.FileBuffer) > 0 {
		aux.FileBuffer = base64.StdEncoding.EncodeToString(p.FileBuffer)
	}
	return json.Marshal(aux)
}

// UnmarshalJSON accepts fileBuffer either as a base64 string or as a Node.js
// Buffer object ({"type":"Buffer","data":[...]}).
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	type Alias JobPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if aux.FileBuffer == nil {
		return nil
	}

	switch v := aux.FileBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 fileBuffer: %w", err)
		}
		p.FileBuffer = decoded

	case map[string]interface{}:
		if bufferType, ok := v["type"].(string); !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.FileBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.FileBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// ProcessRequest converts the payload to the processor's request
func (p *JobPayload) ProcessRequest() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:         p.JobID,
		ApplicationID: p.ApplicationID,
		Sequence:      p.Sequence,
		Filename:      p.Filename,
		MimeType:      p.MimeType,
		FileSize:      p.FileSize,
		FileURL:       p.FileURL,
		FileBuffer:    p.FileBuffer,
		Metadata:      p.Metadata,
	}
}

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client *redis.Client
	runner *Runner
	config *RedisConsumerConfig
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	Client      *redis.Client
	QueueName   string
	Concurrency int
	Runner      *Runner
	PollTimeout time.Duration
	Logger      *logging.Logger
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("Client is required")
	}

	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "passport-ocr"
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("RedisConsumer")
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client: cfg.Client,
		runner: cfg.Runner,
		config: cfg,
		logger: logger,
		ctx:    consumerCtx,
		cancel: cancel,
	}, nil
}

func (c *RedisConsumer) key(suffix string) string {
	return fmt.Sprintf("%s:%s", c.config.QueueName, suffix)
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	c.logger.Info("Starting Redis queue consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	return nil
}

// Stop stops polling and waits for in-flight jobs to finish. The Redis client
// is owned by the caller and stays open.
func (c *RedisConsumer) Stop() error {
	c.logger.Info("Stopping queue consumer")
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	c.logger.Debug("Worker started", "worker", id)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("Worker stopping", "worker", id)
			return
		default:
			if err := c.processNextJob(c.ctx); err != nil {
				if errors.Is(err, errNoJobs) {
					continue
				}
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Warn("Worker error", "worker", id, "error", err)
				select {
				case <-time.After(time.Second):
				case <-c.ctx.Done():
					return
				}
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue. A job is
// taken exactly once; failures are recorded, never re-queued.
func (c *RedisConsumer) processNextJob(ctx context.Context) error {
	result, err := c.client.BRPop(ctx, c.config.PollTimeout, c.config.QueueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	queueID := result[1]

	jobData, err := c.client.HGet(ctx, c.key("data"), queueID).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data for %s: %w", queueID, err)
	}

	// The body holds the passport image; it lives only as long as the job is queued.
	if err := c.client.HDel(ctx, c.key("data"), queueID).Err(); err != nil {
		c.logger.Warn("Failed to drop job body", "job_id", queueID, "error", err)
	}

	// Once taken, a job runs to completion even if the consumer is stopping.
	ctx = context.WithoutCancel(ctx)

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		c.markStatus(ctx, queueID, storage.StatusFailed, map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("failed to unmarshal job %s: %w", queueID, err)
	}
	if job.Payload.JobID == "" {
		job.Payload.JobID = queueID
	}

	jobID := job.Payload.JobID
	c.logger.Info("Processing job", "job_id", jobID, "filename", job.Payload.Filename)
	c.markStatus(ctx, jobID, storage.StatusProcessing, nil)

	processResult, err := c.runner.Run(ctx, job.Payload.ProcessRequest())
	switch {
	case err != nil:
		c.markStatus(ctx, jobID, storage.StatusFailed, map[string]interface{}{
			"code":  perrors.CodeOf(err),
			"error": err.Error(),
		})
	case processResult.Failure != nil:
		c.markStatus(ctx, jobID, storage.StatusFailed, processResult.Failure.ToMap())
	default:
		c.markStatus(ctx, jobID, storage.StatusCompleted, map[string]interface{}{
			"stage":            processResult.Outcome.Stage,
			"fieldsExtracted":  processResult.FieldsExtracted(),
			"processingTimeMs": processResult.ProcessingTimeMs,
		})
	}

	c.logger.Info("Job finished", "job_id", jobID, "error_code", processResult.ErrorCode())
	return nil
}

// markStatus moves a job between the status sets, records a summary, and
// publishes an event for subscribers.
func (c *RedisConsumer) markStatus(ctx context.Context, jobID string, status string, summary map[string]interface{}) {
	pipe := c.client.TxPipeline()

	switch status {
	case storage.StatusProcessing:
		pipe.SAdd(ctx, c.key("processing"), jobID)
	case storage.StatusCompleted:
		pipe.SRem(ctx, c.key("processing"), jobID)
		pipe.SAdd(ctx, c.key("completed"), jobID)
		if summary != nil {
			data, _ := json.Marshal(summary)
			pipe.HSet(ctx, c.key("results"), jobID, data)
		}
	case storage.StatusFailed:
		pipe.SRem(ctx, c.key("processing"), jobID)
		pipe.SAdd(ctx, c.key("failed"), jobID)
		if summary != nil {
			data, _ := json.Marshal(summary)
			pipe.HSet(ctx, c.key("errors"), jobID, data)
		}
	}

	event, _ := json.Marshal(map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	pipe.Publish(ctx, c.key("events"), event)

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Failed to update queue status", "job_id", jobID, "status", status, "error", err)
	}
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	pipe := c.client.Pipeline()
	waiting := pipe.LLen(ctx, c.config.QueueName)
	processing := pipe.SCard(ctx, c.key("processing"))
	completed := pipe.SCard(ctx, c.key("completed"))
	failed := pipe.SCard(ctx, c.key("failed"))

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}

// RedisProducer enqueues jobs using the same LIST protocol
type RedisProducer struct {
	client    *redis.Client
	queueName string
}

// NewRedisProducer creates a producer for the given queue
func NewRedisProducer(client *redis.Client, queueName string) *RedisProducer {
	if queueName == "" {
		queueName = "passport-ocr"
	}
	return &RedisProducer{client: client, queueName: queueName}
}

// Enqueue stores the job body and pushes its ID onto the queue
func (p *RedisProducer) Enqueue(ctx context.Context, payload *JobPayload) error {
	data, err := json.Marshal(&RedisJobData{
		ID:         payload.JobID,
		Type:       TypePassportProcess,
		Payload:    *payload,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: 0,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, fmt.Sprintf("%s:data", p.queueName), payload.JobID, data)
	pipe.LPush(ctx, p.queueName, payload.JobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}
	return nil
}
