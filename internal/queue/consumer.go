/**
 * Asynq Queue Consumer for the Passport OCR Worker
 *
 * Alternative to the LIST consumer for deployments that schedule work
 * through asynq. Tasks are enqueued with no retries: a failed OCR call is
 * reported, never repeated.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/passport-ocr-worker/internal/logging"
)

// TypePassportProcess is the task type for one passport OCR job
const TypePassportProcess = "passport:process"

// Enqueuer submits jobs to a queue backend
type Enqueuer interface {
	Enqueue(ctx context.Context, payload *JobPayload) error
}

// Consumer handles asynq task consumption
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner *Runner
	config *ConsumerConfig
	logger *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	Runner      *Runner
	Logger      *logging.Logger
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("Consumer")
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task processing error", "type", task.Type(), "error", err)
			}),
			Logger: logger.Zap().Sugar(),
		},
	)

	consumer := &Consumer{
		server: server,
		mux:    asynq.NewServeMux(),
		runner: cfg.Runner,
		config: cfg,
		logger: logger,
	}

	consumer.mux.HandleFunc(TypePassportProcess, consumer.handleProcessPassport)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start() error {
	c.logger.Info("Starting asynq consumer",
		"concurrency", c.config.Concurrency,
		"queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop() error {
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

// handleProcessPassport runs one task. Domain failures are results, not task
// errors; only undecodable payloads and storage failures fail the task.
func (c *Consumer) handleProcessPassport(ctx context.Context, task *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %v: %w", err, asynq.SkipRetry)
	}

	c.logger.Info("Processing passport task",
		"job_id", payload.JobID,
		"filename", payload.Filename,
		"size", payload.FileSize)

	result, err := c.runner.Run(ctx, payload.ProcessRequest())
	if err != nil {
		return fmt.Errorf("job %s: %v: %w", payload.JobID, err, asynq.SkipRetry)
	}

	c.logger.Info("Passport task finished",
		"job_id", payload.JobID,
		"stage", result.Outcome.Stage,
		"duration_ms", result.ProcessingTimeMs)
	return nil
}

// Producer enqueues passport tasks through asynq
type Producer struct {
	client    *asynq.Client
	queueName string
	timeout   time.Duration
}

// NewProducer creates an asynq producer
func NewProducer(redisURL, queueName string, timeout time.Duration) (*Producer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Producer{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
		timeout:   timeout,
	}, nil
}

// NewProcessTask builds the task for one job
func NewProcessTask(payload *JobPayload, queueName string, timeout time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(0),
		asynq.TaskID(payload.JobID),
	}
	if queueName != "" {
		opts = append(opts, asynq.Queue(queueName))
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}

	return asynq.NewTask(TypePassportProcess, data, opts...), nil
}

// Enqueue submits a job
func (p *Producer) Enqueue(ctx context.Context, payload *JobPayload) error {
	task, err := NewProcessTask(payload, p.queueName, p.timeout)
	if err != nil {
		return err
	}
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}
	return nil
}

// Close closes the producer's Redis connection
func (p *Producer) Close() error {
	return p.client.Close()
}
