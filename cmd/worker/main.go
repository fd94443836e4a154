/**
 * Passport OCR Worker - Main Entry Point
 *
 * Reads Indian passport data pages through OCR and returns structured,
 * confidence-scored fields.
 *
 * Architecture:
 * - OCR.space (default) or local Tesseract for text acquisition
 * - Redis LIST or asynq consumer for background jobs
 * - chi HTTP API for synchronous requests and job submission
 * - PostgreSQL job tracking (status only, never field values)
 * - Redis result cache with per-application stale-result guard
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adverant/nexus/passport-ocr-worker/internal/clients"
	"github.com/adverant/nexus/passport-ocr-worker/internal/config"
	"github.com/adverant/nexus/passport-ocr-worker/internal/httpapi"
	"github.com/adverant/nexus/passport-ocr-worker/internal/logging"
	"github.com/adverant/nexus/passport-ocr-worker/internal/processor"
	"github.com/adverant/nexus/passport-ocr-worker/internal/queue"
	"github.com/adverant/nexus/passport-ocr-worker/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// stopper is a running queue consumer
type stopper interface {
	Stop() error
}

func main() {
	envErr := godotenv.Load(".env.nexus")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(cfg.LogLevel, cfg.Development()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Sync() }()
	logger := logging.Get()

	if envErr != nil {
		logger.Info(".env.nexus not found, using system environment variables")
	}

	logger.Info("Passport OCR Worker starting",
		zap.String("ocr_engine", cfg.OCREngine),
		zap.String("queue_backend", cfg.QueueBackend),
		zap.String("queue", cfg.QueueName),
		zap.Int("workers", cfg.WorkerConcurrency),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", zap.Error(err))
		_ = logging.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// Job tracking
	var jobs storage.JobStore
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("failed to prepare job tracking schema: %w", err)
		}
		jobs = pg
		logger.Info("Job tracking: PostgreSQL")
	} else {
		jobs = storage.NewMemoryJobStore()
		logger.Info("Job tracking: in-memory (DATABASE_URL not set)")
	}
	defer jobs.Close()

	// OCR engine
	var engine processor.OCREngine
	switch cfg.OCREngine {
	case config.EngineTesseract:
		engine = processor.NewTesseractEngine(&processor.TesseractConfig{Language: cfg.TesseractLanguage})
	default:
		client := clients.NewOCRSpaceClient(cfg.OCRSpaceURL, cfg.OCRSpaceAPIKey, cfg.OCRTimeout)
		healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := client.HealthCheck(healthCtx); err != nil {
			logger.Warn("OCR.space health check failed; continuing", zap.Error(err))
		}
		cancel()
		engine = processor.NewOCRSpaceEngine(client)
	}

	proc, err := processor.NewPassportProcessor(&processor.ProcessorConfig{
		Engine:      engine,
		Jobs:        jobs,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logging.NewLogger("PassportProcessor"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize passport processor: %w", err)
	}

	// Redis result cache
	var (
		redisClient *redis.Client
		results     *queue.ResultStore
		sink        queue.ResultSink
		reader      httpapi.ResultReader
	)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			if cfg.QueueEnabled() {
				return fmt.Errorf("failed to connect to Redis: %w", err)
			}
			logger.Warn("Redis unavailable; results will not be cached", zap.Error(err))
		} else {
			results = queue.NewResultStore(redisClient, cfg.QueueName, cfg.ResultTTL)
			sink, reader = results, results
		}
	}

	runner, err := queue.NewRunner(&queue.RunnerConfig{
		Processor:         proc,
		Results:           sink,
		ProcessingTimeout: cfg.ProcessingTimeout,
		Logger:            logging.NewLogger("Runner"),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize runner: %w", err)
	}

	// Queue consumer and producer
	var (
		consumer   stopper
		enqueuer   queue.Enqueuer
		queueStats httpapi.QueueStats
	)
	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		c, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			Client:      redisClient,
			QueueName:   cfg.QueueName,
			Concurrency: cfg.WorkerConcurrency,
			Runner:      runner,
			Logger:      logging.NewLogger("RedisConsumer"),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize queue consumer: %w", err)
		}
		if err := c.Start(); err != nil {
			return fmt.Errorf("failed to start queue consumer: %w", err)
		}
		consumer, queueStats = c, c
		enqueuer = queue.NewRedisProducer(redisClient, cfg.QueueName)

	case config.QueueBackendAsynq:
		c, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:    cfg.RedisURL,
			QueueName:   cfg.QueueName,
			Concurrency: cfg.WorkerConcurrency,
			Runner:      runner,
			Logger:      logging.NewLogger("Consumer"),
		})
		if err != nil {
			return fmt.Errorf("failed to initialize asynq consumer: %w", err)
		}
		if err := c.Start(); err != nil {
			return err
		}
		consumer = c

		producer, err := queue.NewProducer(cfg.RedisURL, cfg.QueueName, cfg.ProcessingTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize asynq producer: %w", err)
		}
		defer producer.Close()
		enqueuer = producer

	default:
		logger.Info("Queue consumer disabled (QUEUE_BACKEND=none)")
	}

	// HTTP API
	handler, err := httpapi.NewHandler(&httpapi.HandlerConfig{
		Runner:      runner,
		Enqueuer:    enqueuer,
		Jobs:        jobs,
		Results:     reader,
		QueueStats:  queueStats,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP handler: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.ProcessingTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("Passport OCR Worker is ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
	case err := <-serverErr:
		runErr = fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", zap.Error(err))
	}

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Error("Error stopping queue consumer", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return runErr
}
