/**
 * Result Store for the Passport OCR Worker
 *
 * Short-lived Redis cache of finished results:
 * - {prefix}:result:{jobId}            one result per job, expires after the TTL
 * - {prefix}:latest:{applicationId}    the newest result per application
 *
 * The per-application entry is guarded by the job's sequence number so that a
 * slow response for an old upload never replaces the result of a newer one.
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/passport-ocr-worker/internal/logging"
	"github.com/adverant/nexus/passport-ocr-worker/internal/processor"
)

// ErrResultNotFound is returned when no result is cached under a key
var ErrResultNotFound = errors.New("result not found")

// saveLatestScript writes the application's latest result unless the stored
// sequence is newer. Equal sequences overwrite.
//
// KEYS[1] latest key; ARGV: sequence, jobId, result JSON, ttl in ms
var saveLatestScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'sequence')
if current and tonumber(current) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'sequence', ARGV[1], 'jobId', ARGV[2], 'result', ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

// ResultStore caches results in Redis
type ResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *logging.Logger
}

// NewResultStore creates a result store. A zero ttl keeps entries until evicted.
func NewResultStore(client *redis.Client, prefix string, ttl time.Duration) *ResultStore {
	if prefix == "" {
		prefix = "passport-ocr"
	}
	return &ResultStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logging.NewLogger("ResultStore"),
	}
}

func (s *ResultStore) resultKey(jobID string) string {
	return fmt.Sprintf("%s:result:%s", s.prefix, jobID)
}

func (s *ResultStore) latestKey(applicationID string) string {
	return fmt.Sprintf("%s:latest:%s", s.prefix, applicationID)
}

// SaveResult stores the per-job result and, when the job belongs to an
// application, offers it as the application's latest.
func (s *ResultStore) SaveResult(ctx context.Context, result *processor.ProcessResult) (bool, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return false, fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := s.client.Set(ctx, s.resultKey(result.JobID), data, s.ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to store result for job %s: %w", result.JobID, err)
	}

	if result.ApplicationID == "" {
		return false, nil
	}

	return s.saveLatest(ctx, result, data)
}

func (s *ResultStore) saveLatest(ctx context.Context, result *processor.ProcessResult, data []byte) (bool, error) {
	applied, err := saveLatestScript.Run(ctx, s.client,
		[]string{s.latestKey(result.ApplicationID)},
		result.Sequence, result.JobID, string(data), s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to store latest result for application %s: %w", result.ApplicationID, err)
	}

	if applied == 0 {
		s.logger.Info("Discarded stale result",
			"job_id", result.JobID,
			"application_id", result.ApplicationID,
			"sequence", result.Sequence)
		return false, nil
	}
	return true, nil
}

// GetResult returns the cached result of a job
func (s *ResultStore) GetResult(ctx context.Context, jobID string) (*processor.ProcessResult, error) {
	data, err := s.client.Get(ctx, s.resultKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrResultNotFound)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return decodeResult(data)
}

// GetLatest returns the newest result stored for an application
func (s *ResultStore) GetLatest(ctx context.Context, applicationID string) (*processor.ProcessResult, error) {
	fields, err := s.client.HMGet(ctx, s.latestKey(applicationID), "sequence", "result").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest result: %w", err)
	}

	raw, ok := fields[1].(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("application %s: %w", applicationID, ErrResultNotFound)
	}

	result, err := decodeResult([]byte(raw))
	if err != nil {
		return nil, err
	}
	if seq, ok := fields[0].(string); ok {
		if n, err := strconv.ParseInt(seq, 10, 64); err == nil {
			result.Sequence = n
		}
	}
	return result, nil
}

// Ping checks the Redis connection
func (s *ResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeResult(data []byte) (*processor.ProcessResult, error) {
	var result processor.ProcessResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}
