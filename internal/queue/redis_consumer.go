/**
 * Legacy Redis list bridge
 *
 * Deployments still on the old catalog backend enqueue scans through a plain
 * Redis LIST plus a side hash of job payloads. This consumer speaks that wire
 * format byte for byte (including Node's Buffer JSON encoding) so the worker
 * can drain both queues during the migration window.
 */

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
	"github.com/shelfwise/catalog/photoscan-worker/internal/processor"
)

// legacyJob is the envelope the old backend writes to the payload hash.
type legacyJob struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Payload    legacyPayload `json:"payload"`
	CreatedAt  time.Time     `json:"createdAt"`
	Attempts   int           `json:"attempts"`
	MaxRetries int           `json:"maxRetries"`
}

// legacyPayload carries the scan request. FileBuffer needs custom decoding:
// the old backend serialized Node Buffers as either base64 strings or
// {type:"Buffer", data:[...]} objects depending on its version.
type legacyPayload struct {
	JobID       string                 `json:"jobId"`
	UserID      string                 `json:"userId"`
	Filename    string                 `json:"filename"`
	MimeType    string                 `json:"mimeType,omitempty"`
	FileSize    int64                  `json:"fileSize,omitempty"`
	FileURL     string                 `json:"fileUrl,omitempty"`
	FileBuffer  []byte                 // set by UnmarshalJSON
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	SkipMatting bool                   `json:"skipMatting,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func (p *legacyPayload) UnmarshalJSON(data []byte) error {
	type alias legacyPayload
	aux := &struct {
		FileBuffer interface{} `json:"fileBuffer,omitempty"`
		*alias
	}{
		alias: (*alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal job payload: %w", err)
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
		return nil

	case map[string]interface{}:
		if bufferType, _ := v["type"].(string); bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.FileBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.FileBuffer[i] = byte(byteVal)
		}
		return nil

	default:
		return fmt.Errorf("fileBuffer must be either base64 string or Buffer object, got %T", v)
	}
}

// RedisConsumer drains the legacy LIST queue.
type RedisConsumer struct {
	client    *redis.Client
	processor processor.PhotoProcessorInterface
	config    *RedisConsumerConfig
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisConsumerConfig holds legacy consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.PhotoProcessorInterface
	ProcessingTimeout int64 // milliseconds, default 300000 (5 minutes)
}

// NewRedisConsumer creates the legacy queue bridge and verifies the Redis
// connection.
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.QueueName == "" {
		cfg.QueueName = "photoscan:jobs"
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:    client,
		processor: cfg.Processor,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start launches the polling workers.
func (c *RedisConsumer) Start() error {
	log.Printf("Starting legacy queue bridge (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	return nil
}

// Stop drains the workers and closes the Redis connection.
func (c *RedisConsumer) Stop() error {
	log.Printf("Stopping legacy queue bridge...")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			log.Printf("Legacy worker %d stopping", id)
			return
		default:
			if err := c.poll(); err != nil {
				log.Printf("Legacy worker %d error: %v", id, err)
				time.Sleep(time.Second)
			}
		}
	}
}

// poll blocks for the next queued job id and runs it. A quiet queue is not
// an error.
func (c *RedisConsumer) poll() error {
	popped, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil || c.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(popped) < 2 {
		return fmt.Errorf("invalid BRPop result: %v", popped)
	}

	raw, err := c.client.HGet(c.ctx, c.key("data"), popped[1]).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data for %s: %w", popped[1], err)
	}

	var job legacyJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job %s: %w", popped[1], err)
	}

	c.run(&job)
	return nil
}

// run executes one job and settles its status on both sides.
func (c *RedisConsumer) run(job *legacyJob) {
	jobID := job.Payload.JobID
	log.Printf("[Job %s] Processing legacy queue job: %s", jobID, job.Payload.Filename)

	c.markProcessing(job)

	result, err := c.process(job)
	if err == nil {
		c.markCompleted(jobID, result)
		log.Printf("[Job %s] ✓ Completed (confidence=%.2f, attributes=%d, extractionId=%s)",
			jobID, result.Confidence, len(result.Attributes), result.ExtractionID)
		return
	}

	log.Printf("[Job %s] Failed: %v", jobID, err)

	// Invalid payloads and undecodable files fail identically on every
	// attempt; re-queueing them only burns retries.
	permanent := errors.IsCode(err, errors.ErrorValidationFailed) || errors.IsCode(err, errors.ErrorDecodeFailed)

	job.Attempts++
	if !permanent && job.Attempts < job.MaxRetries {
		c.requeue(job)
		return
	}

	failure := map[string]interface{}{
		"error":    err.Error(),
		"attempts": job.Attempts,
	}
	var procErr *errors.ProcessingError
	if errors.As(err, &procErr) {
		failure["errorCode"] = string(procErr.Code)
	}
	c.markFailed(jobID, failure)
}

// process runs the extraction pipeline under the configured timeout.
func (c *RedisConsumer) process(job *legacyJob) (*processor.ProcessResult, error) {
	timeout := 300000 * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	result, err := c.processor.ProcessPhoto(ctx, &processor.ProcessRequest{
		JobID:       job.Payload.JobID,
		UserID:      job.Payload.UserID,
		Filename:    job.Payload.Filename,
		MimeType:    job.Payload.MimeType,
		FileSize:    job.Payload.FileSize,
		FileURL:     job.Payload.FileURL,
		FileBuffer:  job.Payload.FileBuffer,
		Title:       job.Payload.Title,
		Description: job.Payload.Description,
		SkipMatting: job.Payload.SkipMatting,
		Metadata:    job.Payload.Metadata,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewProcessingTimeoutError(job.Payload.JobID, timeout, err)
		}
		return nil, err
	}

	return result, nil
}

// requeue pushes a failed job back onto the list with its bumped attempt
// counter so the old backend's retry accounting stays accurate.
func (c *RedisConsumer) requeue(job *legacyJob) {
	updated, err := json.Marshal(job)
	if err != nil {
		log.Printf("[Job %s] Failed to marshal for retry: %v", job.Payload.JobID, err)
		return
	}
	c.client.HSet(c.ctx, c.key("data"), job.ID, updated)
	c.client.LPush(c.ctx, c.config.QueueName, job.ID)
	log.Printf("[Job %s] Re-queued for retry (attempt %d/%d)", job.Payload.JobID, job.Attempts, job.MaxRetries)
}

// markProcessing records the job as in flight in Redis and PostgreSQL. The
// job row may not exist yet; the status UPSERT creates it.
func (c *RedisConsumer) markProcessing(job *legacyJob) {
	jobID := job.Payload.JobID
	c.client.SAdd(c.ctx, c.key("processing"), jobID)

	if err := c.processor.UpdateJobStatus(c.ctx, jobID, "processing", map[string]interface{}{
		"filename": job.Payload.Filename,
		"mimeType": job.Payload.MimeType,
		"fileSize": job.Payload.FileSize,
		"userId":   job.Payload.UserID,
	}); err != nil {
		log.Printf("[Job %s] Warning: failed to update status to processing: %v", jobID, err)
	}

	c.publishEvent(jobID, "processing")
}

// markCompleted settles a finished job: Redis sets, result hash, job row.
func (c *RedisConsumer) markCompleted(jobID string, result *processor.ProcessResult) {
	c.client.SRem(c.ctx, c.key("processing"), jobID)
	c.client.SAdd(c.ctx, c.key("completed"), jobID)

	if resultData, err := json.Marshal(result); err == nil {
		c.client.HSet(c.ctx, c.key("results"), jobID, resultData)
	}

	if err := c.processor.UpdateJobStatus(c.ctx, jobID, "completed",
		completionMetadata(result, result.ProcessingTimeMs)); err != nil {
		log.Printf("[Job %s] Warning: failed to update status to completed: %v", jobID, err)
	}

	c.publishEvent(jobID, "completed")
}

// markFailed settles a dead job after its retries are spent.
func (c *RedisConsumer) markFailed(jobID string, failure map[string]interface{}) {
	c.client.SRem(c.ctx, c.key("processing"), jobID)
	c.client.SAdd(c.ctx, c.key("failed"), jobID)

	if errorData, err := json.Marshal(failure); err == nil {
		c.client.HSet(c.ctx, c.key("errors"), jobID, errorData)
	}

	if err := c.processor.UpdateJobStatus(c.ctx, jobID, "failed", failure); err != nil {
		log.Printf("[Job %s] Warning: failed to update status to failed: %v", jobID, err)
	}

	c.publishEvent(jobID, "failed")
}

// publishEvent mirrors status transitions onto the pub/sub channel the old
// web tier streams to browsers.
func (c *RedisConsumer) publishEvent(jobID, status string) {
	event, err := json.Marshal(map[string]interface{}{
		"event":     "job:" + status,
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	c.client.Publish(c.ctx, c.key("events"), event)
}

// key namespaces the legacy queue's side structures.
func (c *RedisConsumer) key(kind string) string {
	return c.config.QueueName + ":" + kind
}

// Stats reports the legacy queue depths.
func (c *RedisConsumer) Stats(ctx context.Context) (map[string]int64, error) {
	waiting, err := c.client.LLen(ctx, c.config.QueueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read queue depth: %w", err)
	}

	processing, _ := c.client.SCard(ctx, c.key("processing")).Result()
	completed, _ := c.client.SCard(ctx, c.key("completed")).Result()
	failed, _ := c.client.SCard(ctx, c.key("failed")).Result()

	return map[string]int64{
		"waiting":    waiting,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}
