package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue hands delivery jobs off to a Redis list, popped by worker
// processes (cmd/worker) running deliver() under their own context; see
// §5's parallelism-boundary description.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue constructs a RedisQueue against an already-configured
// client, pushing jobs onto the named list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Enqueue implements dispatch.Queue by RPUSH-ing a JSON envelope.
func (q *RedisQueue) Enqueue(ctx context.Context, jobName string, payload map[string]any) error {
	envelope := map[string]any{
		"job_name": jobName,
		"payload":  payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshalling job envelope: %w", err)
	}
	return q.client.RPush(ctx, q.key, data).Err()
}

// QueuedJob is one envelope popped off the queue by a worker.
type QueuedJob struct {
	JobName string         `json:"job_name"`
	Payload map[string]any `json:"payload"`
}

// Pop blocks up to timeout for the next job on the queue, implementing
// the worker's "queue pop" suspension point (§5).
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*QueuedJob, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected BLPOP result shape")
	}
	var job QueuedJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshalling queued job: %w", err)
	}
	return &job, nil
}
