// Package queue is a redis-list job queue for webhook processing. Producers
// push verified webhook events; a single worker pops them with a short
// blocking timeout so shutdown stays responsive.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guitarprime/api/services/payment"
)

const (
	// DefaultKey is the redis list jobs wait on.
	DefaultKey = "webhooks:jobs"
	// DefaultDeadLetterKey collects jobs that exhausted their retries.
	DefaultDeadLetterKey = "webhooks:dead"
	// MaxAttempts bounds retries before a job goes to the dead-letter list.
	MaxAttempts = 3

	popTimeout = 1 * time.Second
)

// Job wraps a verified webhook event with retry bookkeeping.
type Job struct {
	Event      payment.WebhookEvent `json:"event"`
	Attempts   int                  `json:"attempts"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
	LastError  string               `json:"last_error,omitempty"`
}

type WebhookQueue struct {
	client  *redis.Client
	key     string
	deadKey string
}

func NewWebhookQueue(client *redis.Client) *WebhookQueue {
	return &WebhookQueue{
		client:  client,
		key:     DefaultKey,
		deadKey: DefaultDeadLetterKey,
	}
}

// Enqueue pushes a verified webhook event onto the work list.
func (q *WebhookQueue) Enqueue(ctx context.Context, event payment.WebhookEvent) error {
	job := Job{Event: event, EnqueuedAt: time.Now().UTC()}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available or ctx is done. It pops with a
// short timeout and loops so context cancellation is observed promptly.
func (q *WebhookQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		result, err := q.client.BLPop(ctx, popTimeout, q.key).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue job: %w", err)
		}
		if len(result) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			// Malformed payloads would loop forever if requeued; park them.
			q.client.RPush(ctx, q.deadKey, result[1])
			continue
		}
		return &job, nil
	}
}

// Retry puts a failed job back on the list with its attempt count bumped, or
// moves it to the dead-letter list once MaxAttempts is reached. It reports
// whether the job will be retried.
func (q *WebhookQueue) Retry(ctx context.Context, job *Job, cause error) (bool, error) {
	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("marshal job: %w", err)
	}

	if job.Attempts >= MaxAttempts {
		if err := q.client.RPush(ctx, q.deadKey, data).Err(); err != nil {
			return false, fmt.Errorf("dead-letter job: %w", err)
		}
		return false, nil
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return false, fmt.Errorf("requeue job: %w", err)
	}
	return true, nil
}

// Depth returns the number of pending jobs.
func (q *WebhookQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// DeadLetterDepth returns the number of parked jobs.
func (q *WebhookQueue) DeadLetterDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.deadKey).Result()
}
