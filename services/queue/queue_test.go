package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/guitarprime/api/model"
	"github.com/guitarprime/api/services/payment"
)

func newTestQueue(t *testing.T) (*WebhookQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewWebhookQueue(client), mr
}

func testEvent() payment.WebhookEvent {
	return payment.WebhookEvent{
		Provider: model.ProviderStripe,
		Type:     payment.EventCheckoutSessionCompleted,
		Payload:  json.RawMessage(`{"id":"cs_123"}`),
	}
}

func TestEnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, testEvent()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("depth = %d, want 1", depth)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job.Event.Provider != model.ProviderStripe {
		t.Errorf("provider = %q, want stripe", job.Event.Provider)
	}
	if job.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", job.Attempts)
	}
	if string(job.Event.Payload) != `{"id":"cs_123"}` {
		t.Errorf("payload = %s", job.Event.Payload)
	}
}

func TestDequeueOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first := testEvent()
	second := payment.WebhookEvent{
		Provider: model.ProviderRazorpay,
		Type:     payment.EventPaymentCaptured,
		Payload:  json.RawMessage(`{"id":"pay_456"}`),
	}
	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("Enqueue first: %v", err)
	}
	if err := q.Enqueue(ctx, second); err != nil {
		t.Fatalf("Enqueue second: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job.Event.Provider != model.ProviderStripe {
		t.Error("jobs should be delivered in FIFO order")
	}
}

func TestDequeueRespectsContext(t *testing.T) {
	q, _ := newTestQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := q.Dequeue(ctx)
	if err == nil {
		t.Fatal("expected error on empty queue with cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Dequeue blocked %v after cancellation", elapsed)
	}
}

func TestRetryAndDeadLetter(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := &Job{Event: testEvent()}
	for i := 0; i < MaxAttempts-1; i++ {
		retried, err := q.Retry(ctx, job, context.DeadlineExceeded)
		if err != nil {
			t.Fatalf("Retry %d: %v", i, err)
		}
		if !retried {
			t.Fatalf("attempt %d should have been requeued", job.Attempts)
		}
		job, err = q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue after retry: %v", err)
		}
	}
	if job.LastError == "" {
		t.Error("retried job should record its last error")
	}

	retried, err := q.Retry(ctx, job, context.DeadlineExceeded)
	if err != nil {
		t.Fatalf("final Retry: %v", err)
	}
	if retried {
		t.Error("job at MaxAttempts should not be requeued")
	}

	depth, _ := q.Depth(ctx)
	if depth != 0 {
		t.Errorf("work depth = %d, want 0", depth)
	}
	dead, _ := q.DeadLetterDepth(ctx)
	if dead != 1 {
		t.Errorf("dead-letter depth = %d, want 1", dead)
	}
}

func TestMalformedJobIsParked(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	mr.Lpush(DefaultKey, "not-json")
	if err := q.Enqueue(ctx, testEvent()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job.Event.Provider != model.ProviderStripe {
		t.Error("valid job should be returned after skipping malformed one")
	}

	dead, _ := q.DeadLetterDepth(ctx)
	if dead != 1 {
		t.Errorf("dead-letter depth = %d, want 1", dead)
	}
}
