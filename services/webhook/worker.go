package webhook

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/guitarprime/api/services/queue"
)

// Worker drains the webhook queue. Jobs are processed one at a time: a single
// consumer keeps per-purchase ordering trivial and the volume is webhook
// traffic, not request traffic.
type Worker struct {
	queue     *queue.WebhookQueue
	processor *Processor

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewWorker(q *queue.WebhookQueue, processor *Processor) *Worker {
	return &Worker{queue: q, processor: processor}
}

// Start launches the worker loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Stop cancels the loop and waits for the in-flight job to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	log.Println("webhook worker started")
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Println("webhook worker stopped")
				return
			}
			log.Printf("[ERROR] webhook worker: dequeue failed: %v", err)
			continue
		}

		if err := w.processor.Process(ctx, job); err != nil {
			log.Printf("[ERROR] webhook worker: job failed (attempt %d): %v", job.Attempts+1, err)
			retried, rerr := w.queue.Retry(ctx, job, err)
			if rerr != nil {
				log.Printf("[ERROR] webhook worker: failed to requeue job: %v", rerr)
			} else if !retried {
				log.Printf("[ERROR] webhook worker: job dead-lettered after %d attempts", job.Attempts)
			}
		}
	}
}
