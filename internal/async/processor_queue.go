package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/common"
)

// ProcessorQueue is the in-process queue implementation: a buffered channel
// drained by a fixed worker pool. Per-job claims guarantee that at most one
// worker processes a given (tenant, job) at any instant, and retryable
// failures are redelivered up to a configured attempt cap.
type ProcessorQueue struct {
	proc        JobProcessor
	logger      *slog.Logger
	workers     int
	timeout     time.Duration
	maxAttempts int

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// mu serializes every send on ch against Shutdown's close. A sender
	// holds it for the whole send, so close can only happen between sends.
	mu     sync.Mutex
	closed bool

	claimMu sync.Mutex
	claims  map[string]struct{}
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// NewProcessorQueue builds and starts the pool.
func NewProcessorQueue(proc JobProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:        proc,
		logger:      logger,
		workers:     4,
		timeout:     3 * time.Minute,
		maxAttempts: 3,
		ch:          make(chan Job, 256),
		claims:      make(map[string]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)
				for job := range q.ch {
					q.handle(workerID, job)
				}
				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) handle(workerID int, job Job) {
	key := claimKey(job)
	if !q.tryClaim(key) {
		// Another worker owns this job right now. Requeue the message so
		// it is retried once the owner releases; idempotent persistence
		// keeps the eventual double-processing harmless.
		q.logger.Warn("job already claimed, deferring redelivery",
			"worker_id", workerID, "job_id", job.JobID, "tenant_id", job.TenantID)
		q.requeueLater(job)
		return
	}
	defer q.release(key)

	job.Final = job.Attempt+1 >= q.maxAttempts

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	err := q.proc.ProcessJob(ctx, job)
	cancel()

	if err == nil {
		q.logger.Info("processed job", "worker_id", workerID, "job_id", job.JobID, "attempt", job.Attempt)
		return
	}

	if common.IsRetryable(err) && job.Attempt+1 < q.maxAttempts {
		q.logger.Warn("processing failed, redelivering",
			"worker_id", workerID, "job_id", job.JobID, "attempt", job.Attempt, "error", err)
		job.Attempt++
		q.requeueLater(job)
		return
	}
	q.logger.Error("processing failed",
		"worker_id", workerID, "job_id", job.JobID, "attempt", job.Attempt, "error", err)
}

// tryClaim takes the per-job processing claim; it is the in-process stand-in
// for a broker lease.
func (q *ProcessorQueue) tryClaim(key string) bool {
	q.claimMu.Lock()
	defer q.claimMu.Unlock()
	if _, held := q.claims[key]; held {
		return false
	}
	q.claims[key] = struct{}{}
	return true
}

func (q *ProcessorQueue) release(key string) {
	q.claimMu.Lock()
	delete(q.claims, key)
	q.claimMu.Unlock()
}

func (q *ProcessorQueue) requeueLater(job Job) {
	time.AfterFunc(500*time.Millisecond, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			q.logger.Warn("dropping redelivery, queue shut down", "job_id", job.JobID)
			return
		}
		q.ch <- job
	})
}

// Enqueue implements Queue. Only the document processing topic is served.
func (q *ProcessorQueue) Enqueue(_ context.Context, topic string, job Job) error {
	if topic != constants.TopicDocumentProcess {
		return fmt.Errorf("unknown topic %q", topic)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue is shut down")
	}
	select {
	case q.ch <- job:
		q.logger.Info("job enqueued", "job_id", job.JobID, "tenant_id", job.TenantID, "attempt", job.Attempt)
	default:
		q.logger.Warn("queue full, applying backpressure", "job_id", job.JobID)
		q.ch <- job
	}
	return nil
}

// Shutdown drains the pool, waiting for in-flight work up to the context
// deadline.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

func claimKey(job Job) string {
	return job.TenantID.String() + "/" + job.JobID.String()
}
