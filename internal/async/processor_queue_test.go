package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/common"
)

// countingProcessor records deliveries and fails the first n of them.
type countingProcessor struct {
	mu       sync.Mutex
	calls    []Job
	failures int
	err      error
	done     chan struct{}
	expected int
}

func (p *countingProcessor) ProcessJob(_ context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, job)
	if len(p.calls) == p.expected {
		close(p.done)
	}
	if len(p.calls) <= p.failures {
		return p.err
	}
	return nil
}

func (p *countingProcessor) snapshot() []Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Job, len(p.calls))
	copy(out, p.calls)
	return out
}

func waitOrFail(t *testing.T, done chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestEnqueueRejectsUnknownTopic(t *testing.T) {
	proc := &countingProcessor{done: make(chan struct{}), expected: -1}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	defer q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), "document.purge", Job{JobID: uuid.New(), TenantID: uuid.New()})
	if err == nil {
		t.Fatal("expected unknown topic to be rejected")
	}
}

func TestQueueDeliversJob(t *testing.T) {
	proc := &countingProcessor{done: make(chan struct{}), expected: 1}
	q := NewProcessorQueue(proc, nil, WithWorkers(2))
	defer q.Shutdown(context.Background())

	job := Job{JobID: uuid.New(), TenantID: uuid.New(), SubmittedAt: time.Now()}
	if err := q.Enqueue(context.Background(), constants.TopicDocumentProcess, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitOrFail(t, proc.done, "delivery")
	calls := proc.snapshot()
	if len(calls) != 1 || calls[0].JobID != job.JobID {
		t.Fatalf("unexpected deliveries: %+v", calls)
	}
	if calls[0].Attempt != 0 {
		t.Fatalf("first delivery must be attempt 0, got %d", calls[0].Attempt)
	}
}

func TestQueueRedeliversRetryableFailures(t *testing.T) {
	proc := &countingProcessor{
		done:     make(chan struct{}),
		expected: 3,
		failures: 2,
		err:      &common.PersistenceError{Op: "insert items", Err: errors.New("lock timeout")},
	}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithMaxAttempts(3))
	defer q.Shutdown(context.Background())

	job := Job{JobID: uuid.New(), TenantID: uuid.New()}
	if err := q.Enqueue(context.Background(), constants.TopicDocumentProcess, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitOrFail(t, proc.done, "three deliveries")
	calls := proc.snapshot()
	if len(calls) != 3 {
		t.Fatalf("expected 3 deliveries, got %d", len(calls))
	}
	for i, c := range calls {
		if c.Attempt != i {
			t.Fatalf("delivery %d carried attempt %d", i, c.Attempt)
		}
	}
	if !calls[2].Final {
		t.Fatal("last permitted delivery must be marked final")
	}
}

func TestQueueDropsNonRetryableFailures(t *testing.T) {
	proc := &countingProcessor{
		done:     make(chan struct{}),
		expected: 1,
		failures: 5,
		err:      errors.New("plain failure"),
	}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithMaxAttempts(3))

	job := Job{JobID: uuid.New(), TenantID: uuid.New()}
	if err := q.Enqueue(context.Background(), constants.TopicDocumentProcess, job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitOrFail(t, proc.done, "single delivery")

	// give a wrong redelivery a chance to show up before shutdown
	time.Sleep(800 * time.Millisecond)
	q.Shutdown(context.Background())

	if calls := proc.snapshot(); len(calls) != 1 {
		t.Fatalf("non-retryable failure was redelivered: %d deliveries", len(calls))
	}
}

// gatedProcessor blocks every delivery until the gate is opened.
type gatedProcessor struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	gate    chan struct{}
}

func (p *gatedProcessor) ProcessJob(_ context.Context, _ Job) error {
	p.mu.Lock()
	p.calls++
	if p.calls == 1 {
		close(p.started)
	}
	p.mu.Unlock()
	<-p.gate
	return nil
}

func (p *gatedProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestQueueShutdownWaitsForBlockedEnqueue(t *testing.T) {
	proc := &gatedProcessor{started: make(chan struct{}), gate: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	ctx := context.Background()
	tenant := uuid.New()

	// first job occupies the single worker, second fills the buffer
	if err := q.Enqueue(ctx, constants.TopicDocumentProcess, Job{JobID: uuid.New(), TenantID: tenant}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	waitOrFail(t, proc.started, "worker pickup")
	if err := q.Enqueue(ctx, constants.TopicDocumentProcess, Job{JobID: uuid.New(), TenantID: tenant}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// third enqueue blocks in the backpressure send
	enqueued := make(chan error, 1)
	go func() {
		enqueued <- q.Enqueue(ctx, constants.TopicDocumentProcess, Job{JobID: uuid.New(), TenantID: tenant})
	}()
	time.Sleep(100 * time.Millisecond)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		q.Shutdown(context.Background())
	}()
	time.Sleep(100 * time.Millisecond)

	close(proc.gate)

	waitOrFail(t, shutdownDone, "shutdown")
	select {
	case err := <-enqueued:
		if err != nil {
			t.Fatalf("blocked enqueue failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for blocked enqueue")
	}
	if got := proc.count(); got != 3 {
		t.Fatalf("expected all 3 jobs delivered before shutdown completed, got %d", got)
	}
}

func TestQueueRefusesEnqueueAfterShutdown(t *testing.T) {
	proc := &countingProcessor{done: make(chan struct{}), expected: -1}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), constants.TopicDocumentProcess,
		Job{JobID: uuid.New(), TenantID: uuid.New()})
	if err == nil {
		t.Fatal("expected enqueue after shutdown to fail")
	}
}
