package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one processing message, keyed by (job_id, tenant_id). Attempt
// counts deliveries; redelivery after a retryable failure increments it.
// Final is set by the queue on the last permitted delivery so the processor
// knows not to leave the job resumable.
type Job struct {
	JobID         uuid.UUID
	TenantID      uuid.UUID
	CorrelationID uuid.UUID
	Attempt       int
	Final         bool
	SubmittedAt   time.Time
}

// Queue is the queue collaborator contract: fire-and-forget enqueue with
// at-least-once delivery semantics. Dequeue exclusivity (the claim) is the
// queue implementation's job.
type Queue interface {
	Enqueue(ctx context.Context, topic string, job Job) error
	Shutdown(ctx context.Context)
}

// JobProcessor is what the queue drives; implemented by core.Processor.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job Job) error
}
