// Package jobs owns the document job lifecycle: which status moves are
// legal, and the rule that a transition is only durable together with its
// audit event.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/entity"
	"github.com/docuplane/docintel/internal/repository"
)

// ErrIllegalTransition is returned for a status move outside the lifecycle
// graph. Terminal states have no automated exits; needs_review is left for
// the external review workflow.
var ErrIllegalTransition = errors.New("illegal job transition")

// transitions is the full lifecycle graph:
// pending -> processing -> {completed | failed | needs_review}.
var transitions = map[constants.JobStatus][]constants.JobStatus{
	constants.JobStatusPending:    {constants.JobStatusProcessing},
	constants.JobStatusProcessing: {constants.JobStatusCompleted, constants.JobStatusFailed, constants.JobStatusNeedsReview},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to constants.JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EventForStatus maps each transition target to its audit event type.
func EventForStatus(to constants.JobStatus) constants.EventType {
	switch to {
	case constants.JobStatusProcessing:
		return constants.EventProcessingStarted
	case constants.JobStatusCompleted:
		return constants.EventProcessingCompleted
	case constants.JobStatusFailed:
		return constants.EventProcessingFailed
	case constants.JobStatusNeedsReview:
		return constants.EventReviewRequired
	}
	return ""
}

// Transitioner executes lifecycle moves. Each move updates the job row and
// appends exactly one audit event in a single transaction; a failed audit
// append rolls the move back and is retryable.
type Transitioner struct {
	jobs   repository.DocumentJobRepository
	logger *slog.Logger
}

// NewTransitioner wires a transitioner over the job repository.
func NewTransitioner(jobs repository.DocumentJobRepository, logger *slog.Logger) *Transitioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transitioner{jobs: jobs, logger: logger}
}

// To moves the job to the target status, attaching eventData to the audit
// event and errorMessage to the job row. On success the in-memory job status
// is advanced as well.
func (t *Transitioner) To(ctx context.Context, job *entity.DocumentJob, to constants.JobStatus,
	eventData map[string]any, errorMessage *string) error {

	from := job.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	var data json.RawMessage
	if eventData != nil {
		raw, err := json.Marshal(eventData)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		data = raw
	}

	event := &entity.AuditEvent{
		EventType:     EventForStatus(to),
		TenantID:      job.TenantID,
		CorrelationID: job.CorrelationID,
		AggregateType: constants.AggregateDocumentJob,
		AggregateID:   job.ID,
		EventData:     data,
		Actor:         "worker",
	}

	if err := t.jobs.Transition(ctx, job.TenantID, job.ID, from, to, errorMessage, event); err != nil {
		return err
	}
	job.Status = to
	job.ErrorMessage = errorMessage
	return nil
}
