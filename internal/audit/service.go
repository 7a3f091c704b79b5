// Package audit emits append-only lifecycle events. Emission is
// fire-and-fail-visible: a failure propagates to the caller, it is never
// swallowed into a best-effort background write.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/entity"
	"github.com/docuplane/docintel/internal/repository"
)

// Service wraps the event repository with the event-construction details
// callers should not repeat.
type Service struct {
	events repository.AuditEventRepository
	logger *slog.Logger
}

// NewService wires the audit service.
func NewService(events repository.AuditEventRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{events: events, logger: logger}
}

// EmitJobEvent appends one event to a job's trail.
func (s *Service) EmitJobEvent(ctx context.Context, eventType constants.EventType,
	tenantID, correlationID, jobID uuid.UUID, actor string, data map[string]any) error {

	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		raw = b
	}

	event := &entity.AuditEvent{
		EventType:     eventType,
		TenantID:      tenantID,
		CorrelationID: correlationID,
		AggregateType: constants.AggregateDocumentJob,
		AggregateID:   jobID,
		EventData:     raw,
		Actor:         actor,
	}
	if err := s.events.Append(ctx, event); err != nil {
		return err
	}
	s.logger.Debug("audit event emitted",
		"event_type", eventType, "job_id", jobID, "correlation_id", correlationID)
	return nil
}

// Trail returns every event recorded for one correlation id.
func (s *Service) Trail(ctx context.Context, tenantID, correlationID uuid.UUID) ([]entity.AuditEvent, error) {
	return s.events.ListByCorrelation(ctx, tenantID, correlationID)
}
