package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/constants"
)

// AuditEvent is one append-only entry in a job's audit trail. The
// correlation id threads every event belonging to one job lifecycle.
type AuditEvent struct {
	ID            uuid.UUID           `json:"id"`
	EventType     constants.EventType `json:"event_type"`
	TenantID      uuid.UUID           `json:"tenant_id"`
	CorrelationID uuid.UUID           `json:"correlation_id"`
	AggregateType string              `json:"aggregate_type"`
	AggregateID   uuid.UUID           `json:"aggregate_id"`
	EventData     json.RawMessage     `json:"event_data,omitempty"`
	Actor         string              `json:"actor"`
	CreatedAt     time.Time           `json:"created_at"`
}
