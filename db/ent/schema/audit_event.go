package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/db/ent/schema/utils"

	"github.com/google/uuid"
)

// AuditEvent rows are append-only; nothing updates or deletes them.
type AuditEvent struct{ ent.Schema }

func (AuditEvent) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "audit_events"},
	}
}

func (AuditEvent) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("event_type").NotEmpty().Immutable().
			Validate(utils.EnumValidator(
				string(constants.EventDocumentReceived),
				string(constants.EventProcessingStarted),
				string(constants.EventProcessingCompleted),
				string(constants.EventProcessingFailed),
				string(constants.EventReviewRequired),
			)),
		field.UUID("tenant_id", uuid.UUID{}).Immutable(),
		field.UUID("correlation_id", uuid.UUID{}).Immutable(),
		field.String("aggregate_type").NotEmpty().Immutable(),
		field.UUID("aggregate_id", uuid.UUID{}).Immutable(),
		field.JSON("event_data", json.RawMessage{}).Optional().Immutable(),
		field.String("actor").NotEmpty().Immutable(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (AuditEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "correlation_id", "created_at"),
		index.Fields("tenant_id", "aggregate_type", "aggregate_id"),
	}
}
