package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/db/ent/schema/utils"

	"github.com/google/uuid"
)

type DocumentJob struct{ ent.Schema }

func (DocumentJob) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "document_jobs"},
	}
}

func (DocumentJob) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		// tenant_id is immutable; every query on this table is scoped by it
		field.UUID("tenant_id", uuid.UUID{}).Immutable(),
		field.UUID("integration_id", uuid.UUID{}).Immutable(),
		field.UUID("facility_id", uuid.UUID{}).Optional().Nillable(),
		// explicit FK
		field.UUID("document_profile_id", uuid.UUID{}),
		field.String("original_filename").NotEmpty(),
		field.String("mime_type").NotEmpty().
			Validate(utils.EnumValidator(allowedMIMETypes()...)),
		field.Int64("file_size_bytes").NonNegative(),
		field.String("storage_path").NotEmpty(),
		field.Int("storage_retention_days").Positive(),
		field.Bytes("content_hash").
			SchemaType(map[string]string{dialect.Postgres: "bytea"}).
			Optional(),
		field.Int("page_count").NonNegative().Default(0),
		field.String("status").Default(string(constants.JobStatusPending)).
			Validate(utils.EnumValidator(constants.JobStatuses...)),
		field.UUID("correlation_id", uuid.UUID{}).Immutable(),
		field.String("external_ref").Optional().Nillable(),
		field.String("error_message").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
		field.Time("finished_at").Optional().Nillable(),
	}
}

func (DocumentJob) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("profile", DocumentProfile.Type).
			Ref("jobs").
			Field("document_profile_id").
			Required().
			Unique(),
		edge.To("items", DocumentItem.Type),
	}
}

func (DocumentJob) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "status", "created_at"),
		index.Fields("tenant_id", "correlation_id"),
		index.Fields("tenant_id", "content_hash"),
		index.Fields("document_profile_id"),
	}
}

func allowedMIMETypes() []string {
	out := make([]string, 0, len(constants.AllowedMIMETypes))
	for m := range constants.AllowedMIMETypes {
		out = append(out, m)
	}
	return out
}
