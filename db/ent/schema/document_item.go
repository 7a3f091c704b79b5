package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"
)

type DocumentItem struct{ ent.Schema }

func (DocumentItem) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "document_items"},
	}
}

func (DocumentItem) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.UUID("tenant_id", uuid.UUID{}).Immutable(),
		// explicit FK
		field.UUID("document_job_id", uuid.UUID{}),
		field.Int("item_index").NonNegative(),
		// item_type values come from the owning profile, not an enum here
		field.String("item_type").NotEmpty(),
		field.String("raw_text").
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Float32("ocr_confidence").Min(0).Max(1),
		field.String("ocr_provider").NotEmpty(),
		field.String("normalized_text").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Float32("normalization_confidence").Optional().Nillable(),
		field.Float32("extraction_confidence").Min(0).Max(1),
		field.JSON("flags", json.RawMessage{}).Optional(),
		field.JSON("evidence", json.RawMessage{}),
		field.JSON("structured_data", json.RawMessage{}).Optional(),
		field.Bool("is_reviewed").Default(false),
		field.Time("reviewed_at").Optional().Nillable(),
		field.UUID("reviewed_by_user_id", uuid.UUID{}).Optional().Nillable(),
		field.String("corrected_text").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("review_notes").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (DocumentItem) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("job", DocumentJob.Type).
			Ref("items").
			Field("document_job_id").
			Required().
			Unique(),
	}
}

func (DocumentItem) Indexes() []ent.Index {
	return []ent.Index{
		// the delete-before-insert path hits exactly this pair
		index.Fields("tenant_id", "document_job_id"),
		index.Fields("tenant_id", "document_job_id", "item_index").Unique(),
	}
}
