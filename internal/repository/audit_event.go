package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// AuditEventRepository is the append-only event store behind the audit
// service. Emission failures are never swallowed; callers treat them as
// transient and retry.
type AuditEventRepository interface {
	Append(ctx context.Context, event *entity.AuditEvent) error
	ListByCorrelation(ctx context.Context, tenantID, correlationID uuid.UUID) ([]entity.AuditEvent, error)
}

type auditEventRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditEventRepository wires the repository over a *sql.DB handle.
func NewAuditEventRepository(db *sql.DB, logger *slog.Logger) AuditEventRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &auditEventRepo{db: db, logger: logger}
}

func (r *auditEventRepo) Append(ctx context.Context, event *entity.AuditEvent) error {
	if err := insertAuditEvent(ctx, r.db, event); err != nil {
		r.logger.Error("audit append failed",
			"event_type", event.EventType, "aggregate_id", event.AggregateID, "error", err)
		return &common.PersistenceError{Op: "append audit event", Err: err}
	}
	return nil
}

// insertAuditEvent writes one event through any querier, so job transitions
// can append inside their own transaction.
func insertAuditEvent(ctx context.Context, q querier, event *entity.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	data := []byte("{}")
	if len(event.EventData) > 0 {
		data = event.EventData
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, event_type, tenant_id, correlation_id,
			aggregate_type, aggregate_id, event_data, actor, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, string(event.EventType), event.TenantID, event.CorrelationID,
		event.AggregateType, event.AggregateID, data, event.Actor, event.CreatedAt,
	)
	return err
}

func (r *auditEventRepo) ListByCorrelation(ctx context.Context, tenantID, correlationID uuid.UUID) ([]entity.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, tenant_id, correlation_id,
			aggregate_type, aggregate_id, event_data, actor, created_at
		FROM audit_events
		WHERE tenant_id = $1 AND correlation_id = $2
		ORDER BY created_at`,
		tenantID, correlationID,
	)
	if err != nil {
		return nil, &common.PersistenceError{Op: "query audit events", Err: err}
	}
	defer rows.Close()

	var events []entity.AuditEvent
	for rows.Next() {
		var (
			ev        entity.AuditEvent
			eventType string
			data      []byte
		)
		if err := rows.Scan(
			&ev.ID, &eventType, &ev.TenantID, &ev.CorrelationID,
			&ev.AggregateType, &ev.AggregateID, &data, &ev.Actor, &ev.CreatedAt,
		); err != nil {
			return nil, &common.PersistenceError{Op: "scan audit event", Err: err}
		}
		ev.EventType = constants.EventType(eventType)
		ev.EventData = data
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.PersistenceError{Op: "iterate audit events", Err: err}
	}
	return events, nil
}
