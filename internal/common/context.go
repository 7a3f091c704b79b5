package common

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	contextKeyCorrelationID contextKey = "correlation_id"
	contextKeyTenantID      contextKey = "tenant_id"
)

// WithCorrelationID attaches a correlation id to the context so every log
// line and audit event for one job lifecycle can carry it.
func WithCorrelationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyCorrelationID, id)
}

// CorrelationIDFromContext extracts the correlation id, or uuid.Nil.
func CorrelationIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(contextKeyCorrelationID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithTenantID attaches the tenant id to the context.
func WithTenantID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyTenantID, id)
}

// TenantIDFromContext extracts the tenant id, or uuid.Nil.
func TenantIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(contextKeyTenantID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
