package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// DocumentProfileRepository reads externally-managed profiles. The core only
// consumes profiles; creation and editing belong to the dashboard.
type DocumentProfileRepository interface {
	// GetByID returns the profile, or nil when no profile with that id
	// exists for the tenant.
	GetByID(ctx context.Context, profileID, tenantID uuid.UUID) (*entity.DocumentProfile, error)
}

type documentProfileRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDocumentProfileRepository wires the repository over a *sql.DB handle.
func NewDocumentProfileRepository(db *sql.DB, logger *slog.Logger) DocumentProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentProfileRepo{db: db, logger: logger}
}

func (r *documentProfileRepo) GetByID(ctx context.Context, profileID, tenantID uuid.UUID) (*entity.DocumentProfile, error) {
	var (
		profile   entity.DocumentProfile
		itemTypes []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, description, active, item_types, retention_days, created_at, updated_at
		FROM document_profiles
		WHERE id = $1 AND tenant_id = $2`,
		profileID, tenantID,
	).Scan(
		&profile.ID, &profile.TenantID, &profile.Name, &profile.Description, &profile.Active,
		&itemTypes, &profile.RetentionDays, &profile.CreatedAt, &profile.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("profile query failed", "profile_id", profileID, "tenant_id", tenantID, "error", err)
		return nil, &common.PersistenceError{Op: "get profile", Err: err}
	}
	if len(itemTypes) > 0 {
		if err := json.Unmarshal(itemTypes, &profile.ItemTypes); err != nil {
			return nil, &common.PersistenceError{Op: "decode profile item types", Err: err}
		}
	}
	return &profile, nil
}
