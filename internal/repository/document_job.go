package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// ErrStatusConflict is returned when a transition's expected current status
// does not match the stored row: either an illegal transition or a second
// worker racing for the same job.
var ErrStatusConflict = errors.New("job status conflict")

// DocumentJobRepository persists job rows. Jobs are never deleted, only
// marked terminal; every access is tenant-scoped.
type DocumentJobRepository interface {
	Create(ctx context.Context, job *entity.DocumentJob) error
	GetByID(ctx context.Context, tenantID, jobID uuid.UUID) (*entity.DocumentJob, error)
	// Transition moves a job from one status to another and appends the
	// matching audit event in the same transaction. Either both become
	// durable or neither does.
	Transition(ctx context.Context, tenantID, jobID uuid.UUID, from, to constants.JobStatus,
		errorMessage *string, event *entity.AuditEvent) error
	// ListPendingBefore returns pending jobs created before the cutoff,
	// oldest first, across all tenants. It feeds the requeue sweep.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.DocumentJob, error)
}

type documentJobRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDocumentJobRepository wires the repository over a *sql.DB handle.
func NewDocumentJobRepository(db *sql.DB, logger *slog.Logger) DocumentJobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentJobRepo{db: db, logger: logger}
}

func (r *documentJobRepo) Create(ctx context.Context, job *entity.DocumentJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO document_jobs (
			id, tenant_id, integration_id, facility_id, document_profile_id,
			original_filename, mime_type, file_size_bytes, storage_path,
			storage_retention_days, content_hash, page_count,
			status, correlation_id, external_ref, error_message,
			created_at, updated_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		job.ID, job.TenantID, job.IntegrationID, job.FacilityID, job.DocumentProfileID,
		job.OriginalFilename, job.MimeType, job.FileSizeBytes, job.StoragePath,
		job.StorageRetentionDays, job.ContentHash, job.PageCount,
		string(job.Status), job.CorrelationID, job.ExternalRef, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.FinishedAt,
	)
	if err != nil {
		r.logger.Error("job create failed", "tenant_id", job.TenantID, "error", err)
		return &common.PersistenceError{Op: "create job", Err: err}
	}
	r.logger.Info("job created", "job_id", job.ID, "tenant_id", job.TenantID, "status", job.Status)
	return nil
}

func (r *documentJobRepo) GetByID(ctx context.Context, tenantID, jobID uuid.UUID) (*entity.DocumentJob, error) {
	var (
		job    entity.DocumentJob
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, integration_id, facility_id, document_profile_id,
			original_filename, mime_type, file_size_bytes, storage_path,
			storage_retention_days, content_hash, page_count,
			status, correlation_id, external_ref, error_message,
			created_at, updated_at, finished_at
		FROM document_jobs
		WHERE id = $1 AND tenant_id = $2`,
		jobID, tenantID,
	).Scan(
		&job.ID, &job.TenantID, &job.IntegrationID, &job.FacilityID, &job.DocumentProfileID,
		&job.OriginalFilename, &job.MimeType, &job.FileSizeBytes, &job.StoragePath,
		&job.StorageRetentionDays, &job.ContentHash, &job.PageCount,
		&status, &job.CorrelationID, &job.ExternalRef, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &common.PersistenceError{Op: "get job", Err: err}
	}
	job.Status = constants.JobStatus(status)
	return &job, nil
}

func (r *documentJobRepo) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.DocumentJob, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, integration_id, facility_id, document_profile_id,
			original_filename, mime_type, file_size_bytes, storage_path,
			storage_retention_days, content_hash, page_count,
			status, correlation_id, external_ref, error_message,
			created_at, updated_at, finished_at
		FROM document_jobs
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`,
		string(constants.JobStatusPending), cutoff, limit,
	)
	if err != nil {
		return nil, &common.PersistenceError{Op: "list pending jobs", Err: err}
	}
	defer rows.Close()

	var out []*entity.DocumentJob
	for rows.Next() {
		var (
			job    entity.DocumentJob
			status string
		)
		err := rows.Scan(
			&job.ID, &job.TenantID, &job.IntegrationID, &job.FacilityID, &job.DocumentProfileID,
			&job.OriginalFilename, &job.MimeType, &job.FileSizeBytes, &job.StoragePath,
			&job.StorageRetentionDays, &job.ContentHash, &job.PageCount,
			&status, &job.CorrelationID, &job.ExternalRef, &job.ErrorMessage,
			&job.CreatedAt, &job.UpdatedAt, &job.FinishedAt,
		)
		if err != nil {
			return nil, &common.PersistenceError{Op: "scan pending job", Err: err}
		}
		job.Status = constants.JobStatus(status)
		out = append(out, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.PersistenceError{Op: "list pending jobs", Err: err}
	}
	return out, nil
}

func (r *documentJobRepo) Transition(ctx context.Context, tenantID, jobID uuid.UUID, from, to constants.JobStatus,
	errorMessage *string, event *entity.AuditEvent) error {

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &common.PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	var finishedAt *time.Time
	if to.IsTerminal() {
		now := time.Now().UTC()
		finishedAt = &now
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE document_jobs
		SET status = $1, error_message = $2, finished_at = $3, updated_at = $4
		WHERE id = $5 AND tenant_id = $6 AND status = $7`,
		string(to), errorMessage, finishedAt, time.Now().UTC(),
		jobID, tenantID, string(from),
	)
	if err != nil {
		return &common.PersistenceError{Op: "update status", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &common.PersistenceError{Op: "update status", Err: err}
	}
	if affected == 0 {
		r.logger.Warn("job transition refused",
			"job_id", jobID, "tenant_id", tenantID, "from", from, "to", to)
		return ErrStatusConflict
	}

	// The transition is not durable until its audit event is durable.
	if err := insertAuditEvent(ctx, tx, event); err != nil {
		r.logger.Error("audit emission failed, rolling back transition",
			"job_id", jobID, "from", from, "to", to, "error", err)
		return &common.PersistenceError{Op: "append audit event", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &common.PersistenceError{Op: "commit", Err: err}
	}
	r.logger.Info("job transitioned", "job_id", jobID, "tenant_id", tenantID, "from", from, "to", to)
	return nil
}
