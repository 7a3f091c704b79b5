package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
)

// DocumentItemRepository persists extracted items. ReplaceForJob is the only
// write path the pipeline uses: at-least-once queue delivery means the same
// job can be persisted more than once, and replacement keeps that safe.
type DocumentItemRepository interface {
	// ReplaceForJob atomically deletes the existing item set for
	// (tenant, job) and inserts items in its place. An empty items slice
	// still clears any stale prior set.
	ReplaceForJob(ctx context.Context, tenantID, jobID uuid.UUID, items []entity.DocumentItem) error
	GetByJobID(ctx context.Context, jobID, tenantID uuid.UUID) ([]entity.DocumentItem, error)
}

type documentItemRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDocumentItemRepository wires the repository over a *sql.DB handle.
func NewDocumentItemRepository(db *sql.DB, logger *slog.Logger) DocumentItemRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentItemRepo{db: db, logger: logger}
}

func (r *documentItemRepo) ReplaceForJob(ctx context.Context, tenantID, jobID uuid.UUID, items []entity.DocumentItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &common.PersistenceError{Op: "begin", Err: err}
	}
	defer tx.Rollback()

	// Deletion is always tenant-scoped: a job_id collision across tenants
	// must never touch another tenant's rows.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_items WHERE tenant_id = $1 AND document_job_id = $2`,
		tenantID, jobID,
	); err != nil {
		r.logger.Error("item delete failed", "tenant_id", tenantID, "job_id", jobID, "error", err)
		return &common.PersistenceError{Op: "delete items", Err: err}
	}

	for i := range items {
		if err := insertItem(ctx, tx, &items[i]); err != nil {
			r.logger.Error("item insert failed",
				"tenant_id", tenantID, "job_id", jobID, "item_index", items[i].ItemIndex, "error", err)
			return &common.PersistenceError{Op: "insert items", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &common.PersistenceError{Op: "commit", Err: err}
	}
	r.logger.Info("item set replaced", "tenant_id", tenantID, "job_id", jobID, "items", len(items))
	return nil
}

func insertItem(ctx context.Context, q querier, item *entity.DocumentItem) error {
	if err := item.Evidence.Validate(); err != nil {
		return fmt.Errorf("item %d: %w", item.ItemIndex, err)
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	flags, err := json.Marshal(item.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	evidence, err := json.Marshal(item.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	structured := []byte("{}")
	if len(item.StructuredData) > 0 {
		structured = item.StructuredData
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO document_items (
			id, tenant_id, document_job_id, item_index, item_type,
			raw_text, ocr_confidence, ocr_provider,
			normalized_text, normalization_confidence, extraction_confidence,
			flags, evidence, structured_data,
			is_reviewed, reviewed_at, reviewed_by_user_id, corrected_text, review_notes,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		item.ID, item.TenantID, item.DocumentJobID, item.ItemIndex, item.ItemType,
		item.RawText, item.OCRConfidence, item.OCRProvider,
		item.NormalizedText, item.NormalizationConfidence, item.ExtractionConfidence,
		flags, evidence, structured,
		item.IsReviewed, item.ReviewedAt, item.ReviewedByUserID, item.CorrectedText, item.ReviewNotes,
		item.CreatedAt,
	)
	return err
}

func (r *documentItemRepo) GetByJobID(ctx context.Context, jobID, tenantID uuid.UUID) ([]entity.DocumentItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_job_id, item_index, item_type,
			raw_text, ocr_confidence, ocr_provider,
			normalized_text, normalization_confidence, extraction_confidence,
			flags, evidence, structured_data,
			is_reviewed, reviewed_at, reviewed_by_user_id, corrected_text, review_notes,
			created_at
		FROM document_items
		WHERE document_job_id = $1 AND tenant_id = $2
		ORDER BY item_index`,
		jobID, tenantID,
	)
	if err != nil {
		r.logger.Error("item query failed", "tenant_id", tenantID, "job_id", jobID, "error", err)
		return nil, &common.PersistenceError{Op: "query items", Err: err}
	}
	defer rows.Close()

	var items []entity.DocumentItem
	for rows.Next() {
		var (
			item       entity.DocumentItem
			flags      []byte
			evidence   []byte
			structured []byte
		)
		if err := rows.Scan(
			&item.ID, &item.TenantID, &item.DocumentJobID, &item.ItemIndex, &item.ItemType,
			&item.RawText, &item.OCRConfidence, &item.OCRProvider,
			&item.NormalizedText, &item.NormalizationConfidence, &item.ExtractionConfidence,
			&flags, &evidence, &structured,
			&item.IsReviewed, &item.ReviewedAt, &item.ReviewedByUserID, &item.CorrectedText, &item.ReviewNotes,
			&item.CreatedAt,
		); err != nil {
			return nil, &common.PersistenceError{Op: "scan item", Err: err}
		}
		if len(flags) > 0 {
			if err := json.Unmarshal(flags, &item.Flags); err != nil {
				return nil, &common.PersistenceError{Op: "decode flags", Err: err}
			}
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &item.Evidence); err != nil {
				return nil, &common.PersistenceError{Op: "decode evidence", Err: err}
			}
		}
		if len(structured) > 0 {
			item.StructuredData = json.RawMessage(structured)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &common.PersistenceError{Op: "iterate items", Err: err}
	}
	return items, nil
}
