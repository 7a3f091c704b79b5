package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/async"
	"github.com/docuplane/docintel/internal/audit"
	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
	"github.com/docuplane/docintel/internal/repository"
	"github.com/docuplane/docintel/internal/storage"
)

const defaultRetentionDays = 90

// Service accepts documents into the pipeline. It validates, uploads, creates
// the job row, and enqueues processing; it never runs OCR itself.
type Service struct {
	logger   *slog.Logger
	profiles repository.DocumentProfileRepository
	jobs     repository.DocumentJobRepository
	store    storage.Service
	audit    *audit.Service
	queue    async.Queue
}

func NewService(
	logger *slog.Logger,
	profiles repository.DocumentProfileRepository,
	jobs repository.DocumentJobRepository,
	store storage.Service,
	auditSvc *audit.Service,
	queue async.Queue,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		profiles: profiles,
		jobs:     jobs,
		store:    store,
		audit:    auditSvc,
		queue:    queue,
	}
}

// IngestRequest carries one document submission.
type IngestRequest struct {
	TenantID          uuid.UUID
	IntegrationID     uuid.UUID
	FacilityID        *uuid.UUID
	DocumentProfileID uuid.UUID
	Filename          string
	MimeType          string
	Content           []byte
	RetentionDays     int
	ExternalRef       *string
}

// Acceptance is the 202-style response: the job exists and is queued, nothing
// has been processed yet.
type Acceptance struct {
	JobID                      uuid.UUID           `json:"job_id"`
	Status                     constants.JobStatus `json:"status"`
	CorrelationID              uuid.UUID           `json:"correlation_id"`
	EstimatedCompletionSeconds int                 `json:"estimated_completion_seconds"`
}

// IngestDocument validates the submission, uploads the file, creates the
// pending job, records DOCUMENT_RECEIVED, and enqueues processing. All
// validation happens before the upload; the job row is only created after
// the upload succeeded, so a storage failure leaves no partial state.
func (s *Service) IngestDocument(ctx context.Context, req IngestRequest) (*Acceptance, error) {
	if req.TenantID == uuid.Nil {
		return nil, common.NewValidationError("tenant_id", "tenant_id is required")
	}
	if req.IntegrationID == uuid.Nil {
		return nil, common.NewValidationError("integration_id", "integration_id is required")
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, common.NewValidationError("filename", "filename is required")
	}
	if len(req.Content) == 0 {
		return nil, common.NewValidationError("content", "file content is empty")
	}

	declared := constants.NormalizeMIMEType(req.MimeType)
	if !constants.IsAllowedMIMEType(declared) {
		return nil, common.NewValidationError("mime_type", "mime type %q is not allowed", req.MimeType)
	}
	// The declared type is advisory only; the bytes decide.
	if sniffed := mimetype.Detect(req.Content); !sniffed.Is(declared) {
		return nil, common.NewValidationError("content",
			"file content is %s, not the declared %s", sniffed.String(), declared)
	}

	profile, err := s.profiles.GetByID(ctx, req.DocumentProfileID, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil || !profile.Active {
		return nil, common.NewValidationError("document_profile_id",
			"profile %s not found or inactive", req.DocumentProfileID)
	}

	pageCount := 1
	if constants.IsPDFMIMEType(declared) {
		pageCount = pdfPageCount(req.Content)
	}

	storagePath, err := s.store.UploadFile(ctx, req.TenantID, req.IntegrationID,
		req.Content, req.Filename, declared)
	if err != nil {
		s.logger.Error("upload failed", "tenant_id", req.TenantID, "filename", req.Filename, "error", err)
		return nil, err
	}

	retention := req.RetentionDays
	if retention <= 0 {
		retention = profile.RetentionDays
	}
	if retention <= 0 {
		retention = defaultRetentionDays
	}

	correlationID := uuid.New()
	job := &entity.DocumentJob{
		ID:                   uuid.New(),
		TenantID:             req.TenantID,
		IntegrationID:        req.IntegrationID,
		FacilityID:           req.FacilityID,
		DocumentProfileID:    req.DocumentProfileID,
		OriginalFilename:     req.Filename,
		MimeType:             declared,
		FileSizeBytes:        int64(len(req.Content)),
		StoragePath:          storagePath,
		StorageRetentionDays: retention,
		ContentHash:          s.store.ContentHash(req.Content),
		PageCount:            pageCount,
		Status:               constants.JobStatusPending,
		CorrelationID:        correlationID,
		ExternalRef:          req.ExternalRef,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	err = s.audit.EmitJobEvent(ctx, constants.EventDocumentReceived,
		job.TenantID, job.CorrelationID, job.ID, "ingest", map[string]any{
			"filename":   job.OriginalFilename,
			"mime_type":  job.MimeType,
			"size_bytes": job.FileSizeBytes,
			"page_count": job.PageCount,
		})
	if err != nil {
		return nil, fmt.Errorf("record document receipt: %w", err)
	}

	err = s.queue.Enqueue(ctx, constants.TopicDocumentProcess, async.Job{
		JobID:         job.ID,
		TenantID:      job.TenantID,
		CorrelationID: job.CorrelationID,
		SubmittedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	s.logger.Info("document accepted",
		"job_id", job.ID, "tenant_id", job.TenantID, "profile_id", job.DocumentProfileID,
		"mime_type", job.MimeType, "pages", job.PageCount, "correlation_id", job.CorrelationID)

	return &Acceptance{
		JobID:                      job.ID,
		Status:                     job.Status,
		CorrelationID:              job.CorrelationID,
		EstimatedCompletionSeconds: estimateSeconds(job.FileSizeBytes, job.PageCount),
	}, nil
}

// RequeueStalePending re-enqueues pending jobs older than the given age.
// A job can be left stranded in pending when the submission failed between
// creating the row and the enqueue; the sweep picks those up so every
// accepted document is eventually processed. Re-enqueueing a job whose
// message is still in flight is harmless, the worker skips duplicates.
func (s *Service) RequeueStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.jobs.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale pending jobs: %w", err)
	}

	requeued := 0
	for _, job := range stale {
		err := s.queue.Enqueue(ctx, constants.TopicDocumentProcess, async.Job{
			JobID:         job.ID,
			TenantID:      job.TenantID,
			CorrelationID: job.CorrelationID,
			SubmittedAt:   time.Now().UTC(),
		})
		if err != nil {
			return requeued, fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		s.logger.Warn("requeued stale pending job",
			"job_id", job.ID, "tenant_id", job.TenantID, "created_at", job.CreatedAt)
		requeued++
	}
	return requeued, nil
}

// pdfPageCount is a best-effort count for the completion estimate. A document
// that defeats the reader still ingests; the count just falls back to 1. The
// parser panics on some malformed files, hence the recover.
func pdfPageCount(content []byte) (n int) {
	n = 1
	defer func() { _ = recover() }()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return n
	}
	if pages := r.NumPage(); pages > 0 {
		n = pages
	}
	return n
}

// estimateSeconds is a coarse queue-plus-OCR estimate from size and pages.
func estimateSeconds(sizeBytes int64, pages int) int {
	if pages < 1 {
		pages = 1
	}
	est := 5 + 3*pages + int(sizeBytes/(512*1024))
	if est > 600 {
		est = 600
	}
	return est
}
