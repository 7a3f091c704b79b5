package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docuplane/docintel/constants"
	"github.com/docuplane/docintel/internal/async"
	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/entity"
	"github.com/docuplane/docintel/internal/extract"
	"github.com/docuplane/docintel/internal/jobs"
	"github.com/docuplane/docintel/internal/ocr"
	"github.com/docuplane/docintel/internal/repository"
	"github.com/docuplane/docintel/internal/storage"
)

// Processor runs one document job end to end: claim it into processing,
// fetch the stored file, OCR, extract items against the job's profile,
// persist the item set, and settle the job into a terminal status.
type Processor struct {
	logger          *slog.Logger
	jobsRepo        repository.DocumentJobRepository
	itemsRepo       repository.DocumentItemRepository
	profilesRepo    repository.DocumentProfileRepository
	store           storage.Service
	provider        ocr.Provider
	engine          *extract.Engine
	transitioner    *jobs.Transitioner
	reviewThreshold float32
}

func NewProcessor(
	logger *slog.Logger,
	jobsRepo repository.DocumentJobRepository,
	itemsRepo repository.DocumentItemRepository,
	profilesRepo repository.DocumentProfileRepository,
	store storage.Service,
	provider ocr.Provider,
	engine *extract.Engine,
	reviewThreshold float32,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if reviewThreshold <= 0 || reviewThreshold > 1 {
		reviewThreshold = 0.60
	}
	return &Processor{
		logger:          logger,
		jobsRepo:        jobsRepo,
		itemsRepo:       itemsRepo,
		profilesRepo:    profilesRepo,
		store:           store,
		provider:        provider,
		engine:          engine,
		transitioner:    jobs.NewTransitioner(jobsRepo, logger),
		reviewThreshold: reviewThreshold,
	}
}

// ProcessJob drives the job through the pipeline. Terminal jobs are skipped
// without error, which makes stale redeliveries harmless. A job still in
// processing is resumed only on a redelivery, never on a first delivery.
func (p *Processor) ProcessJob(ctx context.Context, msg async.Job) error {
	jobID, tenantID := msg.JobID, msg.TenantID
	job, err := p.jobsRepo.GetByID(ctx, tenantID, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found for tenant %s", jobID, tenantID)
	}
	ctx = common.WithCorrelationID(ctx, job.CorrelationID)
	ctx = common.WithTenantID(ctx, tenantID)

	switch job.Status {
	case constants.JobStatusPending:
		// Claim the job. A conflict means another delivery already owns it.
		err = p.transitioner.To(ctx, job, constants.JobStatusProcessing,
			map[string]any{"provider": p.provider.Name(), "attempt": msg.Attempt}, nil)
		if err != nil {
			if errors.Is(err, repository.ErrStatusConflict) {
				p.logger.Info("job already claimed elsewhere, skipping", "job_id", jobID)
				return nil
			}
			return fmt.Errorf("claim job %s: %w", jobID, err)
		}
	case constants.JobStatusProcessing:
		if msg.Attempt == 0 {
			p.logger.Info("job already in processing, skipping", "job_id", jobID)
			return nil
		}
		p.logger.Info("resuming job after retryable failure",
			"job_id", jobID, "attempt", msg.Attempt)
	default:
		p.logger.Info("job already settled, skipping",
			"job_id", jobID, "status", job.Status)
		return nil
	}

	started := time.Now()
	items, procErr := p.run(ctx, job)
	if procErr != nil {
		p.logger.Error("processing failed",
			"job_id", jobID, "error", procErr, "error_kind", common.ErrorKind(procErr))
		if common.IsRetryable(procErr) && !msg.Final {
			// Leave the job in processing; the queue redelivers and the
			// next attempt resumes it.
			return procErr
		}
		return p.fail(ctx, job, procErr)
	}

	mean := meanOverallConfidence(items)
	final := constants.JobStatusCompleted
	event := map[string]any{
		"item_count":      len(items),
		"mean_confidence": mean,
		"duration_ms":     time.Since(started).Milliseconds(),
	}
	if len(items) > 0 && mean < p.reviewThreshold {
		final = constants.JobStatusNeedsReview
		event["review_threshold"] = p.reviewThreshold
	}
	if err := p.transitioner.To(ctx, job, final, event, nil); err != nil {
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}
	p.logger.Info("job settled",
		"job_id", jobID, "status", final, "items", len(items), "mean_confidence", mean)
	return nil
}

// run executes the OCR and extraction stages and persists the item set.
func (p *Processor) run(ctx context.Context, job *entity.DocumentJob) ([]entity.DocumentItem, error) {
	profile, err := p.profilesRepo.GetByID(ctx, job.DocumentProfileID, job.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, common.NewValidationError("document_profile_id",
			"profile %s not found", job.DocumentProfileID)
	}

	data, err := p.store.Download(ctx, job.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", job.StoragePath, err)
	}

	res, err := p.provider.Recognize(ctx, data, job.MimeType)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	p.logger.Debug("ocr finished",
		"job_id", job.ID, "provider", res.Provider, "pages", len(res.Pages),
		"chars", len(res.Text()), "duration_ms", res.Duration.Milliseconds())

	items, err := p.engine.Extract(res, profile, job.TenantID, job.ID)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	if err := p.itemsRepo.ReplaceForJob(ctx, job.TenantID, job.ID, items); err != nil {
		return nil, fmt.Errorf("persist items: %w", err)
	}
	return items, nil
}

// fail moves the job to failed, recording the classified error on both the
// job row and the audit event.
func (p *Processor) fail(ctx context.Context, job *entity.DocumentJob, procErr error) error {
	msg := procErr.Error()
	event := map[string]any{
		"error":      msg,
		"error_kind": common.ErrorKind(procErr),
		"retryable":  common.IsRetryable(procErr),
	}
	if err := p.transitioner.To(ctx, job, constants.JobStatusFailed, event, &msg); err != nil {
		return fmt.Errorf("record failure for job %s: %w", job.ID, err)
	}
	// Surface the original error so the queue can decide on redelivery.
	return procErr
}

func meanOverallConfidence(items []entity.DocumentItem) float32 {
	if len(items) == 0 {
		return 1
	}
	var sum float32
	for i := range items {
		sum += items[i].Confidence().Overall()
	}
	return sum / float32(len(items))
}
