package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuplane/docintel/internal/entity"
)

// DocumentJobResponse is the read projection of a job.
type DocumentJobResponse struct {
	JobID            uuid.UUID  `json:"job_id"`
	Status           string     `json:"status"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	PageCount        int        `json:"page_count"`
	CorrelationID    uuid.UUID  `json:"correlation_id"`
	ExternalRef      *string    `json:"external_ref,omitempty"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// DocumentItemResponse is the read projection of one extracted item.
type DocumentItemResponse struct {
	ItemID            uuid.UUID                    `json:"item_id"`
	Index             int                          `json:"index"`
	ItemType          string                       `json:"item_type"`
	RawText           string                       `json:"raw_text"`
	NormalizedText    *string                      `json:"normalized_text,omitempty"`
	OverallConfidence float32                      `json:"overall_confidence"`
	Confidence        confidenceResponse           `json:"confidence"`
	Flags             map[string]entity.FlagResult `json:"flags,omitempty"`
	Evidence          entity.Evidence              `json:"evidence"`
	StructuredData    json.RawMessage              `json:"structured_data,omitempty"`
	Review            reviewResponse               `json:"review"`
}

type confidenceResponse struct {
	OCR           float32  `json:"ocr"`
	Extraction    float32  `json:"extraction"`
	Normalization *float32 `json:"normalization,omitempty"`
}

type reviewResponse struct {
	IsReviewed    bool       `json:"is_reviewed"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	CorrectedText *string    `json:"corrected_text,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

func (s *Server) getJob(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, DocumentJobResponse{
		JobID:            job.ID,
		Status:           string(job.Status),
		OriginalFilename: job.OriginalFilename,
		MimeType:         job.MimeType,
		PageCount:        job.PageCount,
		CorrelationID:    job.CorrelationID,
		ExternalRef:      job.ExternalRef,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        job.CreatedAt,
		FinishedAt:       job.FinishedAt,
	})
}

func (s *Server) listJobItems(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	items, err := s.itemsRepo.GetByJobID(c.Request.Context(), job.ID, job.TenantID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]DocumentItemResponse, 0, len(items))
	for i := range items {
		it := &items[i]
		out = append(out, DocumentItemResponse{
			ItemID:            it.ID,
			Index:             it.ItemIndex,
			ItemType:          it.ItemType,
			RawText:           it.RawText,
			NormalizedText:    it.NormalizedText,
			OverallConfidence: it.Confidence().Overall(),
			Confidence: confidenceResponse{
				OCR:           it.OCRConfidence,
				Extraction:    it.ExtractionConfidence,
				Normalization: it.NormalizationConfidence,
			},
			Flags:          it.Flags,
			Evidence:       it.Evidence,
			StructuredData: it.StructuredData,
			Review: reviewResponse{
				IsReviewed:    it.IsReviewed,
				ReviewedAt:    it.ReviewedAt,
				CorrectedText: it.CorrectedText,
				Notes:         it.ReviewNotes,
			},
		})
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "items": out})
}

func (s *Server) listJobEvents(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	events, err := s.auditSvc.Trail(c.Request.Context(), job.TenantID, job.CorrelationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "events": events})
}

func (s *Server) exportJob(c *gin.Context) {
	job, ok := s.loadJob(c)
	if !ok {
		return
	}
	data, err := s.exportSvc.ExportJobItemsXLSX(c.Request.Context(), job.TenantID, job.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="items-`+job.ID.String()+`.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// loadJob resolves the :id route param against the tenant and answers 404
// itself when the job is absent.
func (s *Server) loadJob(c *gin.Context) (*entity.DocumentJob, bool) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id must be a UUID"})
		return nil, false
	}
	job, err := s.jobsRepo.GetByID(c.Request.Context(), tenantFrom(c), jobID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, false
	}
	return job, true
}
