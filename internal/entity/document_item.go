package entity

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// BBox is a rectangle on a page, in pixel coordinates with the origin in the
// upper-left corner.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Evidence records where on the source document an item was found. Every
// item must carry evidence; an item without it is invalid.
type Evidence struct {
	Page      int     `json:"page"` // 1-indexed
	BBox      BBox    `json:"bbox"`
	ImageCrop *string `json:"image_crop,omitempty"` // storage reference, optional
}

// Validate rejects evidence that does not point at a real page region.
func (e Evidence) Validate() error {
	if e.Page < 1 {
		return errors.New("evidence page must be >= 1")
	}
	if e.BBox.Width <= 0 || e.BBox.Height <= 0 {
		return errors.New("evidence bbox must have positive dimensions")
	}
	return nil
}

// FlagResult is the outcome of one flag detector for one item.
type FlagResult struct {
	Detected   bool    `json:"detected"`
	Confidence float32 `json:"confidence"`
}

// DocumentItem is one extracted structured unit, generic across document
// domains. item_type values come from the owning profile, never from a
// compiled-in enum.
type DocumentItem struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	DocumentJobID uuid.UUID `json:"document_job_id"`
	ItemIndex     int       `json:"item_index"`

	ItemType string `json:"item_type"`

	// OCR layer, immutable once written.
	RawText       string  `json:"raw_text"`
	OCRConfidence float32 `json:"ocr_confidence"`
	OCRProvider   string  `json:"ocr_provider"`

	// Optional normalization layer.
	NormalizedText          *string  `json:"normalized_text,omitempty"`
	NormalizationConfidence *float32 `json:"normalization_confidence,omitempty"`

	ExtractionConfidence float32 `json:"extraction_confidence"`

	Flags    map[string]FlagResult `json:"flags,omitempty"`
	Evidence Evidence              `json:"evidence"`

	// StructuredData is an open, domain-specific payload. The core stores
	// and returns it without inspecting its shape.
	StructuredData json.RawMessage `json:"structured_data,omitempty"`

	// Human-review layer, written only by the external review workflow.
	IsReviewed       bool       `json:"is_reviewed"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	ReviewedByUserID *uuid.UUID `json:"reviewed_by_user_id,omitempty"`
	CorrectedText    *string    `json:"corrected_text,omitempty"`
	ReviewNotes      *string    `json:"review_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Confidence assembles the item's per-layer scores.
func (i *DocumentItem) Confidence() ConfidenceLayers {
	return ConfidenceLayers{
		OCR:           i.OCRConfidence,
		Extraction:    i.ExtractionConfidence,
		Normalization: i.NormalizationConfidence,
		Flags:         i.Flags,
	}
}
