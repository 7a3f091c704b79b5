package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/docuplane/docintel/constants"
)

// DocumentJob represents one uploaded document for data transfer between
// layers. tenant_id is immutable after creation; every read and write of the
// job is scoped by it.
type DocumentJob struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	IntegrationID uuid.UUID  `json:"integration_id"`
	FacilityID    *uuid.UUID `json:"facility_id,omitempty"`

	DocumentProfileID uuid.UUID `json:"document_profile_id"`

	OriginalFilename     string `json:"original_filename"`
	MimeType             string `json:"mime_type"`
	FileSizeBytes        int64  `json:"file_size_bytes"`
	StoragePath          string `json:"storage_path"`
	StorageRetentionDays int    `json:"storage_retention_days"`
	ContentHash          []byte `json:"content_hash,omitempty"`
	PageCount            int    `json:"page_count,omitempty"`

	Status        constants.JobStatus `json:"status"`
	CorrelationID uuid.UUID           `json:"correlation_id"`
	ExternalRef   *string             `json:"external_ref,omitempty"`
	ErrorMessage  *string             `json:"error_message,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
