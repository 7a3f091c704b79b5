package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuplane/docintel/internal/common"
	"github.com/docuplane/docintel/internal/ingest"
)

// maxUploadBytes caps the multipart body; the largest vendor limit is 20MB
// so anything bigger would be rejected downstream anyway.
const maxUploadBytes = 32 << 20

// ingestDocument accepts a multipart document submission and answers 202
// with the job acceptance. Processing happens asynchronously.
func (s *Server) ingestDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, common.NewValidationError("file", "multipart field \"file\" is required: %v", err))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		writeError(c, common.NewValidationError("file", "open upload: %v", err))
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		writeError(c, common.NewValidationError("file", "read upload: %v", err))
		return
	}

	integrationID, err := uuid.Parse(c.PostForm("integration_id"))
	if err != nil {
		writeError(c, common.NewValidationError("integration_id", "must be a UUID"))
		return
	}
	profileID, err := uuid.Parse(c.PostForm("document_profile_id"))
	if err != nil {
		writeError(c, common.NewValidationError("document_profile_id", "must be a UUID"))
		return
	}

	req := ingest.IngestRequest{
		TenantID:          tenantFrom(c),
		IntegrationID:     integrationID,
		DocumentProfileID: profileID,
		Filename:          fileHeader.Filename,
		MimeType:          fileHeader.Header.Get("Content-Type"),
		Content:           content,
	}
	if raw := c.PostForm("facility_id"); raw != "" {
		facilityID, err := uuid.Parse(raw)
		if err != nil {
			writeError(c, common.NewValidationError("facility_id", "must be a UUID"))
			return
		}
		req.FacilityID = &facilityID
	}
	if raw := c.PostForm("external_ref"); raw != "" {
		req.ExternalRef = &raw
	}
	if raw := c.PostForm("retention_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			writeError(c, common.NewValidationError("retention_days", "must be a positive integer"))
			return
		}
		req.RetentionDays = days
	}

	acc, err := s.ingestSvc.IngestDocument(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, acc)
}
