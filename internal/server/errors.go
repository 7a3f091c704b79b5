package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docuplane/docintel/internal/common"
)

// writeError maps the error taxonomy onto HTTP statuses. Validation problems
// are the caller's fault; storage problems are transient and retryable.
func writeError(c *gin.Context, err error) {
	kind := common.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "validation":
		status = http.StatusBadRequest
	case "authorization":
		status = http.StatusForbidden
	case "storage":
		status = http.StatusServiceUnavailable
	case "ocr_provider":
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  kind,
	})
}
