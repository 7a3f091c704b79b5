package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuplane/docintel/internal/common"
)

const tenantHeader = "X-Tenant-ID"

const tenantKey = "tenant_id"

// tenantRequired rejects requests without a parseable tenant header. The
// gateway in front of this service authenticates and sets the header.
func tenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(tenantHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "missing " + tenantHeader + " header"})
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": tenantHeader + " must be a UUID"})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Request = c.Request.WithContext(
			common.WithTenantID(c.Request.Context(), tenantID))
		c.Next()
	}
}

func tenantFrom(c *gin.Context) uuid.UUID {
	v, _ := c.Get(tenantKey)
	id, _ := v.(uuid.UUID)
	return id
}
