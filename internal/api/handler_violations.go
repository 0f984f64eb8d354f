package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetViolations handles GET /api/drivers/{driver_id}/violations. By default
// only unacknowledged violations are returned; ?include_acknowledged=true
// includes the full history.
func (h *Handler) GetViolations(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("driver_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID"})
		return
	}

	if c.Query("include_acknowledged") == "true" {
		violations, err := h.store.ListViolations(c.Request.Context(), driverID, nil)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve violations"})
			return
		}
		c.JSON(http.StatusOK, violations)
		return
	}

	violations, err := h.engine.ListUnacknowledged(c.Request.Context(), driverID)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, violations)
}

// AcknowledgeViolation handles POST /api/violations/{violation_id}/acknowledge.
func (h *Handler) AcknowledgeViolation(c *gin.Context) {
	violationID, err := strconv.ParseInt(c.Param("violation_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid violation ID"})
		return
	}

	if err := h.engine.Acknowledge(c.Request.Context(), violationID); err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
