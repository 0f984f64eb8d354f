package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GetAvailability handles GET /api/drivers/{driver_id}/availability. Without
// an "at" parameter it evaluates the clocks as of now; with one it replays
// the timeline to that instant.
func (h *Handler) GetAvailability(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("driver_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID"})
		return
	}

	var asOf time.Time
	if atParam := c.Query("at"); atParam != "" {
		asOf, err = time.Parse(time.RFC3339, atParam)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'at' timestamp format. Use RFC3339."})
			return
		}
	}

	avail, err := h.engine.GetAvailability(c.Request.Context(), driverID, asOf)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, avail)
}

// CanDrive handles GET /api/drivers/{driver_id}/can_drive?required_mins=N.
func (h *Handler) CanDrive(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("driver_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID"})
		return
	}

	requiredMins, err := strconv.Atoi(c.Query("required_mins"))
	if err != nil || requiredMins < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "required_mins must be a non-negative integer"})
		return
	}

	ok, err := h.engine.CanDrive(c.Request.Context(), driverID, requiredMins)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"can_drive": ok})
}
