package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/timeline"
)

// logResponse is the wire shape of one duty interval.
type logResponse struct {
	ID           int64      `json:"id"`
	DriverID     int64      `json:"driverId"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	Source       string     `json:"source"`
	Location     string     `json:"location,omitempty"`
	Odometer     int64      `json:"odometer,omitempty"`
	EditReason   *string    `json:"editReason,omitempty"`
	SupersedesID *int64     `json:"supersedesId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func toLogResponse(iv model.DutyInterval) logResponse {
	return logResponse{
		ID:           iv.ID,
		DriverID:     iv.DriverID,
		Status:       string(iv.Status),
		StartTime:    iv.StartTime,
		EndTime:      iv.EndTime,
		Source:       string(iv.Source),
		Location:     iv.Location,
		Odometer:     iv.Odometer,
		EditReason:   iv.EditReason,
		SupersedesID: iv.SupersedesID,
		CreatedAt:    iv.CreatedAt,
	}
}

// GetLogs handles GET /api/drivers/{driver_id}/logs, returning the active
// timeline as recorded at the optional "at" instant.
func (h *Handler) GetLogs(c *gin.Context) {
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

	intervals, err := h.engine.ReconstructTimeline(c.Request.Context(), driverID, asOf)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}

	response := make([]logResponse, 0, len(intervals))
	for _, iv := range intervals {
		response = append(response, toLogResponse(iv))
	}
	c.JSON(http.StatusOK, response)
}

type reportStatusRequest struct {
	Status   string    `json:"status" binding:"required"`
	AtTime   time.Time `json:"at_time" binding:"required"`
	Source   string    `json:"source" binding:"required"`
	Location string    `json:"location"`
	Odometer int64     `json:"odometer"`
}

// ReportStatus handles POST /api/drivers/{driver_id}/status.
func (h *Handler) ReportStatus(c *gin.Context) {
	driverID, err := strconv.ParseInt(c.Param("driver_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID"})
		return
	}

	var req reportStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	interval, err := h.engine.ReportStatusChange(
		c.Request.Context(),
		driverID,
		model.DutyStatus(req.Status),
		req.AtTime,
		model.IntervalSource(req.Source),
		timeline.Metadata{Location: req.Location, Odometer: req.Odometer},
	)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toLogResponse(interval))
}

type amendRequest struct {
	Status     string     `json:"status" binding:"required"`
	StartTime  time.Time  `json:"start_time" binding:"required"`
	EndTime    *time.Time `json:"end_time"`
	EditReason string     `json:"edit_reason" binding:"required"`
}

// AmendLog handles POST /api/logs/{log_id}/amend.
func (h *Handler) AmendLog(c *gin.Context) {
	logID, err := strconv.ParseInt(c.Param("log_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid log ID"})
		return
	}

	var req amendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	replacement, err := h.engine.AmendStatusChange(
		c.Request.Context(),
		logID,
		model.DutyStatus(req.Status),
		req.StartTime,
		req.EndTime,
		req.EditReason,
	)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toLogResponse(replacement))
}
