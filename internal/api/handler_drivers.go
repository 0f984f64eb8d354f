package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
)

// DriverResponse represents the API response for a single driver.
type DriverResponse struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	LicenseNumber      string    `json:"licenseNumber"`
	AvailableDriveMins int       `json:"availableDriveMins"`
	AvailableDutyMins  int       `json:"availableDutyMins"`
	AvailableCycleMins int       `json:"availableCycleMins"`
	AvailabilityAsOf   time.Time `json:"availabilityAsOf"`
	OpenViolations     int64     `json:"openViolations"`
}

// GetDrivers handles the GET /api/drivers request.
func (h *Handler) GetDrivers(c *gin.Context) {
	drivers, err := h.store.ListDrivers(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve drivers"})
		return
	}

	// One aggregate pass for the open violation counts.
	type aggRow struct {
		DriverID int64
		Open     int64
	}
	var aggs []aggRow
	if err := h.store.DB().
		Model(&model.Violation{}).
		Select("driver_id as driver_id, COUNT(*) as open").
		Where("acknowledged = ?", false).
		Group("driver_id").
		Scan(&aggs).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate violations"})
		return
	}

	aggMap := make(map[int64]int64, len(aggs))
	for _, a := range aggs {
		aggMap[a.DriverID] = a.Open
	}

	responses := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		responses = append(responses, DriverResponse{
			ID:                 d.ID,
			Name:               d.Name,
			LicenseNumber:      d.LicenseNumber,
			AvailableDriveMins: d.AvailableDriveMins,
			AvailableDutyMins:  d.AvailableDutyMins,
			AvailableCycleMins: d.AvailableCycleMins,
			AvailabilityAsOf:   d.AvailabilityAsOf,
			OpenViolations:     aggMap[d.ID],
		})
	}
	c.JSON(http.StatusOK, responses)
}
