package model

import "time"

// Driver represents a property-carrying driver under the federal HOS ruleset.
type Driver struct {
	ID            int64  `gorm:"primaryKey"`
	Name          string `gorm:"size:256;not null"`
	LicenseNumber string `gorm:"size:64"`
	// HomeTerminalTZ is an IANA zone name used for the midnight-to-midnight
	// day boundaries of the cycle calculation. Empty falls back to the
	// configured default.
	HomeTerminalTZ string `gorm:"size:64"`
	// CycleDays selects the 7-day/60-hour or 8-day/70-hour cycle. Zero falls
	// back to the configured carrier default.
	CycleDays int

	// Cached availability fields, refreshed by the rolling-window calculator
	// after every mutation. The interval log is the source of truth.
	AvailableDriveMins int
	AvailableDutyMins  int
	AvailableCycleMins int
	AvailabilityAsOf   time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Intervals []DutyInterval `gorm:"foreignKey:DriverID"`
}
