package model

import "time"

// DutyStatus is one of the four federal duty statuses.
type DutyStatus string

const (
	StatusOffDuty          DutyStatus = "OFF_DUTY"
	StatusSleeperBerth     DutyStatus = "SLEEPER_BERTH"
	StatusDriving          DutyStatus = "DRIVING"
	StatusOnDutyNotDriving DutyStatus = "ON_DUTY_NOT_DRIVING"
)

// Valid reports whether s is a recognized duty status.
func (s DutyStatus) Valid() bool {
	switch s {
	case StatusOffDuty, StatusSleeperBerth, StatusDriving, StatusOnDutyNotDriving:
		return true
	}
	return false
}

// Rest reports whether s counts toward an off-duty break or reset.
func (s DutyStatus) Rest() bool {
	return s == StatusOffDuty || s == StatusSleeperBerth
}

// OnDuty reports whether s accumulates against the cycle limit.
func (s DutyStatus) OnDuty() bool {
	return s == StatusDriving || s == StatusOnDutyNotDriving
}

// IntervalSource identifies where a duty interval came from.
type IntervalSource string

const (
	SourceELD      IntervalSource = "ELD"
	SourceManual   IntervalSource = "MANUAL"
	SourceInferred IntervalSource = "INFERRED"
)

// DutyInterval is one entry of a driver's append-only duty-status log.
// A nil EndTime marks the driver's current status. Corrections never mutate a
// row: a superseding interval is appended with SupersedesID set and the
// original is flagged Superseded, which excludes it from active timeline
// reconstruction while keeping it for audit.
type DutyInterval struct {
	ID           int64          `gorm:"primaryKey;autoIncrement"`
	DriverID     int64          `gorm:"index:idx_duty_intervals_driver_start;not null"`
	Status       DutyStatus     `gorm:"size:32;not null"`
	StartTime    time.Time      `gorm:"index:idx_duty_intervals_driver_start;not null"`
	EndTime      *time.Time     `gorm:"index"`
	Source       IntervalSource `gorm:"size:16;not null"`
	Location     string         `gorm:"size:256"`
	Odometer     int64
	EditReason   *string `gorm:"size:512"`
	SupersedesID *int64  `gorm:"index"`
	Superseded   bool    `gorm:"not null;default:false;index"`
	CreatedAt    time.Time `gorm:"not null"`

	// Associations
	Driver Driver `gorm:"constraint:OnDelete:CASCADE"`
}

// Open reports whether the interval is the driver's current status.
func (i DutyInterval) Open() bool { return i.EndTime == nil }

// EndOrNow returns the interval's end, or now for an open interval.
func (i DutyInterval) EndOrNow(now time.Time) time.Time {
	if i.EndTime != nil {
		return *i.EndTime
	}
	return now
}

// Covers reports whether t falls inside [StartTime, EndTime). Open intervals
// cover everything from their start onward.
func (i DutyInterval) Covers(t time.Time) bool {
	if t.Before(i.StartTime) {
		return false
	}
	return i.EndTime == nil || t.Before(*i.EndTime)
}
