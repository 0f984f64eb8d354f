package model

import "time"

// RuleCode identifies which HOS limit a violation breached.
type RuleCode string

const (
	RuleDrive11Hr   RuleCode = "DRIVE_11HR"
	RuleDuty14Hr    RuleCode = "DUTY_14HR"
	RuleBreak30Min  RuleCode = "BREAK_30MIN"
	RuleCycle6070Hr RuleCode = "CYCLE_60_70HR"
)

// Severity grades a violation by what the driver was doing at the time.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// Violation records an instant where an HOS clock went negative. Violations
// are facts about a past computation: immutable once created except for the
// acknowledged flag, and never deleted even when a later amendment removes
// the underlying condition. Detection is idempotent, keyed by
// (driver_id, rule_code, window_start).
type Violation struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	DriverID     int64     `gorm:"uniqueIndex:idx_violations_key;not null"`
	RuleCode     RuleCode  `gorm:"size:32;uniqueIndex:idx_violations_key;not null"`
	WindowStart  time.Time `gorm:"uniqueIndex:idx_violations_key;not null"`
	WindowEnd    time.Time `gorm:"not null"`
	DetectedAt   time.Time `gorm:"not null"`
	Severity     Severity  `gorm:"size:16;not null"`
	Description  string    `gorm:"size:512"`
	Acknowledged bool      `gorm:"not null;default:false;index"`
}
