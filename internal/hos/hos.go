// Package hos implements the federal hours-of-service arithmetic for
// property-carrying drivers: the rolling-window availability calculator and
// the violation detector. Both are pure computations over an already-fetched
// slice of active duty intervals; nothing in this package touches storage.
package hos

import "time"

// Federal limits for property-carrying drivers.
const (
	// DriveLimit is the 11-hour driving limit within a duty window.
	DriveLimit = 11 * time.Hour
	// DutyWindowLimit is the 14-hour on-duty window.
	DutyWindowLimit = 14 * time.Hour
	// BreakTrigger is the cumulative driving after which a break is required.
	BreakTrigger = 8 * time.Hour
	// MinBreak is the shortest rest period that satisfies the break rule.
	MinBreak = 30 * time.Minute
	// QualifyingRest is the consecutive off-duty time that resets the duty
	// window.
	QualifyingRest = 10 * time.Hour
	// SplitLongSleeper and SplitShortRest bound the 7/3 and 8/2 sleeper-berth
	// split: a sleeper period of at least seven hours paired with another
	// rest period of at least two, together covering the full ten.
	SplitLongSleeper = 7 * time.Hour
	SplitShortRest   = 2 * time.Hour
	// CycleRestart is the consecutive off-duty time that restarts the
	// 60/70-hour cycle.
	CycleRestart = 34 * time.Hour

	cycleLimit7Day = 60 * time.Hour
	cycleLimit8Day = 70 * time.Hour
)

// Rules holds the carrier-configurable rule parameters.
type Rules struct {
	// CycleDays is 7 (60-hour limit) or 8 (70-hour limit).
	CycleDays int
	// HomeTZ supplies the midnight-to-midnight day boundaries of the cycle
	// window. Nil means UTC.
	HomeTZ *time.Location
}

// CycleLimit returns the on-duty budget for the configured cycle length.
func (r Rules) CycleLimit() time.Duration {
	if r.CycleDays == 7 {
		return cycleLimit7Day
	}
	return cycleLimit8Day
}

func (r Rules) days() int {
	if r.CycleDays == 7 {
		return 7
	}
	return 8
}

func (r Rules) tz() *time.Location {
	if r.HomeTZ == nil {
		return time.UTC
	}
	return r.HomeTZ
}

// Availability is the driver's remaining legal minutes per clock, each floored
// at zero and never above its static limit.
type Availability struct {
	DriveMins int `json:"drive_mins"`
	DutyMins  int `json:"duty_mins"`
	CycleMins int `json:"cycle_mins"`
}

// CanDrive reports whether all three clocks allow at least the required
// minutes.
func (a Availability) CanDrive(requiredMins int) bool {
	return a.DriveMins >= requiredMins && a.DutyMins >= requiredMins && a.CycleMins >= requiredMins
}

// ComplianceWindow is the rolling-window state as of an instant, the
// intermediate figures both the calculator and the detector derive from.
type ComplianceWindow struct {
	// WindowStart is the start of the current 14-hour duty window; HasWindow
	// is false when the driver has had no on-duty time since the last
	// qualifying rest.
	WindowStart time.Time
	HasWindow   bool

	DrivenInWindow    time.Duration
	OnDutyElapsed     time.Duration
	DrivingSinceBreak time.Duration
	CycleUsed         time.Duration
}
