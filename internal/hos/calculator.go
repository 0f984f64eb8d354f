package hos

import (
	"time"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
)

// Window derives the rolling-window state as of at from the driver's active
// intervals.
func Window(intervals []model.DutyInterval, at time.Time, rules Rules) ComplianceWindow {
	segs := buildSegments(intervals, at)
	runs := restRuns(segs)

	var w ComplianceWindow
	resetEnd, hasReset := latestResetBefore(runs, at)
	w.WindowStart, w.HasWindow = windowStartAt(segs, resetEnd, hasReset)
	if w.HasWindow {
		w.DrivenInWindow = sumDriving(segs, w.WindowStart, at)
		w.OnDutyElapsed = at.Sub(w.WindowStart)
		breakAnchor := w.WindowStart
		if b, ok := lastBreakEndBefore(runs, w.WindowStart, at); ok {
			breakAnchor = b
		}
		w.DrivingSinceBreak = sumDriving(segs, breakAnchor, at)
	}
	w.CycleUsed = cycleUsedAt(segs, runs, at, rules)
	return w
}

// ComputeAvailability computes the remaining drive, duty, and cycle minutes
// as of at. The drive clock is the minimum of the 11-hour limit and the
// 30-minute break gate; each figure is floored at zero.
func ComputeAvailability(intervals []model.DutyInterval, at time.Time, rules Rules) Availability {
	w := Window(intervals, at, rules)

	drive := DriveLimit
	duty := DutyWindowLimit
	if w.HasWindow {
		drive = DriveLimit - w.DrivenInWindow
		duty = DutyWindowLimit - w.OnDutyElapsed
		// Eight cumulative driving hours without a qualifying break shut the
		// drive clock until one is taken.
		if w.DrivingSinceBreak >= BreakTrigger {
			drive = 0
		}
	}
	cycle := rules.CycleLimit() - w.CycleUsed

	return Availability{
		DriveMins: flooredMinutes(drive),
		DutyMins:  flooredMinutes(duty),
		CycleMins: flooredMinutes(cycle),
	}
}

func flooredMinutes(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
