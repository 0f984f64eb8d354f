package hos

import (
	"fmt"
	"time"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
)

// Detect walks the driver's active intervals chronologically and returns a
// violation for every span where one of the four clocks ran negative while
// the driver was driving (or, for the cycle limit, on duty at all). The walk
// is deterministic: re-running it over an unchanged timeline yields the same
// rows, keyed by (driver, rule, window start), so persistence can upsert.
func Detect(driverID int64, intervals []model.DutyInterval, asOf, detectedAt time.Time, rules Rules) []model.Violation {
	segs := buildSegments(intervals, asOf)
	runs := restRuns(segs)

	var out []model.Violation
	emit := func(rule model.RuleCode, start, end time.Time, status model.DutyStatus, desc string) {
		severity := model.SeverityWarning
		if status == model.StatusDriving {
			severity = model.SeverityCritical
		}
		out = append(out, model.Violation{
			DriverID:    driverID,
			RuleCode:    rule,
			WindowStart: start,
			WindowEnd:   end,
			DetectedAt:  detectedAt,
			Severity:    severity,
			Description: desc,
		})
	}

	for _, seg := range segs {
		if !seg.Status.OnDuty() {
			continue
		}

		// Window clocks are evaluated against the duty window in force at
		// the segment's start; a segment can never straddle a qualifying
		// rest, so the window is constant across it.
		resetEnd, hasReset := latestResetBefore(runs, seg.Start)
		windowStart, hasWindow := windowStartAt(segs, resetEnd, hasReset)

		if hasWindow && seg.Status == model.StatusDriving {
			driven := sumDriving(segs, windowStart, seg.Start)
			if onset, ok := crossingInstant(seg, driven, DriveLimit); ok {
				emit(model.RuleDrive11Hr, onset, seg.End, seg.Status,
					fmt.Sprintf("drove past the 11-hour limit (window since %s)", windowStart.Format(time.RFC3339)))
			}

			breakAnchor := windowStart
			if b, ok := lastBreakEndBefore(runs, windowStart, seg.Start); ok {
				breakAnchor = b
			}
			sinceBreak := sumDriving(segs, breakAnchor, seg.Start)
			if onset, ok := crossingInstant(seg, sinceBreak, BreakTrigger); ok {
				emit(model.RuleBreak30Min, onset, seg.End, seg.Status,
					"drove past 8 cumulative hours without a 30-minute break")
			}
		}

		if hasWindow {
			elapsed := seg.Start.Sub(windowStart)
			if onset, ok := crossingInstant(seg, elapsed, DutyWindowLimit); ok {
				emit(model.RuleDuty14Hr, onset, seg.End, seg.Status,
					fmt.Sprintf("on duty past the 14-hour window opened at %s", windowStart.Format(time.RFC3339)))
			}
		}

		// The cycle clock's drop-off base shifts at every home-terminal
		// midnight, so evaluate per calendar-day slice.
		for _, sub := range splitAtMidnights(seg, rules.tz()) {
			used := cycleUsedAt(segs, runs, sub.Start, rules)
			if onset, ok := crossingInstant(sub, used, rules.CycleLimit()); ok {
				emit(model.RuleCycle6070Hr, onset, sub.End, sub.Status,
					fmt.Sprintf("exceeded the %d-hour/%d-day cycle limit", int(rules.CycleLimit().Hours()), rules.days()))
			}
		}
	}
	return out
}

// crossingInstant returns the instant within the segment at which the
// counter, starting at used and accumulating one-for-one with time, crosses
// the limit. Reaching the limit exactly at the segment's end is not a
// crossing.
func crossingInstant(seg segment, used, limit time.Duration) (time.Time, bool) {
	if used >= limit {
		return seg.Start, true
	}
	onset := seg.Start.Add(limit - used)
	if onset.Before(seg.End) {
		return onset, true
	}
	return time.Time{}, false
}

// splitAtMidnights slices the segment at each midnight of loc that falls
// strictly inside it.
func splitAtMidnights(seg segment, loc *time.Location) []segment {
	var out []segment
	cur := seg.Start
	for {
		next := midnight(cur, loc).AddDate(0, 0, 1)
		if !next.Before(seg.End) {
			out = append(out, segment{Status: seg.Status, Start: cur, End: seg.End})
			return out
		}
		out = append(out, segment{Status: seg.Status, Start: cur, End: next})
		cur = next
	}
}
