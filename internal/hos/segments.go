package hos

import (
	"time"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
)

// segment is a clipped, half-open [Start, End) span of a single duty status.
type segment struct {
	Status model.DutyStatus
	Start  time.Time
	End    time.Time
}

func (s segment) dur() time.Duration { return s.End.Sub(s.Start) }

// buildSegments converts a driver's active intervals, assumed ordered and
// non-overlapping, into contiguous segments clipped at upTo. The open
// interval is clipped to upTo as well. Gaps between recorded intervals count
// as off-duty; the span before the first recorded interval stays unknown and
// produces no segment.
func buildSegments(intervals []model.DutyInterval, upTo time.Time) []segment {
	segs := make([]segment, 0, len(intervals))
	for _, iv := range intervals {
		start := iv.StartTime
		end := iv.EndOrNow(upTo)
		if end.After(upTo) {
			end = upTo
		}
		if !end.After(start) {
			continue
		}
		if n := len(segs); n > 0 && start.After(segs[n-1].End) {
			segs = append(segs, segment{Status: model.StatusOffDuty, Start: segs[n-1].End, End: start})
		}
		segs = append(segs, segment{Status: iv.Status, Start: start, End: end})
	}
	return segs
}

// restRun is a maximal run of consecutive rest (off-duty or sleeper-berth)
// segments. SleeperStretch is the longest consecutive sleeper-berth span
// inside the run, which decides split-pair eligibility.
type restRun struct {
	Start          time.Time
	End            time.Time
	SleeperStretch time.Duration
}

func (r restRun) dur() time.Duration { return r.End.Sub(r.Start) }

func restRuns(segs []segment) []restRun {
	var runs []restRun
	var cur *restRun
	var sleeper time.Duration
	for _, s := range segs {
		if !s.Status.Rest() {
			cur, sleeper = nil, 0
			continue
		}
		if cur == nil {
			runs = append(runs, restRun{Start: s.Start, End: s.End})
			cur = &runs[len(runs)-1]
			sleeper = 0
		} else {
			cur.End = s.End
		}
		if s.Status == model.StatusSleeperBerth {
			sleeper += s.dur()
		} else {
			sleeper = 0
		}
		if sleeper > cur.SleeperStretch {
			cur.SleeperStretch = sleeper
		}
	}
	return runs
}

// latestResetBefore returns the end of the latest qualifying rest completed
// by t: either ten consecutive off-duty hours, or a 7/3-8/2 sleeper split
// (one rest run holding a sleeper stretch of at least seven hours, another of
// at least two hours, summing to at least ten).
func latestResetBefore(runs []restRun, t time.Time) (time.Time, bool) {
	var resetEnd time.Time
	var ok bool
	var partners []restRun
	for _, r := range runs {
		if r.End.After(t) {
			break
		}
		d := r.dur()
		if d >= QualifyingRest {
			resetEnd, ok = r.End, true
			partners = partners[:0]
			continue
		}
		matched := false
		for _, p := range partners {
			if p.dur()+d < QualifyingRest {
				continue
			}
			if (p.SleeperStretch >= SplitLongSleeper && d >= SplitShortRest) ||
				(r.SleeperStretch >= SplitLongSleeper && p.dur() >= SplitShortRest) {
				resetEnd, ok = r.End, true
				partners = partners[:0]
				matched = true
				break
			}
		}
		if !matched && d >= SplitShortRest {
			partners = append(partners, r)
		}
	}
	return resetEnd, ok
}

// latestRestartBefore returns the latest instant by t at which a rest run
// reached thirty-four consecutive hours, restarting the cycle.
func latestRestartBefore(runs []restRun, t time.Time) (time.Time, bool) {
	var restart time.Time
	var ok bool
	for _, r := range runs {
		point := r.Start.Add(CycleRestart)
		if point.After(t) {
			continue
		}
		if r.dur() >= CycleRestart {
			restart, ok = point, true
		}
	}
	return restart, ok
}

// lastBreakEndBefore returns the end of the latest rest run of at least
// thirty minutes that ended within (windowStart, t].
func lastBreakEndBefore(runs []restRun, windowStart, t time.Time) (time.Time, bool) {
	var end time.Time
	var ok bool
	for _, r := range runs {
		if r.End.After(t) {
			break
		}
		if !r.End.After(windowStart) {
			continue
		}
		if r.dur() >= MinBreak {
			end, ok = r.End, true
		}
	}
	return end, ok
}

// windowStartAt returns the start of the first driving or on-duty segment at
// or after the given reset. With no reset recorded, the window starts at the
// first on-duty segment in the log.
func windowStartAt(segs []segment, resetEnd time.Time, hasReset bool) (time.Time, bool) {
	for _, s := range segs {
		if !s.Status.OnDuty() {
			continue
		}
		if !hasReset || !s.Start.Before(resetEnd) {
			return s.Start, true
		}
	}
	return time.Time{}, false
}

func sumWhere(segs []segment, from, to time.Time, match func(model.DutyStatus) bool) time.Duration {
	var total time.Duration
	for _, s := range segs {
		if !match(s.Status) {
			continue
		}
		start, end := s.Start, s.End
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if end.After(start) {
			total += end.Sub(start)
		}
	}
	return total
}

func sumDriving(segs []segment, from, to time.Time) time.Duration {
	return sumWhere(segs, from, to, func(s model.DutyStatus) bool { return s == model.StatusDriving })
}

func sumOnDuty(segs []segment, from, to time.Time) time.Duration {
	return sumWhere(segs, from, to, model.DutyStatus.OnDuty)
}

// midnight returns the start of t's calendar day in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// cycleUsedAt sums driving and on-duty time inside the rolling cycle window
// as of t: the trailing CycleDays calendar days in the home-terminal zone,
// cut short by any thirty-four-hour restart.
func cycleUsedAt(segs []segment, runs []restRun, t time.Time, rules Rules) time.Duration {
	from := midnight(t, rules.tz()).AddDate(0, 0, -(rules.days() - 1))
	if restart, ok := latestRestartBefore(runs, t); ok && restart.After(from) {
		from = restart
	}
	return sumOnDuty(segs, from, t)
}
