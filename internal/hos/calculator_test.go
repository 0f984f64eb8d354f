package hos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
)

// base is a Monday midnight, UTC. All test timelines start here.
var base = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func closed(status model.DutyStatus, start, end time.Time) model.DutyInterval {
	return model.DutyInterval{Status: status, StartTime: start, EndTime: &end, Source: model.SourceELD}
}

func open(status model.DutyStatus, start time.Time) model.DutyInterval {
	return model.DutyInterval{Status: status, StartTime: start, Source: model.SourceELD}
}

func TestComputeAvailability(t *testing.T) {
	rules := Rules{CycleDays: 8, HomeTZ: time.UTC}

	testCases := []struct {
		name      string
		intervals []model.DutyInterval
		at        time.Time
		rules     Rules
		expected  Availability
	}{
		{
			name:      "No recorded intervals gives full clocks",
			intervals: nil,
			at:        at(12, 0),
			rules:     rules,
			expected:  Availability{DriveMins: 660, DutyMins: 840, CycleMins: 4200},
		},
		{
			name: "Eleven hours of continuous driving exhausts the drive clock",
			intervals: []model.DutyInterval{
				open(model.StatusDriving, at(0, 0)),
			},
			at:       at(11, 0),
			rules:    rules,
			expected: Availability{DriveMins: 0, DutyMins: 180, CycleMins: 3540},
		},
		{
			name: "Eight cumulative driving hours without a qualifying break gate the drive clock",
			intervals: []model.DutyInterval{
				closed(model.StatusDriving, at(0, 0), at(4, 0)),
				closed(model.StatusOffDuty, at(4, 0), at(4, 20)),
				open(model.StatusDriving, at(4, 20)),
			},
			at:    at(8, 20),
			rules: rules,
			// 8h driven would leave 180 drive minutes, but no 30-minute
			// break has been taken since the window opened.
			expected: Availability{DriveMins: 0, DutyMins: 340, CycleMins: 3720},
		},
		{
			name: "A thirty-minute break resets the break clock",
			intervals: []model.DutyInterval{
				closed(model.StatusDriving, at(0, 0), at(4, 0)),
				closed(model.StatusOffDuty, at(4, 0), at(4, 30)),
				open(model.StatusDriving, at(4, 30)),
			},
			at:       at(8, 30),
			rules:    rules,
			expected: Availability{DriveMins: 180, DutyMins: 330, CycleMins: 3720},
		},
		{
			name: "Ten hours off duty reset the duty window",
			intervals: []model.DutyInterval{
				closed(model.StatusOnDutyNotDriving, at(8, 0), at(14, 0)),
				closed(model.StatusOffDuty, at(14, 0), at(24, 0)),
				open(model.StatusOnDutyNotDriving, at(24, 0)),
			},
			at:    at(24, 0),
			rules: rules,
			// At the instant of resuming duty the window has zero elapsed
			// time; only the cycle remembers the earlier shift.
			expected: Availability{DriveMins: 660, DutyMins: 840, CycleMins: 3840},
		},
		{
			name: "Window runs again after the reset",
			intervals: []model.DutyInterval{
				closed(model.StatusOnDutyNotDriving, at(8, 0), at(14, 0)),
				closed(model.StatusOffDuty, at(14, 0), at(24, 0)),
				open(model.StatusDriving, at(24, 0)),
			},
			at:       at(25, 0),
			rules:    rules,
			expected: Availability{DriveMins: 600, DutyMins: 780, CycleMins: 3780},
		},
		{
			name: "Nine hours fifty-nine minutes off duty do not reset the window",
			intervals: []model.DutyInterval{
				closed(model.StatusOnDutyNotDriving, at(0, 0), at(6, 0)),
				closed(model.StatusOffDuty, at(6, 0), at(15, 59)),
				open(model.StatusOnDutyNotDriving, at(15, 59)),
			},
			at:    at(16, 0),
			rules: rules,
			// The window opened at 00:00 and sixteen hours have elapsed.
			expected: Availability{DriveMins: 660, DutyMins: 0, CycleMins: 3839},
		},
		{
			name: "Sleeper-berth split of seven and three hours resets the window",
			intervals: []model.DutyInterval{
				closed(model.StatusDriving, at(0, 0), at(5, 0)),
				closed(model.StatusSleeperBerth, at(5, 0), at(12, 0)),
				closed(model.StatusDriving, at(12, 0), at(17, 0)),
				closed(model.StatusOffDuty, at(17, 0), at(20, 0)),
				open(model.StatusDriving, at(20, 0)),
			},
			at:       at(21, 0),
			rules:    rules,
			expected: Availability{DriveMins: 600, DutyMins: 780, CycleMins: 3540},
		},
		{
			name: "Seven off-duty hours without sleeper berth do not pair into a split",
			intervals: []model.DutyInterval{
				closed(model.StatusDriving, at(0, 0), at(5, 0)),
				closed(model.StatusOffDuty, at(5, 0), at(12, 0)),
				closed(model.StatusDriving, at(12, 0), at(17, 0)),
				closed(model.StatusOffDuty, at(17, 0), at(20, 0)),
				open(model.StatusDriving, at(20, 0)),
			},
			at:    at(21, 0),
			rules: rules,
			// The window still runs from 00:00: eleven hours driven, the
			// window itself long expired.
			expected: Availability{DriveMins: 0, DutyMins: 0, CycleMins: 3540},
		},
		{
			name: "Gap between recorded intervals counts as off duty",
			intervals: []model.DutyInterval{
				closed(model.StatusDriving, at(0, 0), at(4, 0)),
				open(model.StatusDriving, at(14, 0)),
			},
			at:    at(15, 0),
			rules: rules,
			// The unlogged ten hours behave as a qualifying rest.
			expected: Availability{DriveMins: 600, DutyMins: 780, CycleMins: 3900},
		},
		{
			name: "Seven-day cycle uses the sixty-hour limit",
			intervals: []model.DutyInterval{
				open(model.StatusOnDutyNotDriving, at(0, 0)),
			},
			at:       at(10, 0),
			rules:    Rules{CycleDays: 7, HomeTZ: time.UTC},
			expected: Availability{DriveMins: 660, DutyMins: 240, CycleMins: 3000},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeAvailability(tc.intervals, tc.at, tc.rules)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestComputeAvailabilityCycleRestart(t *testing.T) {
	rules := Rules{CycleDays: 8, HomeTZ: time.UTC}

	intervals := []model.DutyInterval{
		closed(model.StatusOnDutyNotDriving, at(0, 0), at(10, 0)),
		// 34 consecutive off-duty hours complete at Tuesday 20:00.
		closed(model.StatusOffDuty, at(10, 0), at(49, 0)),
		open(model.StatusOnDutyNotDriving, at(49, 0)),
	}

	avail := ComputeAvailability(intervals, at(50, 0), rules)
	// The restart wiped the ten on-duty hours from Monday; only the hour
	// since Wednesday 01:00 counts.
	assert.Equal(t, 4140, avail.CycleMins)

	// Without the restart the same shift pattern would have counted both.
	short := []model.DutyInterval{
		closed(model.StatusOnDutyNotDriving, at(0, 0), at(10, 0)),
		closed(model.StatusOffDuty, at(10, 0), at(40, 0)),
		open(model.StatusOnDutyNotDriving, at(40, 0)),
	}
	avail = ComputeAvailability(short, at(41, 0), rules)
	assert.Equal(t, 4200-600-60, avail.CycleMins)
}

func TestComputeAvailabilityCycleDayDropOff(t *testing.T) {
	rules := Rules{CycleDays: 8, HomeTZ: time.UTC}

	old := closed(model.StatusDriving, at(0, 0), at(10, 0))
	intervals := []model.DutyInterval{old}

	// Seven days later Monday's ten hours are still inside the eight-day
	// window.
	inWindow := base.AddDate(0, 0, 7).Add(12 * time.Hour)
	avail := ComputeAvailability(intervals, inWindow, rules)
	assert.Equal(t, 4200-600, avail.CycleMins)

	// A day after that the window's leading edge has passed Monday.
	dropped := base.AddDate(0, 0, 8).Add(12 * time.Hour)
	avail = ComputeAvailability(intervals, dropped, rules)
	assert.Equal(t, 4200, avail.CycleMins)
}

func TestAvailabilityCanDrive(t *testing.T) {
	avail := Availability{DriveMins: 120, DutyMins: 300, CycleMins: 90}
	assert.True(t, avail.CanDrive(90))
	assert.False(t, avail.CanDrive(91), "the tightest clock bounds the answer")
	assert.True(t, avail.CanDrive(0))
}
