package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/hos"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/store"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/timeline"
)

// Notifier receives the driver IDs for which new critical violations were
// detected.
type Notifier interface {
	Dispatch(driverID int64)
}

// Config holds the carrier-level defaults applied when a driver row does not
// override them.
type Config struct {
	CycleDays       int
	DefaultTimezone string
}

// Engine ties the timeline, calculator, and detector together. It is the
// compliance authority: every status change and amendment enters through it,
// serialized per driver, and every mutation triggers exactly one recompute of
// the driver's availability cache and violation set.
type Engine struct {
	store    store.Store
	timeline *timeline.Timeline
	cfg      Config
	notifier Notifier
	now      func() time.Time

	locks *driverLocks

	jobMu sync.Mutex
	jobs  map[int64]*recomputeJob
	wg    sync.WaitGroup
}

// New creates an Engine. notifier may be nil.
func New(s store.Store, cfg Config, notifier Notifier) *Engine {
	if cfg.CycleDays != 7 && cfg.CycleDays != 8 {
		cfg.CycleDays = 8
	}
	return &Engine{
		store:    s,
		timeline: timeline.New(s),
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
		locks:    newDriverLocks(),
		jobs:     make(map[int64]*recomputeJob),
	}
}

// ReportStatusChange records a new duty-status event for a driver and
// schedules recomputation from the event time forward.
func (e *Engine) ReportStatusChange(ctx context.Context, driverID int64, status model.DutyStatus, at time.Time, source model.IntervalSource, meta timeline.Metadata) (model.DutyInterval, error) {
	if _, err := e.store.GetDriver(ctx, driverID); err != nil {
		return model.DutyInterval{}, err
	}

	unlock := e.locks.Lock(driverID)
	interval, err := e.timeline.AppendStatus(ctx, driverID, status, at, source, meta)
	unlock()
	if err != nil {
		return model.DutyInterval{}, err
	}

	e.scheduleRecompute(driverID, interval.StartTime)
	return interval, nil
}

// AmendStatusChange supersedes a recorded interval with a corrected one and
// schedules recomputation from the earlier of the original and corrected
// start times.
func (e *Engine) AmendStatusChange(ctx context.Context, originalID int64, newStatus model.DutyStatus, newStart time.Time, newEnd *time.Time, editReason string) (model.DutyInterval, error) {
	original, err := e.store.GetInterval(ctx, originalID)
	if err != nil {
		return model.DutyInterval{}, err
	}

	unlock := e.locks.Lock(original.DriverID)
	replacement, err := e.timeline.AmendInterval(ctx, originalID, newStatus, newStart, newEnd, editReason)
	unlock()
	if err != nil {
		return model.DutyInterval{}, err
	}

	from := replacement.StartTime
	if original.StartTime.Before(from) {
		from = original.StartTime
	}
	e.scheduleRecompute(original.DriverID, from)
	return replacement, nil
}

// GetAvailability computes the driver's remaining minutes as of asOf (zero
// means now) from the interval log.
func (e *Engine) GetAvailability(ctx context.Context, driverID int64, asOf time.Time) (hos.Availability, error) {
	driver, err := e.store.GetDriver(ctx, driverID)
	if err != nil {
		return hos.Availability{}, err
	}
	if asOf.IsZero() {
		asOf = e.now()
	}
	asOf = asOf.UTC()

	rules := e.driverRules(driver)
	intervals, err := e.store.LoadIntervals(ctx, driverID, asOf.Add(-e.lookback(rules)), asOf)
	if err != nil {
		return hos.Availability{}, err
	}
	return hos.ComputeAvailability(intervals, asOf, rules), nil
}

// CanDrive reports whether all three clocks allow the required minutes.
func (e *Engine) CanDrive(ctx context.Context, driverID int64, requiredMins int) (bool, error) {
	avail, err := e.GetAvailability(ctx, driverID, time.Time{})
	if err != nil {
		return false, err
	}
	return avail.CanDrive(requiredMins), nil
}

// ReconstructTimeline returns the driver's active timeline as recorded at
// asOf (zero means now).
func (e *Engine) ReconstructTimeline(ctx context.Context, driverID int64, asOf time.Time) ([]model.DutyInterval, error) {
	if _, err := e.store.GetDriver(ctx, driverID); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = e.now()
	}
	return e.timeline.Reconstruct(ctx, driverID, asOf)
}

// ListUnacknowledged returns the driver's unacknowledged violations.
func (e *Engine) ListUnacknowledged(ctx context.Context, driverID int64) ([]model.Violation, error) {
	acknowledged := false
	return e.store.ListViolations(ctx, driverID, &acknowledged)
}

// Acknowledge flips a violation's acknowledged flag.
func (e *Engine) Acknowledge(ctx context.Context, violationID int64) error {
	return e.store.AcknowledgeViolation(ctx, violationID)
}

// Wait blocks until all scheduled recompute jobs finish. Used at shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) driverRules(driver model.Driver) hos.Rules {
	days := driver.CycleDays
	if days != 7 && days != 8 {
		days = e.cfg.CycleDays
	}
	tzName := driver.HomeTerminalTZ
	if tzName == "" {
		tzName = e.cfg.DefaultTimezone
	}
	loc := time.UTC
	if tzName != "" {
		l, err := time.LoadLocation(tzName)
		if err != nil {
			log.Printf("Unknown home terminal timezone %q for driver %d; using UTC", tzName, driver.ID)
		} else {
			loc = l
		}
	}
	return hos.Rules{CycleDays: days, HomeTZ: loc}
}

// lookback is how much history a computation needs: the full cycle window
// plus slack for a rest period straddling its edge.
func (e *Engine) lookback(rules hos.Rules) time.Duration {
	return time.Duration(rules.CycleDays+2) * 24 * time.Hour
}
