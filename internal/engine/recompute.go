package engine

import (
	"context"
	"log"
	"time"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/hos"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
)

// violationKey is the idempotence key of a detected violation within one
// driver's history.
type violationKey struct {
	Rule        model.RuleCode
	WindowStart time.Time
}

// recomputeJob tracks the in-flight recompute for one driver. Arrivals while
// a job runs cancel it and fold their start time into a single pending
// rerun, so the eventual job covers the union of the affected ranges and
// each driver has at most one job in flight.
type recomputeJob struct {
	running     bool
	cancel      context.CancelFunc
	runningFrom time.Time
	pendingFrom time.Time
	hasPending  bool
}

func (e *Engine) scheduleRecompute(driverID int64, from time.Time) {
	e.jobMu.Lock()
	defer e.jobMu.Unlock()

	job := e.jobs[driverID]
	if job == nil {
		job = &recomputeJob{}
		e.jobs[driverID] = job
	}

	if job.running {
		// The running job is stale: discard it and fold both ranges into
		// the pending rerun.
		job.cancel()
		merged := from
		if job.runningFrom.Before(merged) {
			merged = job.runningFrom
		}
		if job.hasPending && job.pendingFrom.Before(merged) {
			merged = job.pendingFrom
		}
		job.pendingFrom = merged
		job.hasPending = true
		return
	}

	e.launchRecompute(driverID, job, from)
}

// launchRecompute starts a job goroutine. Caller holds jobMu.
func (e *Engine) launchRecompute(driverID int64, job *recomputeJob, from time.Time) {
	ctx, cancel := context.WithCancel(context.Background())
	job.running = true
	job.cancel = cancel
	job.runningFrom = from

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		unlock := e.locks.Lock(driverID)
		err := e.Recompute(ctx, driverID, from)
		unlock()
		if err != nil && ctx.Err() == nil {
			log.Printf("Recompute failed for driver %d: %v", driverID, err)
		}

		e.jobMu.Lock()
		defer e.jobMu.Unlock()
		job.running = false
		if job.hasPending {
			pending := job.pendingFrom
			job.hasPending = false
			e.launchRecompute(driverID, job, pending)
		}
	}()
}

// Recompute re-derives the driver's availability cache as of now and re-runs
// the violation detector over the span reaching back from the affected start
// time. It persists nothing once ctx is cancelled, so a superseded job
// leaves no partial results.
func (e *Engine) Recompute(ctx context.Context, driverID int64, from time.Time) error {
	driver, err := e.store.GetDriver(ctx, driverID)
	if err != nil {
		return err
	}
	rules := e.driverRules(driver)
	now := e.now().UTC()

	loadFrom := from.UTC().Add(-e.lookback(rules))
	if nowFrom := now.Add(-e.lookback(rules)); nowFrom.Before(loadFrom) {
		loadFrom = nowFrom
	}
	intervals, err := e.store.LoadIntervals(ctx, driverID, loadFrom, now)
	if err != nil {
		return err
	}

	avail := hos.ComputeAvailability(intervals, now, rules)
	detected := hos.Detect(driverID, intervals, now, now, rules)

	existing, err := e.store.ListViolations(ctx, driverID, nil)
	if err != nil {
		return err
	}
	known := make(map[violationKey]bool, len(existing))
	for _, v := range existing {
		known[violationKey{v.RuleCode, v.WindowStart.UTC()}] = true
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.store.UpsertViolations(ctx, detected); err != nil {
		return err
	}
	if err := e.store.UpdateDriverAvailability(ctx, driverID, avail.DriveMins, avail.DutyMins, avail.CycleMins, now); err != nil {
		return err
	}

	if e.notifier != nil {
		for _, v := range detected {
			if v.Severity != model.SeverityCritical {
				continue
			}
			if !known[violationKey{v.RuleCode, v.WindowStart.UTC()}] {
				e.notifier.Dispatch(driverID)
				break
			}
		}
	}
	return nil
}
