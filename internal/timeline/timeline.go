package timeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nanneboina449/draymaster-tms-sub002/internal/model"
	"github.com/nanneboina449/draymaster-tms-sub002/internal/store"
)

// Metadata carries the optional fields of a status-change event.
type Metadata struct {
	Location string
	Odometer int64
}

// Timeline is the sole writer of duty intervals. It validates proposed
// intervals against the driver's existing log and keeps the invariants: total
// order by start time, no overlap between active intervals, at most one open
// interval, and append-only amendments via supersede.
type Timeline struct {
	store store.Store
	now   func() time.Time
}

// New creates a Timeline over the given store.
func New(s store.Store) *Timeline {
	return &Timeline{store: s, now: time.Now}
}

// AppendStatus records a status change at the given time. For live sources
// (ELD, MANUAL) the event must not precede the driver's last known event; the
// previous open interval is implicitly closed at the event time. INFERRED
// events never override recorded intervals: they only fill genuine gaps.
func (t *Timeline) AppendStatus(ctx context.Context, driverID int64, status model.DutyStatus, at time.Time, source model.IntervalSource, meta Metadata) (model.DutyInterval, error) {
	if !status.Valid() {
		return model.DutyInterval{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInterval, status)
	}
	if source != model.SourceELD && source != model.SourceManual && source != model.SourceInferred {
		return model.DutyInterval{}, fmt.Errorf("%w: unknown source %q", ErrInvalidInterval, source)
	}
	at = at.UTC()

	if source == model.SourceInferred {
		return t.fillGap(ctx, driverID, status, at, meta)
	}

	open, err := t.store.OpenInterval(ctx, driverID)
	if err != nil {
		return model.DutyInterval{}, err
	}

	if open != nil {
		// Closing at or before the open interval's start would produce an
		// empty or inverted interval.
		if !at.After(open.StartTime) {
			return model.DutyInterval{}, fmt.Errorf("%w: event at %s, open interval starts %s",
				ErrOutOfOrderEvent, at.Format(time.RFC3339), open.StartTime.Format(time.RFC3339))
		}
	} else {
		last, err := t.lastActive(ctx, driverID)
		if err != nil {
			return model.DutyInterval{}, err
		}
		if last != nil && at.Before(last.EndOrNow(at)) {
			return model.DutyInterval{}, fmt.Errorf("%w: event at %s precedes recorded history ending %s",
				ErrOutOfOrderEvent, at.Format(time.RFC3339), last.EndOrNow(at).Format(time.RFC3339))
		}
	}

	next := model.DutyInterval{
		DriverID:  driverID,
		Status:    status,
		StartTime: at,
		Source:    source,
		Location:  meta.Location,
		Odometer:  meta.Odometer,
		CreatedAt: t.now().UTC(),
	}
	var openID *int64
	if open != nil {
		openID = &open.ID
	}
	if err := t.store.CloseAndAppend(ctx, openID, at, &next); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.DutyInterval{}, fmt.Errorf("%w: open interval changed concurrently", ErrOutOfOrderEvent)
		}
		return model.DutyInterval{}, err
	}
	return next, nil
}

// fillGap inserts an inferred interval into a span no active interval covers.
// The fill is bounded by the next recorded interval, or left open when the
// gap is trailing.
func (t *Timeline) fillGap(ctx context.Context, driverID int64, status model.DutyStatus, at time.Time, meta Metadata) (model.DutyInterval, error) {
	actives, err := t.store.LoadIntervals(ctx, driverID, at, time.Time{})
	if err != nil {
		return model.DutyInterval{}, err
	}

	var end *time.Time
	for _, iv := range actives {
		if iv.Covers(at) {
			return model.DutyInterval{}, fmt.Errorf("%w: %s is covered by recorded interval %d",
				ErrConflictingInterval, at.Format(time.RFC3339), iv.ID)
		}
		if iv.StartTime.After(at) {
			// Intervals arrive ordered by start; the first one past the
			// timestamp bounds the gap.
			bound := iv.StartTime
			end = &bound
			break
		}
	}

	next := model.DutyInterval{
		DriverID:  driverID,
		Status:    status,
		StartTime: at,
		EndTime:   end,
		Source:    model.SourceInferred,
		Location:  meta.Location,
		Odometer:  meta.Odometer,
		CreatedAt: t.now().UTC(),
	}
	if err := t.store.CloseAndAppend(ctx, nil, at, &next); err != nil {
		return model.DutyInterval{}, err
	}
	return next, nil
}

// AmendInterval replaces a recorded interval with a corrected one. The
// original is kept and marked superseded; the replacement carries the
// edit reason and points back at it. The replacement must not overlap any
// other active interval of the driver.
func (t *Timeline) AmendInterval(ctx context.Context, originalID int64, newStatus model.DutyStatus, newStart time.Time, newEnd *time.Time, editReason string) (model.DutyInterval, error) {
	if strings.TrimSpace(editReason) == "" {
		return model.DutyInterval{}, ErrMissingEditReason
	}
	if !newStatus.Valid() {
		return model.DutyInterval{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInterval, newStatus)
	}
	newStart = newStart.UTC()
	if newEnd != nil {
		e := newEnd.UTC()
		newEnd = &e
		if !newEnd.After(newStart) {
			return model.DutyInterval{}, fmt.Errorf("%w: end %s not after start %s",
				ErrInvalidInterval, newEnd.Format(time.RFC3339), newStart.Format(time.RFC3339))
		}
	}

	original, err := t.store.GetInterval(ctx, originalID)
	if err != nil {
		return model.DutyInterval{}, err
	}
	if original.Superseded {
		return model.DutyInterval{}, fmt.Errorf("%w: interval %d", ErrAlreadySuperseded, originalID)
	}

	neighbors, err := t.store.LoadIntervals(ctx, original.DriverID, newStart, time.Time{})
	if err != nil {
		return model.DutyInterval{}, err
	}
	for _, iv := range neighbors {
		if iv.ID == originalID {
			continue
		}
		if overlaps(newStart, newEnd, iv) {
			return model.DutyInterval{}, fmt.Errorf("%w: replacement overlaps active interval %d",
				ErrConflictingInterval, iv.ID)
		}
	}

	reason := strings.TrimSpace(editReason)
	replacement := model.DutyInterval{
		DriverID:   original.DriverID,
		Status:     newStatus,
		StartTime:  newStart,
		EndTime:    newEnd,
		Source:     model.SourceManual,
		Location:   original.Location,
		Odometer:   original.Odometer,
		EditReason: &reason,
		CreatedAt:  t.now().UTC(),
	}
	if err := t.store.Supersede(ctx, originalID, &replacement); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.DutyInterval{}, fmt.Errorf("%w: interval %d", ErrAlreadySuperseded, originalID)
		}
		return model.DutyInterval{}, err
	}
	return replacement, nil
}

// Reconstruct returns the driver's active timeline as it was recorded at
// asOf: intervals created by then and starting by then, excluding any that a
// by-then-recorded amendment superseded. Reconstructing before an amendment's
// creation therefore still shows the original record.
func (t *Timeline) Reconstruct(ctx context.Context, driverID int64, asOf time.Time) ([]model.DutyInterval, error) {
	asOf = asOf.UTC()
	recorded, err := t.store.LoadRecorded(ctx, driverID, asOf)
	if err != nil {
		return nil, err
	}

	replaced := make(map[int64]bool, len(recorded))
	for _, iv := range recorded {
		if iv.SupersedesID != nil {
			replaced[*iv.SupersedesID] = true
		}
	}

	active := make([]model.DutyInterval, 0, len(recorded))
	for _, iv := range recorded {
		if !replaced[iv.ID] {
			active = append(active, iv)
		}
	}
	return active, nil
}

// lastActive returns the driver's latest active interval, nil when the log is
// empty.
func (t *Timeline) lastActive(ctx context.Context, driverID int64) (*model.DutyInterval, error) {
	intervals, err := t.store.LoadIntervals(ctx, driverID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(intervals) == 0 {
		return nil, nil
	}
	last := intervals[len(intervals)-1]
	return &last, nil
}

// overlaps reports whether [start, end) intersects the interval. A nil end
// means the candidate is open-ended.
func overlaps(start time.Time, end *time.Time, iv model.DutyInterval) bool {
	if end != nil && !end.After(iv.StartTime) {
		return false
	}
	ivEnd := iv.EndTime
	if ivEnd != nil && !ivEnd.After(start) {
		return false
	}
	return true
}
