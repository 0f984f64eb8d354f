package timeline

import "errors"

// Validation errors surfaced synchronously to ingestion callers. HOS data is
// a regulatory surface, so ambiguous input is rejected, never guessed at.
var (
	// ErrOutOfOrderEvent marks a live-source event whose timestamp precedes
	// the driver's last known event. Resubmit it as an amendment.
	ErrOutOfOrderEvent = errors.New("timeline: event precedes current open interval")

	// ErrConflictingInterval marks an amendment or inferred fill that would
	// overlap a neighboring active interval. The caller must amend the
	// neighbors first.
	ErrConflictingInterval = errors.New("timeline: interval overlaps an active interval")

	// ErrAlreadySuperseded marks an attempt to amend an interval that a
	// previous amendment already replaced.
	ErrAlreadySuperseded = errors.New("timeline: interval already superseded")

	// ErrMissingEditReason marks an amendment with no justification.
	ErrMissingEditReason = errors.New("timeline: amendment requires an edit reason")

	// ErrInvalidInterval marks malformed input: unknown status or source, or
	// an end not after the start.
	ErrInvalidInterval = errors.New("timeline: invalid interval")
)
