package compaction

import "errors"

var (
	// ErrMalformedConfig is returned when a compactionService.* property
	// does not decompose into one of the three recognized shapes.
	ErrMalformedConfig = errors.New("compaction: malformed configuration property")
	// ErrIncompleteConfig is returned when a service has options but no
	// planner class, or vice versa in a way that leaves it unusable.
	ErrIncompleteConfig = errors.New("compaction: incomplete compaction service definition")
	// ErrExtentMismatch is the fatal invariant violation of spec §3 I4: the
	// stored extent for an external compaction id does not match the
	// extent the caller is committing or failing against.
	ErrExtentMismatch = errors.New("compaction: extent mismatch on commit/fail")
	// ErrNoJobAvailable is returned by ExternalCompactionExecutor.Reserve
	// when no queued offer satisfies the requested priority.
	ErrNoJobAvailable = errors.New("compaction: no external job available")
	// ErrUnknownPlanner is returned when a planner class name has no
	// registered factory.
	ErrUnknownPlanner = errors.New("compaction: unknown planner class")
	// ErrServiceStopped is returned by a CompactionService once Stop has
	// been called on it; callers must discard the reference.
	ErrServiceStopped = errors.New("compaction: service stopped")
)
