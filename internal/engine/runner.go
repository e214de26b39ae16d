package engine

import (
	"context"
	"fmt"

	"tabletd/pkg/compaction"
)

// compactableStore is implemented by Tablet; Runner depends on this
// narrower view instead of the concrete type so tests can substitute a
// fake compactable.
type compactableStore interface {
	NeedsCompaction() (level int, ok bool)
	CompactLevel(level int) (int64, error)
}

// Runner is the compaction.CompactionRunner this package supplies to the
// scheduler: when a job reaches an internal executor, it asks the
// underlying store whether any level actually needs compacting and, if
// so, runs it. A job that arrives when nothing needs compacting (the
// scheduler offers work speculatively every sweep) is a cheap no-op.
type Runner struct{}

func NewRunner() Runner { return Runner{} }

func (Runner) Run(ctx context.Context, job compaction.Job) (int64, error) {
	cs, ok := job.Compactable.(compactableStore)
	if !ok {
		return 0, fmt.Errorf("engine: compactable %v does not support local compaction", job.Compactable.Extent())
	}
	level, needed := cs.NeedsCompaction()
	if !needed {
		return 0, nil
	}
	return cs.CompactLevel(level)
}
