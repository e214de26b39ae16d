package compaction

import "context"

// CompactionRunner performs the actual per-tablet compaction work: file
// selection within a job, merging, iterators. It is deliberately out of
// scope for this package (spec §1) and is consumed only through this
// interface; internal executors call it once per job they dequeue.
type CompactionRunner interface {
	// Run executes job and reports how many bytes it moved, used to drive
	// the executor's rate limiter.
	Run(ctx context.Context, job Job) (bytesWritten int64, err error)
}

// NoopRunner is a CompactionRunner that does nothing and reports zero
// bytes. It is the only CompactionRunner this package ships, for use in
// tests and in hosts that have not yet wired a real engine.
type NoopRunner struct{}

func (NoopRunner) Run(ctx context.Context, job Job) (int64, error) {
	return 0, nil
}
