package compaction

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zhangyunhao116/skipset"
	"golang.org/x/time/rate"
)

// internalJob is one queued unit of work on an internal executor.
type internalJob struct {
	job      Job
	notifier func(Compactable)
}

// internalExecutor is an in-process worker pool: a named group of
// goroutines draining a shared queue, gated by a shared byte-rate limiter.
// Resizing (via resize) never kills an in-flight worker; it only changes
// how many goroutines are *targeted*, so reconfiguration never loses work
// (spec §4.2 configurationChanged).
type internalExecutor struct {
	name   string
	runner CompactionRunner
	logger *slog.Logger

	queue chan internalJob

	target  atomic.Int64
	active  atomic.Int64
	running atomic.Int64
	queued  atomic.Int64

	// queuedExtents tracks which extents currently have a job sitting in
	// queue, so isQueued can answer exactly instead of guessing from a
	// channel that cannot be peeked without consuming it.
	queuedExtents *skipset.StringSet

	limiter *rate.Limiter

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

func newInternalExecutor(name string, numThreads int, rateLimit int64, runner CompactionRunner, logger *slog.Logger) *internalExecutor {
	ie := &internalExecutor{
		name:          name,
		runner:        runner,
		logger:        logger,
		queue:         make(chan internalJob, 4096),
		stopCh:        make(chan struct{}),
		queuedExtents: skipset.NewString(),
		limiter:       rate.NewLimiter(rateLimitToLimit(rateLimit), int(max64(rateLimit, 1))),
	}
	ie.resize(numThreads)
	return ie
}

func rateLimitToLimit(bytesPerSec int64) rate.Limit {
	if bytesPerSec <= 0 {
		return rate.Inf
	}
	return rate.Limit(bytesPerSec)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// resize changes the target worker count. New workers are spawned
// immediately; excess workers retire themselves after finishing whatever
// job they are currently running, so nothing in flight is interrupted.
func (ie *internalExecutor) resize(numThreads int) {
	if numThreads < 1 {
		numThreads = 1
	}
	old := ie.target.Swap(int64(numThreads))
	for old < int64(numThreads) {
		ie.spawnWorker()
		old++
	}
}

func (ie *internalExecutor) setRateLimit(bytesPerSec int64) {
	ie.limiter.SetLimit(rateLimitToLimit(bytesPerSec))
	if bytesPerSec > 0 {
		ie.limiter.SetBurst(int(bytesPerSec))
	}
}

func (ie *internalExecutor) spawnWorker() {
	ie.active.Add(1)
	ie.wg.Add(1)
	go func() {
		defer ie.wg.Done()
		retired := false
		defer func() {
			if !retired {
				ie.active.Add(-1)
			}
		}()
		for {
			select {
			case <-ie.stopCh:
				return
			case j, ok := <-ie.queue:
				if !ok {
					return
				}
				ie.queued.Add(-1)
				ie.queuedExtents.Remove(j.job.Compactable.Extent().String())
				if n := ie.active.Load(); n > ie.target.Load() && ie.active.CompareAndSwap(n, n-1) {
					// This worker is surplus to the current target; run
					// the job it already dequeued, then retire. The
					// compare-and-swap lets only the surplus workers retire.
					retired = true
					ie.runJob(j)
					return
				}
				ie.runJob(j)
			}
		}
	}()
}

func (ie *internalExecutor) runJob(j internalJob) {
	ie.running.Add(1)
	defer ie.running.Add(-1)

	bytes, err := ie.runner.Run(context.Background(), j.job)
	if err != nil {
		ie.logger.Warn("internal compaction failed", "executor", ie.name, "extent", j.job.Compactable.Extent(), "error", err)
	}
	if bytes > 0 {
		_ = ie.limiter.WaitN(context.Background(), int(min64(bytes, int64(ie.limiter.Burst()))))
	}
	if j.notifier != nil {
		j.notifier(j.job.Compactable)
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// submit enqueues a job. The queue is large and non-blocking under normal
// load; a full queue applies backpressure to the caller (the scheduler
// loop), which is acceptable since duplicate re-submission is idempotent.
func (ie *internalExecutor) submit(job Job, notifier func(Compactable)) {
	ie.queued.Add(1)
	ie.queuedExtents.Add(job.Compactable.Extent().String())
	ie.queue <- internalJob{job: job, notifier: notifier}
}

func (ie *internalExecutor) isQueued(extent Extent) bool {
	return ie.queuedExtents.Contains(extent.String())
}

func (ie *internalExecutor) stop() {
	ie.stopOnce.Do(func() {
		close(ie.stopCh)
	})
	ie.wg.Wait()
}
