package compaction

import (
	"log/slog"
	"sync"
	"time"
)

// backoffFactor is the multiplicative growth applied to the retry wait on
// each successive failure. The value is unusual for an exponential backoff
// but is preserved exactly as observed; changing it changes how quickly a
// wedged main loop backs off under sustained failure.
const backoffFactor = 1.07

const retryLogInterval = time.Minute

// retryPolicy is capped, log-throttled exponential backoff for the main
// scheduling loop. A fresh instance is created after any successful
// iteration that follows one or more retries; the same instance accumulates
// state across consecutive failures.
type retryPolicy struct {
	increment time.Duration
	maxWait   time.Duration

	mu       sync.Mutex
	wait     time.Duration
	lastLog  time.Time
	attempts int
}

func newRetryPolicy(increment, maxWait time.Duration) *retryPolicy {
	if increment <= 0 {
		increment = time.Second
	}
	if maxWait < increment {
		maxWait = increment
	}
	return &retryPolicy{increment: increment, maxWait: maxWait, wait: increment}
}

// retry records one failed iteration, sleeps for the current backoff
// duration, and logs at most once per retryLogInterval regardless of how
// many attempts occur within that window.
func (p *retryPolicy) retry(logger *slog.Logger, extent Extent, err error) {
	p.mu.Lock()
	p.attempts++
	wait := p.wait
	shouldLog := time.Since(p.lastLog) >= retryLogInterval
	if shouldLog {
		p.lastLog = time.Now()
	}
	next := time.Duration(float64(p.wait) * backoffFactor)
	if next > p.maxWait {
		next = p.maxWait
	}
	p.wait = next
	attempts := p.attempts
	p.mu.Unlock()

	if shouldLog {
		logger.Error("compaction scheduling pass failed", "extent", extent, "attempts", attempts, "next_wait", wait, "error", err)
	}
	time.Sleep(wait)
}

// hasFired reports whether retry has been called at least once since this
// policy was created.
func (p *retryPolicy) hasFired() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts > 0
}
