package compaction

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Service is one configured compaction service: a planner instance, a set
// of named internal executors, and the shared external executors it
// currently routes to. A service is created on first appearance in config
// and destroyed (after stop) when removed from config (spec §3 entity
// table).
type Service struct {
	id ServiceId

	registry *externalExecutorRegistry
	logger   *slog.Logger
	runner   CompactionRunner

	mu        sync.RWMutex
	planner   Planner
	class     string
	rateLimit int64
	options   map[string]string
	specs     map[string]ExecutorSpec
	internal  map[string]*internalExecutor

	stopped atomic.Bool
}

func newService(id ServiceId, class string, options map[string]string, rateLimit int64, registry *externalExecutorRegistry, runner CompactionRunner, logger *slog.Logger) (*Service, error) {
	planner, err := instantiatePlanner(class, options)
	if err != nil {
		return nil, fmt.Errorf("compaction: service %q: %w", id, err)
	}
	s := &Service{
		id:       id,
		registry: registry,
		logger:   logger,
		runner:   runner,
		planner:  planner,
		class:    class,
		options:  options,
		specs:    executorSpecsByName(options),
		internal: map[string]*internalExecutor{},
	}
	s.setRateLimitLocked(rateLimit)
	return s, nil
}

// executorSpecsByName parses the "executors" planner option into a
// name-indexed lookup, tolerating a malformed or absent option (the
// planner itself surfaces that error at Plan time).
func executorSpecsByName(options map[string]string) map[string]ExecutorSpec {
	specs, _ := parseExecutorSpecs(options["executors"])
	byName := make(map[string]ExecutorSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}
	return byName
}

// ID returns this service's configured name.
func (s *Service) ID() ServiceId {
	return s.id
}

// Submit asks the planner for a job for kind against c. If one is produced
// it is routed to either a named internal executor (created lazily) or a
// shared external executor; notifier runs when an internal job completes,
// or when a compactor reserves an external job, letting the manager
// re-evaluate the tablet promptly (spec §4.2).
func (s *Service) Submit(kind CompactionKind, c Compactable, notifier func(Compactable)) {
	if s.stopped.Load() {
		return
	}
	s.mu.RLock()
	planner := s.planner
	s.mu.RUnlock()

	job, ok := planner.Plan(kind, c)
	if !ok {
		return
	}

	if job.ExternalQueue != "" {
		ex := s.registry.getOrCreate(ExternalExecutorId(job.ExternalQueue))
		ex.Submit(job, notifier)
		return
	}

	ie := s.internalExecutorFor(job.InternalExecutor)
	ie.submit(job, notifier)
}

func (s *Service) internalExecutorFor(name string) *internalExecutor {
	if name == "" {
		name = "default"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ie, ok := s.internal[name]
	if ok {
		return ie
	}
	numThreads := 1
	if spec, ok := s.specs[name]; ok && spec.NumThreads > 0 {
		numThreads = spec.NumThreads
	}
	ie = newInternalExecutor(name, numThreads, s.rateLimit, s.runner, s.logger)
	s.internal[name] = ie
	return ie
}

// ConfigurationChanged applies a new class/options/rate limit in place so
// that in-flight work on existing internal executors survives; only the
// planner is reinstantiated when its class changes (spec §4.2).
func (s *Service) ConfigurationChanged(class string, rateLimit int64, options map[string]string) error {
	if s.stopped.Load() {
		return fmt.Errorf("compaction: service %q: %w", s.id, ErrServiceStopped)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if class != s.class {
		planner, err := instantiatePlanner(class, options)
		if err != nil {
			return fmt.Errorf("compaction: service %q reconfigure: %w", s.id, err)
		}
		s.planner = planner
		s.class = class
	} else if err := s.planner.Reconfigure(options); err != nil {
		return fmt.Errorf("compaction: service %q reconfigure: %w", s.id, err)
	}
	s.options = options
	s.specs = executorSpecsByName(options)
	for name, ie := range s.internal {
		numThreads := 1
		if spec, ok := s.specs[name]; ok && spec.NumThreads > 0 {
			numThreads = spec.NumThreads
		}
		ie.resize(numThreads)
	}
	s.setRateLimitLocked(rateLimit)
	return nil
}

func (s *Service) setRateLimitLocked(rateLimit int64) {
	s.rateLimit = rateLimit
	for _, ie := range s.internal {
		ie.setRateLimit(rateLimit)
	}
}

// Stop is idempotent: it stops every internal executor this service owns.
// After Stop returns, the caller must discard the reference (spec §4.2,
// I6).
func (s *Service) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.mu.RLock()
	executors := make([]*internalExecutor, 0, len(s.internal))
	for _, ie := range s.internal {
		executors = append(executors, ie)
	}
	s.mu.RUnlock()
	for _, ie := range executors {
		ie.stop()
	}
}

// IsCompactionQueued reports whether extent has a job sitting in any of
// this service's internal executors.
func (s *Service) IsCompactionQueued(extent Extent) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ie := range s.internal {
		if ie.isQueued(extent) {
			return true
		}
	}
	return false
}

// GetCompactionsRunning returns the number of jobs currently executing on
// this service's internal executors, regardless of kind (internal
// executors are not partitioned by kind).
func (s *Service) GetCompactionsRunning() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, ie := range s.internal {
		n += ie.running.Load()
	}
	return n
}

// GetCompactionsQueued returns the number of jobs queued on this service's
// internal executors.
func (s *Service) GetCompactionsQueued() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, ie := range s.internal {
		n += ie.queued.Load()
	}
	return n
}

// GetExternalExecutorsInUse invokes sink once per external executor id
// this service currently routes to, derived from its planner options.
func (s *Service) GetExternalExecutorsInUse(sink func(ExecutorId)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q := s.options["queue"]; q != "" {
		sink(ExternalExecutorId(q))
	}
	for _, spec := range s.specs {
		if spec.Queue != "" {
			sink(ExternalExecutorId(spec.Queue))
		}
	}
}

// CompactableClosed drops any pending internal-executor state for a
// vanished tablet. Internal executors track queued extents but cannot
// cancel an in-flight job; closing only prevents a stale isQueued answer.
func (s *Service) CompactableClosed(extent Extent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ie := range s.internal {
		ie.queuedExtents.Remove(extent.String())
	}
}
