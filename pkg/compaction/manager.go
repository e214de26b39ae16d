package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhangyunhao116/skipmap"
)

// runningEntry is the authoritative record of what this tablet server
// believes is running externally: an extent and the executor it was
// reserved from (spec §3 RunningExternal entry).
type runningEntry struct {
	extent   Extent
	executor ExecutorId
}

// Manager is the Compaction Manager: the scheduler loop, reconciliation of
// running-external compactions against tablet reports, hot configuration
// reload, fan-out of external reservations, and metrics aggregation (spec
// §4.4). One Manager is owned by the tablet server process; it is not a
// package-level singleton (spec §9 Design Notes).
type Manager struct {
	store  ConfigStore
	source CompactablesSource
	runner CompactionRunner
	logger *slog.Logger

	warner   *deprecationWarner
	registry *externalExecutorRegistry

	services atomic.Pointer[map[ServiceId]*Service]
	config   atomic.Pointer[Config]

	running *skipmap.FuncMap[ExternalCompactionId, runningEntry]

	compactablesToCheck chan Compactable

	maxTimeBetweenChecks time.Duration
	increment            time.Duration

	reloadMu     sync.Mutex
	lastReload   time.Time
	lastCheckAll time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewManager builds and starts a Manager: it constructs the initial
// Config, instantiates one Service per configured service (logging and
// skipping any that fail to construct), and launches the main scheduling
// loop on a dedicated goroutine (spec §4.4.1).
func NewManager(store ConfigStore, source CompactablesSource, runner CompactionRunner, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NoopRunner{}
	}

	m := &Manager{
		store:               store,
		source:              source,
		runner:              runner,
		logger:              logger,
		warner:              &deprecationWarner{},
		registry:            newExternalExecutorRegistry(),
		running:             skipmap.NewFunc[ExternalCompactionId, runningEntry](externalCompactionIdLess),
		compactablesToCheck: make(chan Compactable, 4096),
		stopCh:              make(chan struct{}),
	}

	cfg, err := BuildConfig(store, m.warner, logger)
	if err != nil {
		return nil, fmt.Errorf("compaction: initial config: %w", err)
	}
	m.config.Store(&cfg)

	services := m.buildServices(cfg, nil)
	m.services.Store(&services)

	maxTimeBetweenChecks, err := maxTimeBetweenChecksFrom(store)
	if err != nil {
		return nil, err
	}
	m.maxTimeBetweenChecks = maxTimeBetweenChecks
	m.increment = maxTimeBetweenChecks / 10
	if m.increment < time.Second {
		m.increment = time.Second
	}
	m.lastCheckAll = time.Now().Add(-maxTimeBetweenChecks)

	m.wg.Add(1)
	go m.mainLoop()

	return m, nil
}

func externalCompactionIdLess(a, b ExternalCompactionId) bool {
	return a < b
}

func maxTimeBetweenChecksFrom(store ConfigStore) (time.Duration, error) {
	set, err := store.IsPropertySet(PropMaxTimeBetweenChks, true)
	if err != nil {
		return 0, fmt.Errorf("compaction: check %s: %w", PropMaxTimeBetweenChks, err)
	}
	if !set {
		return defaultMaxTimeBetweenChecks, nil
	}
	ms, err := store.GetTimeInMillis(PropMaxTimeBetweenChks)
	if err != nil {
		return 0, fmt.Errorf("compaction: read %s: %w", PropMaxTimeBetweenChks, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// buildServices instantiates one Service per entry in cfg.Planners,
// reusing and reconfiguring any Service already present in old that shares
// the same id; construction failures are logged and that service is
// simply absent from the result (spec §4.4.1, §4.4.4).
func (m *Manager) buildServices(cfg Config, old map[ServiceId]*Service) map[ServiceId]*Service {
	out := make(map[ServiceId]*Service, len(cfg.Planners))
	for id, class := range cfg.Planners {
		rl := cfg.RateLimit(id)
		opts := cfg.Options[id]
		if existing, ok := old[id]; ok {
			if err := existing.ConfigurationChanged(class, rl, opts); err != nil {
				m.logger.Error("compaction service reconfiguration failed", "service", id, "error", err)
				continue
			}
			out[id] = existing
			continue
		}
		svc, err := newService(id, class, opts, rl, m.registry, m.runner, m.logger)
		if err != nil {
			m.logger.Error("compaction service construction failed", "service", id, "error", err)
			continue
		}
		out[id] = svc
	}
	return out
}

// ConfigurationChanged is exposed for tests and hosts that want to force a
// reload outside the main loop's own one-second throttle.
func (m *Manager) ConfigurationChanged() error {
	return m.checkForConfigChanges(true)
}

// checkForConfigChanges is guarded so only one reload runs at a time, and
// skips unless forced or at least one second has elapsed since the last
// reload (spec §4.4.4).
func (m *Manager) checkForConfigChanges(force bool) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	if !force && time.Since(m.lastReload) < time.Second {
		return nil
	}
	m.lastReload = time.Now()

	newCfg, err := BuildConfig(m.store, m.warner, m.logger)
	if err != nil {
		m.logger.Error("compaction configuration rebuild failed; retaining previous configuration", "error", err)
		return err
	}

	oldCfg := *m.config.Load()
	if oldCfg.Equal(newCfg) {
		return nil
	}

	oldServices := *m.services.Load()
	newServices := m.buildServices(newCfg, oldServices)

	for id, svc := range oldServices {
		if _, ok := newCfg.Planners[id]; !ok {
			svc.Stop()
		}
	}

	m.config.Store(&newCfg)
	m.services.Store(&newServices)

	inUse := map[ExecutorId]struct{}{}
	for _, svc := range newServices {
		svc.GetExternalExecutorsInUse(func(id ExecutorId) {
			inUse[id] = struct{}{}
		})
	}
	m.registry.retainOnly(inUse)

	return nil
}

// servicesSnapshot returns the currently published services map. Callers
// must not mutate it; a new map is published wholesale on every reload.
func (m *Manager) servicesSnapshot() map[ServiceId]*Service {
	return *m.services.Load()
}

// GetService looks up a service by id in the current snapshot.
func (m *Manager) GetService(id ServiceId) (*Service, bool) {
	svc, ok := m.servicesSnapshot()[id]
	return svc, ok
}

// GetServices returns every currently live service id.
func (m *Manager) GetServices() []ServiceId {
	snap := m.servicesSnapshot()
	ids := make([]ServiceId, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	return ids
}

// submitCompaction asks c, for every compaction kind, which service it is
// configured to route to, forcing a config reload and retrying once if the
// named service is not yet known, then falling back to DefaultService, and
// finally skipping silently if even that is absent (spec §4.4.3).
func (m *Manager) submitCompaction(c Compactable) {
	services := m.servicesSnapshot()
	for _, kind := range AllCompactionKinds() {
		svcID := c.ConfiguredService(kind)
		svc, ok := services[svcID]
		if !ok {
			if err := m.checkForConfigChanges(true); err != nil {
				m.logger.Error("forced config reload while resolving service failed", "service", svcID, "error", err)
			}
			services = m.servicesSnapshot()
			svc, ok = services[svcID]
		}
		if !ok {
			m.logger.Error("compactable named an unknown compaction service; falling back to default", "extent", c.Extent(), "service", svcID)
			svc, ok = services[DefaultService]
			if !ok {
				continue
			}
		}
		svc.Submit(kind, c, m.recheck)
	}
}

// recheck re-enqueues a compactable into compactablesToCheck; it is the
// completionNotifier every service submits jobs with (spec §4.2, §4.4.3).
// The queue tolerates duplicates, so a full queue simply drops the signal
// rather than blocking a worker goroutine (spec §9).
func (m *Manager) recheck(c Compactable) {
	select {
	case m.compactablesToCheck <- c:
	default:
		m.logger.Warn("compactablesToCheck queue full; dropping recheck signal", "extent", c.Extent())
	}
}

// mainLoop is the dedicated scheduler goroutine of spec §4.4.2. It never
// terminates on error: any failure within an iteration is caught, logged,
// and backed off via the retry policy before the loop continues.
func (m *Manager) mainLoop() {
	defer m.wg.Done()

	policy := newRetryPolicy(m.increment, m.maxTimeBetweenChecks)
	var lastAttempted Extent

	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		err := m.runIteration(&lastAttempted, policy)
		if err != nil {
			policy.retry(m.logger, lastAttempted, err)
			continue
		}
		if policy.hasFired() {
			policy = newRetryPolicy(m.increment, m.maxTimeBetweenChecks)
		}
		if err := m.checkForConfigChanges(false); err != nil {
			m.logger.Error("periodic config check failed", "error", err)
		}
	}
}

// runIteration performs exactly one pass of the main loop body: either a
// full sweep (when maxTimeBetweenChecks has elapsed since the last one) or
// a single drain of compactablesToCheck with a timeout (spec §4.4.2).
func (m *Manager) runIteration(lastAttempted *Extent, policy *retryPolicy) error {
	elapsed := time.Since(m.lastCheckAll)

	if elapsed >= m.maxTimeBetweenChecks {
		return m.sweep(lastAttempted)
	}

	select {
	case c := <-m.compactablesToCheck:
		*lastAttempted = c.Extent()
		m.submitCompaction(c)
	case <-time.After(m.maxTimeBetweenChecks - elapsed):
	case <-m.stopCh:
	}
	return nil
}

// sweep visits every compactable in a point-in-time snapshot of the
// compactables source, submits each for every kind, and reconciles
// runningExternalCompactions against what tablets still acknowledge:
// anything left in the pending set after the sweep is an orphan no tablet
// claims, and is removed (spec §4.4.2, P3).
func (m *Manager) sweep(lastAttempted *Extent) error {
	pending := map[ExternalCompactionId]struct{}{}
	m.running.Range(func(ecid ExternalCompactionId, _ runningEntry) bool {
		pending[ecid] = struct{}{}
		return true
	})

	for _, c := range m.source.Snapshot() {
		*lastAttempted = c.Extent()
		m.submitCompaction(c)
		c.ExternalCompactionIDs(func(ecid ExternalCompactionId) {
			delete(pending, ecid)
		})
	}

	for ecid := range pending {
		m.running.Delete(ecid)
	}

	m.lastCheckAll = time.Now()
	return nil
}

// ReserveExternalCompaction finds or creates the external executor for
// queueName, delegates reservation to it, and on success records the
// resulting (extent, executor) pair under the minted id in
// runningExternalCompactions (spec §4.4.5).
func (m *Manager) ReserveExternalCompaction(queueName string, priority int64, compactorId string, ecid ExternalCompactionId) (ExternalCompactionJob, error) {
	executorID := ExternalExecutorId(queueName)
	ex := m.registry.getOrCreate(executorID)
	job, err := ex.Reserve(priority, compactorId, ecid)
	if err != nil {
		return ExternalCompactionJob{}, err
	}
	m.running.Store(ecid, runningEntry{extent: job.Extent, executor: executorID})
	m.logger.Info("external compaction reserved", "ecid", ecid, "extent", job.Extent, "queue", queueName, "compactor", compactorId)
	return job, nil
}

// RegisterExternalCompaction records a (ecid, extent, executorId) the
// tablet server learned of through another path, e.g. recovery (spec
// §4.4.5).
func (m *Manager) RegisterExternalCompaction(ecid ExternalCompactionId, extent Extent, executorID ExecutorId) {
	m.running.Store(ecid, runningEntry{extent: extent, executor: executorID})
}

// CommitExternalCompaction looks up ecid; if absent it is a no-op. A
// mismatch between the stored extent and the caller-provided one is the
// fatal invariant violation of spec §3 I4. On success the tablet is
// forwarded the commit and re-enqueued for a prompt recheck, and the entry
// is removed.
func (m *Manager) CommitExternalCompaction(ecid ExternalCompactionId, extent Extent, currentTablets map[string]Compactable, fileSize, entries int64) error {
	entry, ok := m.running.Load(ecid)
	if !ok {
		return nil
	}
	if !entry.extent.Equal(extent) {
		return fmt.Errorf("%w: ecid=%s stored=%s provided=%s", ErrExtentMismatch, ecid, entry.extent, extent)
	}
	if tablet, ok := currentTablets[extent.String()]; ok {
		if err := tablet.CommitExternalCompaction(ecid, fileSize, entries); err != nil {
			m.logger.Error("tablet rejected external compaction commit", "ecid", ecid, "extent", extent, "error", err)
		}
		m.recheck(tablet)
	}
	m.running.Delete(ecid)
	return nil
}

// ExternalCompactionFailed is symmetric to CommitExternalCompaction but
// without size/entries (spec §4.4.5).
func (m *Manager) ExternalCompactionFailed(ecid ExternalCompactionId, extent Extent, currentTablets map[string]Compactable) error {
	entry, ok := m.running.Load(ecid)
	if !ok {
		return nil
	}
	if !entry.extent.Equal(extent) {
		return fmt.Errorf("%w: ecid=%s stored=%s provided=%s", ErrExtentMismatch, ecid, entry.extent, extent)
	}
	if tablet, ok := currentTablets[extent.String()]; ok {
		if err := tablet.ExternalCompactionFailed(ecid); err != nil {
			m.logger.Error("tablet rejected external compaction failure", "ecid", ecid, "extent", extent, "error", err)
		}
		m.recheck(tablet)
	}
	m.running.Delete(ecid)
	return nil
}

// CompactableClosed removes every id in ecids from
// runningExternalCompactions and forwards CompactableClosed to each
// service in servicesUsed, dropping any pending internal state for the
// vanished tablet (spec §4.4.5).
func (m *Manager) CompactableClosed(extent Extent, servicesUsed []ServiceId, ecids []ExternalCompactionId) {
	for _, ecid := range ecids {
		m.running.Delete(ecid)
	}
	services := m.servicesSnapshot()
	for _, id := range servicesUsed {
		if svc, ok := services[id]; ok {
			svc.CompactableClosed(extent)
		}
	}
}

// GetCompactionsRunning sums per-service internal-running counts plus the
// size of runningExternalCompactions (spec §4.4.6).
func (m *Manager) GetCompactionsRunning() int64 {
	var n int64
	for _, svc := range m.servicesSnapshot() {
		n += svc.GetCompactionsRunning()
	}
	return n + int64(m.running.Len())
}

// GetCompactionsQueued sums per-service internal-queued counts plus
// per-external-executor queued counts (spec §4.4.6).
func (m *Manager) GetCompactionsQueued() int64 {
	var n int64
	for _, svc := range m.servicesSnapshot() {
		n += svc.GetCompactionsQueued()
	}
	m.registry.forEach(func(_ ExecutorId, ex *ExternalCompactionExecutor) {
		n += int64(ex.QueuedCount())
	})
	return n
}

// ExternalMetric is one external executor's current queued/running counts,
// the record shape GetExternalMetrics returns (spec §4.4.6).
type ExternalMetric struct {
	Executor ExecutorId
	Queued   int64
	Running  int64
}

// GetExternalMetrics returns one record per external executor id that is
// either registered in the registry or referenced by a running entry.
func (m *Manager) GetExternalMetrics() []ExternalMetric {
	running := map[ExecutorId]int64{}
	m.running.Range(func(_ ExternalCompactionId, e runningEntry) bool {
		running[e.executor]++
		return true
	})

	out := []ExternalMetric{}
	seen := map[ExecutorId]struct{}{}
	m.registry.forEach(func(id ExecutorId, ex *ExternalCompactionExecutor) {
		seen[id] = struct{}{}
		out = append(out, ExternalMetric{Executor: id, Queued: int64(ex.QueuedCount()), Running: running[id]})
	})
	for id, n := range running {
		if _, ok := seen[id]; !ok {
			out = append(out, ExternalMetric{Executor: id, Running: n})
		}
	}
	return out
}

// GetCompactionQueueSummaries returns Summarize() across every registered
// external executor, for the remote-compactor RPC surface (spec §6).
func (m *Manager) GetCompactionQueueSummaries() []QueueSummary {
	var out []QueueSummary
	m.registry.forEach(func(_ ExecutorId, ex *ExternalCompactionExecutor) {
		out = append(out, ex.Summarize()...)
	})
	return out
}

// Stop shuts down the main loop and every live service. Stop does not
// block on in-flight external compactions; it only stops internal worker
// pools (spec §5, no user-facing cancellation for external work).
func (m *Manager) Stop(ctx context.Context) {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
	for _, svc := range m.servicesSnapshot() {
		svc.Stop()
	}
}
