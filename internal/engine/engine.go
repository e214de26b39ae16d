package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tabletd/pkg/compaction"
	"tabletd/pkg/metrics"
	"tabletd/pkg/store"
)

// metricsPublishInterval is the cadence PublishMetrics is driven on by the
// background goroutine Start spawns when a collector is supplied. A
// LoggingCollector (or whatever scrape-backed Collector replaces it) never
// needs a faster sample than this to stay useful for an operator watching
// the logs.
const metricsPublishInterval = 15 * time.Second

// Engine wires the local LSM store to the compaction scheduler: one Tablet
// per store, a TabletSet supplying them to the manager, and a Runner
// executing whatever jobs the manager schedules.
type Engine struct {
	Manager *compaction.Manager
	Tablets *TabletSet

	metricsAdapter *compaction.MetricsAdapter
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

// Start builds the compaction manager over db (named name, routed to
// service), and, if collector is non-nil, registers a metrics adapter
// against it and starts a goroutine publishing to it every
// metricsPublishInterval until Stop is called.
func Start(cfgStore compaction.ConfigStore, db *store.Store, name string, service compaction.ServiceId, collector metrics.Collector, logger *slog.Logger) (*Engine, error) {
	tablets := NewTabletSet(NewTablet(name, db, service))

	mgr, err := compaction.NewManager(cfgStore, tablets, NewRunner(), logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{Manager: mgr, Tablets: tablets, stopCh: make(chan struct{})}
	if collector != nil {
		e.metricsAdapter = compaction.NewMetricsAdapter(mgr, collector)
		e.wg.Add(1)
		go e.publishMetricsLoop()
	}
	return e, nil
}

// publishMetricsLoop ticks PublishMetrics until stopCh is closed, the same
// time.NewTicker-plus-select shape the teacher's own Raft tick loop used.
func (e *Engine) publishMetricsLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(metricsPublishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.PublishMetrics()
		}
	}
}

// PublishMetrics samples and pushes current scheduler metrics, a no-op if
// Start was called without a collector.
func (e *Engine) PublishMetrics() {
	if e.metricsAdapter != nil {
		e.metricsAdapter.Publish()
	}
}

func (e *Engine) Stop(ctx context.Context) {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	e.wg.Wait()
	e.Manager.Stop(ctx)
}
