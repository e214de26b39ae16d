package compaction

import "tabletd/pkg/metrics"

// MetricsAdapter is the pull-model supplier of external-executor metrics
// registered with a metrics sink (spec §2.6, §4.4.6). It holds no state of
// its own; each Publish call samples the manager fresh.
type MetricsAdapter struct {
	manager   *Manager
	collector metrics.Collector
}

// NewMetricsAdapter wires manager to collector. Hosts call Publish on
// whatever cadence their metrics exporter scrapes on.
func NewMetricsAdapter(manager *Manager, collector metrics.Collector) *MetricsAdapter {
	return &MetricsAdapter{manager: manager, collector: collector}
}

// Publish samples the manager's current running/queued totals and every
// external executor's per-id counts, and pushes them to the collector.
func (a *MetricsAdapter) Publish() {
	a.collector.SetGauge("compactions_running", nil, float64(a.manager.GetCompactionsRunning()))
	a.collector.SetGauge("compactions_queued", nil, float64(a.manager.GetCompactionsQueued()))

	for _, em := range a.manager.GetExternalMetrics() {
		labels := map[string]string{"executor": em.Executor.String()}
		a.collector.SetGauge("external_compactions_queued", labels, float64(em.Queued))
		a.collector.SetGauge("external_compactions_running", labels, float64(em.Running))
	}
}
