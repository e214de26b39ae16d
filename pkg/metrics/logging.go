package metrics

import "log/slog"

// LoggingCollector is a Collector that logs every sample through slog. It
// is meant for hosts that have not wired a real metrics backend yet, not
// for production scraping.
type LoggingCollector struct {
	logger *slog.Logger
}

func NewLoggingCollector(logger *slog.Logger) *LoggingCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingCollector{logger: logger}
}

func (c *LoggingCollector) IncCounter(name string, labels map[string]string, delta float64) {
	c.logger.Debug("metric counter", "name", name, "labels", labels, "delta", delta)
}

func (c *LoggingCollector) SetGauge(name string, labels map[string]string, value float64) {
	c.logger.Debug("metric gauge", "name", name, "labels", labels, "value", value)
}

func (c *LoggingCollector) ObserveHistogram(name string, labels map[string]string, value float64) {
	c.logger.Debug("metric histogram", "name", name, "labels", labels, "value", value)
}
