package compaction

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// PlannerClassDefault is the planner factory key the legacy synthesis path
// wires up, standing in for the original's DefaultCompactionPlanner class.
const PlannerClassDefault = "default"

// Config is an immutable snapshot of compaction service configuration,
// built from a flat ConfigStore view under the "compactionService." prefix.
// Value equality and hashing are defined over (Planners, Options,
// RateLimits) only; DefaultRateLimit is a fallback, not part of identity.
type Config struct {
	Planners         map[ServiceId]string
	Options          map[ServiceId]map[string]string
	RateLimits       map[ServiceId]int64
	DefaultRateLimit int64
}

// RateLimit returns the effective rate limit for a service: its own
// configured limit if set, otherwise DefaultRateLimit.
func (c Config) RateLimit(service ServiceId) int64 {
	if rl, ok := c.RateLimits[service]; ok {
		return rl
	}
	return c.DefaultRateLimit
}

// Equal compares two configs for scheduling-relevant equality, per spec §4.1:
// DefaultRateLimit is deliberately excluded.
func (c Config) Equal(o Config) bool {
	return stringMapEqual(c.Planners, o.Planners) &&
		optionsEqual(c.Options, o.Options) &&
		int64MapEqual(c.RateLimits, o.RateLimits)
}

func stringMapEqual[K comparable](a, b map[K]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func int64MapEqual[K comparable](a, b map[K]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func optionsEqual(a, b map[ServiceId]map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		bv, ok := b[k]
		if !ok || !stringMapEqual(v, bv) {
			return false
		}
	}
	return true
}

// deprecationWarner deduplicates warning log lines by exact message text,
// matching the original's single lastDeprecationWarning field.
type deprecationWarner struct {
	mu   sync.Mutex
	last string
}

func (w *deprecationWarner) warn(logger *slog.Logger, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if msg == w.last {
		return
	}
	w.last = msg
	logger.Warn(msg)
}

// BuildConfig constructs a Config from the current state of store. warner
// deduplicates the legacy-property warnings across repeated calls (the
// manager keeps one warner for its whole lifetime); logger receives them.
func BuildConfig(store ConfigStore, warner *deprecationWarner, logger *slog.Logger) (Config, error) {
	configs, err := store.GetAllPropertiesWithPrefix(PropServicePrefix)
	if err != nil {
		return Config{}, fmt.Errorf("compaction: read %s*: %w", PropServicePrefix, err)
	}

	configs, err = applyLegacyMaxConcurrent(store, configs, warner, logger)
	if err != nil {
		return Config{}, err
	}

	planners := map[ServiceId]string{}
	options := map[ServiceId]map[string]string{}
	rateLimits := map[ServiceId]int64{}

	for prop, val := range configs {
		suffix := strings.TrimPrefix(prop, PropServicePrefix)
		tokens := strings.Split(suffix, ".")
		switch {
		case len(tokens) == 4 && tokens[1] == "planner" && tokens[2] == "opts":
			svc := ServiceId(tokens[0])
			if options[svc] == nil {
				options[svc] = map[string]string{}
			}
			options[svc][tokens[3]] = val
		case len(tokens) == 2 && tokens[1] == "planner":
			planners[ServiceId(tokens[0])] = val
		case len(tokens) == 3 && tokens[1] == "rate" && tokens[2] == "limit":
			limit, err := parseBytesPerSecond(val)
			if err != nil {
				return Config{}, fmt.Errorf("%w: %s=%s: %v", ErrMalformedConfig, prop, val, err)
			}
			// A per-service rate.limit property never collides with a
			// canonical, globally-registered property in this flat
			// key/value model, so the "is this a known property the
			// deprecated global should defer to" branch of the original
			// is always taken here: a per-service limit always applies
			// when present, regardless of the deprecated global's state.
			rateLimits[ServiceId(tokens[0])] = limit
		default:
			return Config{}, fmt.Errorf("%w: %s", ErrMalformedConfig, prop)
		}
	}

	defaultRateLimit, err := defaultThroughput(store)
	if err != nil {
		return Config{}, err
	}

	for svc := range options {
		if _, ok := planners[svc]; !ok {
			return Config{}, fmt.Errorf("%w: service %q has options but no planner", ErrIncompleteConfig, svc)
		}
	}

	return Config{
		Planners:         planners,
		Options:          options,
		RateLimits:       rateLimits,
		DefaultRateLimit: defaultRateLimit,
	}, nil
}

// applyLegacyMaxConcurrent implements the deprecated "max concurrent"
// synthesis of spec §4.1: if set and no explicit default-service properties
// exist, it fabricates a single-executor default service; if set alongside
// explicit default-service properties, the explicit ones win and a
// different warning fires. Both warnings are deduplicated by text.
func applyLegacyMaxConcurrent(store ConfigStore, configs map[string]string, warner *deprecationWarner, logger *slog.Logger) (map[string]string, error) {
	deprecatedSet, err := store.IsPropertySet(PropDeprecatedMaxConc, true)
	if err != nil {
		return nil, fmt.Errorf("compaction: check %s: %w", PropDeprecatedMaxConc, err)
	}
	if !deprecatedSet {
		return configs, nil
	}

	defaultPrefix := PropServicePrefix + string(DefaultService) + "."
	defaultServicePropsSet := false
	for key := range configs {
		if strings.HasPrefix(key, defaultPrefix) {
			defaultServicePropsSet = true
			break
		}
	}

	if defaultServicePropsSet {
		warner.warn(logger, fmt.Sprintf(
			"The deprecated property %s was set. Properties with the prefix %s "+
				"were also set, which replace the deprecated properties. The deprecated "+
				"property was therefore ignored.", PropDeprecatedMaxConc, defaultPrefix))
		return configs, nil
	}

	raw, ok, err := store.GetProperty(PropDeprecatedMaxConc)
	if err != nil {
		return nil, fmt.Errorf("compaction: read %s: %w", PropDeprecatedMaxConc, err)
	}
	if !ok {
		return configs, nil
	}
	numThreads, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%s: %v", ErrMalformedConfig, PropDeprecatedMaxConc, raw, err)
	}

	merged := make(map[string]string, len(configs)+2)
	for k, v := range configs {
		merged[k] = v
	}
	merged[defaultPrefix+"planner"] = PlannerClassDefault
	merged[defaultPrefix+"planner.opts.executors"] = deprecatedExecutorSpecJSON(numThreads)

	warner.warn(logger, fmt.Sprintf(
		"The deprecated property %s was set. Properties with the prefix %s "+
			"were not set, these should replace the deprecated properties. The old "+
			"properties were automatically mapped to the new properties in process, "+
			"synthesizing: planner=%s, executors=%s.",
		PropDeprecatedMaxConc, defaultPrefix, PlannerClassDefault, merged[defaultPrefix+"planner.opts.executors"]))

	return merged, nil
}

func defaultThroughput(store ConfigStore) (int64, error) {
	set, err := store.IsPropertySet(PropDeprecatedThroughp, true)
	if err != nil {
		return 0, fmt.Errorf("compaction: check %s: %w", PropDeprecatedThroughp, err)
	}
	if !set {
		return defaultThroughputBytes, nil
	}
	raw, ok, err := store.GetProperty(PropDeprecatedThroughp)
	if err != nil {
		return 0, fmt.Errorf("compaction: read %s: %w", PropDeprecatedThroughp, err)
	}
	if !ok {
		return defaultThroughputBytes, nil
	}
	return parseBytesPerSecond(raw)
}

// parseBytesPerSecond accepts plain integers and the "10M"/"5K"/"1G"
// memory-size shorthand the original's ConfigurationTypeHelper understands.
func parseBytesPerSecond(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty value")
	}
	mult := int64(1)
	last := raw[len(raw)-1]
	switch last {
	case 'K', 'k':
		mult = 1 << 10
		raw = raw[:len(raw)-1]
	case 'M', 'm':
		mult = 1 << 20
		raw = raw[:len(raw)-1]
	case 'G', 'g':
		mult = 1 << 30
		raw = raw[:len(raw)-1]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}
