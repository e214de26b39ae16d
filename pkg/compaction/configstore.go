package compaction

import "time"

// ConfigStore is the process configuration store, consumed only through
// this narrow boundary (spec §6). Concrete implementations — ZooKeeper- and
// YAML-backed — live in package configstore and know nothing about
// compaction semantics.
type ConfigStore interface {
	// GetAllPropertiesWithPrefix returns every property whose key starts
	// with prefix, keyed by the full property name.
	GetAllPropertiesWithPrefix(prefix string) (map[string]string, error)
	// IsPropertySet reports whether prop has an explicit value. When
	// includeDefaults is true a property equal to its documented default
	// still counts as "set" if it was written by a user/operator; when
	// false, only a value differing from the default counts.
	IsPropertySet(prop string, includeDefaults bool) (bool, error)
	// GetTimeInMillis parses a duration-valued property (e.g. "5s", "1m")
	// and returns it in milliseconds.
	GetTimeInMillis(prop string) (int64, error)
	// GetProperty returns the raw value of a single property, and whether
	// it was present at all. This supplements the three boundary methods
	// spec.md §6 names, which are not sufficient on their own to read the
	// deprecated scalar properties the legacy-synthesis path needs.
	GetProperty(prop string) (value string, ok bool, err error)
}

// legacy/well-known property names, carried over from the original's
// org.apache.accumulo.core.conf.Property constants, renamed to fit this
// repository's naming.
const (
	PropServicePrefix      = "compactionService."
	PropDeprecatedMaxConc  = "tserv.compaction.major.service.default.concurrent"
	PropDeprecatedThroughp = "tserv.majc.throughput"
	PropMaxTimeBetweenChks = "tserv.majc.delay"

	defaultMaxTimeBetweenChecks = 30 * time.Minute
	defaultThroughputBytes      = 10 * 1024 * 1024 // 10 MB/s, mirrors the planner's own built-in default
)
