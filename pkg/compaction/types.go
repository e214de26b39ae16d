// Package compaction implements the scheduling nucleus of a tablet server:
// it decides when a tablet is offered for compaction, which service handles
// it, and how internal and external compaction workers share the load.
package compaction

import (
	"fmt"

	"tabletd/pkg/types"
)

// ServiceId names a configured compaction service, e.g. "default" or "root".
type ServiceId string

// DefaultService is the fallback service name used when a tablet names a
// service that does not exist in the current configuration.
const DefaultService ServiceId = "default"

// CompactionKind is one of the closed set of reasons a compaction occurs.
// The manager always iterates every kind for every compactable it visits.
type CompactionKind int

const (
	KindSystem CompactionKind = iota
	KindSelector
	KindUser
	KindChop
)

func (k CompactionKind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindSelector:
		return "selector"
	case KindUser:
		return "user"
	case KindChop:
		return "chop"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// AllCompactionKinds returns every compaction kind, in a stable order. The
// main loop and submitCompaction iterate this slice, never a subset.
func AllCompactionKinds() []CompactionKind {
	return []CompactionKind{KindSystem, KindSelector, KindUser, KindChop}
}

// ExecutorKind distinguishes internal (in-process worker pool) executors
// from external (remote-compactor) executors.
type ExecutorKind int

const (
	ExecutorInternal ExecutorKind = iota
	ExecutorExternal
)

// ExecutorId identifies either an internal executor (scoped to one service
// by name) or an external executor (a queue name shared across services).
// It is a plain comparable struct so it can be used as a map key directly.
type ExecutorId struct {
	Kind ExecutorKind
	// Service is set only for ExecutorInternal.
	Service ServiceId
	// Name is the executor/queue name; for ExecutorExternal it is the
	// queue name tablets and remote compactors agree on out of band.
	Name string
}

func InternalExecutorId(service ServiceId, name string) ExecutorId {
	return ExecutorId{Kind: ExecutorInternal, Service: service, Name: name}
}

func ExternalExecutorId(queueName string) ExecutorId {
	return ExecutorId{Kind: ExecutorExternal, Name: queueName}
}

func (e ExecutorId) String() string {
	if e.Kind == ExecutorExternal {
		return "external:" + e.Name
	}
	return "internal:" + string(e.Service) + ":" + e.Name
}

// ExternalCompactionId is an opaque token minted when an external job is
// reserved by a remote compactor process.
type ExternalCompactionId string

// Extent is a tablet's identity: a table id plus a half-open key range.
// An empty EndRow means "no upper bound" (the last tablet of the table).
type Extent struct {
	TableID  string
	StartRow types.Key // exclusive; nil means the table's first row
	EndRow   types.Key // inclusive; nil means unbounded
}

func (e Extent) Equal(o Extent) bool {
	return e.TableID == o.TableID &&
		string(e.StartRow) == string(o.StartRow) &&
		string(e.EndRow) == string(o.EndRow)
}

func (e Extent) String() string {
	return fmt.Sprintf("%s[%s,%s]", e.TableID, string(e.StartRow), string(e.EndRow))
}

// Compactable is a tablet's view of itself as a participant in compaction
// scheduling. It is consumed, never implemented, by this package.
type Compactable interface {
	Extent() Extent
	// ConfiguredService returns the service id this tablet is configured
	// to route the given compaction kind to.
	ConfiguredService(kind CompactionKind) ServiceId
	// ExternalCompactionIDs invokes sink once per external compaction id
	// this tablet currently acknowledges as running against it.
	ExternalCompactionIDs(sink func(ExternalCompactionId))
	// Closed reports whether the tablet has since been unloaded; executors
	// reserving work skip offers whose tablet reports Closed() == true.
	Closed() bool
	CommitExternalCompaction(ecid ExternalCompactionId, fileSize, entries int64) error
	ExternalCompactionFailed(ecid ExternalCompactionId) error
}

// CompactablesSource is a repeatedly-iterable, weakly consistent collection
// of the Compactables currently hosted by this tablet server.
type CompactablesSource interface {
	// Snapshot returns the compactables live at the moment of the call.
	// The main loop sweeps this snapshot rather than a live iterator, so a
	// shard enrolled mid-sweep is picked up on the next sweep instead.
	Snapshot() []Compactable
}
