// Package engine is the composition root binding the local LSM store to
// the compaction scheduler: it wraps the store as a Compactable, supplies
// it to a compaction.Manager, and executes the jobs the manager hands
// back against the store's own level-compaction hook.
package engine

import (
	"sync"

	"tabletd/pkg/compaction"
	"tabletd/pkg/store"
)

// localStore is the subset of *store.Store this package depends on,
// narrowed so tests can supply a fake.
type localStore interface {
	NeedsCompaction() (level int, ok bool)
	CompactLevel(level int) (int64, error)
}

// Tablet adapts one local store to compaction.Compactable. A tablet
// server in the full tablet-oriented model hosts many of these; this
// process hosts exactly one, covering the whole keyspace this node owns
// under the hash ring.
type Tablet struct {
	extent compaction.Extent
	store  localStore

	mu      sync.Mutex
	closed  bool
	service compaction.ServiceId
}

// NewTablet wraps db as a compactable tablet named name, routed to
// service for every compaction kind (this node has no per-kind routing
// configuration of its own to express).
func NewTablet(name string, db *store.Store, service compaction.ServiceId) *Tablet {
	if service == "" {
		service = compaction.DefaultService
	}
	return &Tablet{
		extent:  compaction.Extent{TableID: name},
		store:   db,
		service: service,
	}
}

func (t *Tablet) Extent() compaction.Extent {
	return t.extent
}

func (t *Tablet) ConfiguredService(compaction.CompactionKind) compaction.ServiceId {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.service
}

// ExternalCompactionIDs never invokes sink: this node does not hand work
// to out-of-process compactors yet, so it never claims any are running.
func (t *Tablet) ExternalCompactionIDs(sink func(compaction.ExternalCompactionId)) {}

func (t *Tablet) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close marks the tablet closed; a subsequent sweep's reservations will
// skip offers against it and the manager's CompactableClosed should be
// called alongside this to drop scheduler-side state.
func (t *Tablet) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// CommitExternalCompaction and ExternalCompactionFailed are no-ops: there
// is no external executor in play for the single-store topology this
// package wires today. They exist so Tablet satisfies compaction.Compactable
// in full, ready for when remote compactors are added.
func (t *Tablet) CommitExternalCompaction(compaction.ExternalCompactionId, int64, int64) error {
	return nil
}

func (t *Tablet) ExternalCompactionFailed(compaction.ExternalCompactionId) error {
	return nil
}

// NeedsCompaction exposes the wrapped store's own level check, consumed by
// Runner to decide whether running a job would do anything.
func (t *Tablet) NeedsCompaction() (level int, ok bool) {
	return t.store.NeedsCompaction()
}

// CompactLevel runs the wrapped store's compaction for level.
func (t *Tablet) CompactLevel(level int) (int64, error) {
	return t.store.CompactLevel(level)
}
