package engine

import (
	"sync"

	"tabletd/pkg/compaction"
)

// TabletSet is a CompactablesSource over the tablets this node currently
// hosts. Membership changes rarely (one entry per local store today), so a
// mutex-guarded slice is simpler than the concurrent maps the scheduler
// itself uses for its hot paths.
type TabletSet struct {
	mu      sync.RWMutex
	tablets []*Tablet
}

func NewTabletSet(tablets ...*Tablet) *TabletSet {
	return &TabletSet{tablets: append([]*Tablet(nil), tablets...)}
}

func (s *TabletSet) Add(t *Tablet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tablets = append(s.tablets, t)
}

func (s *TabletSet) Remove(t *Tablet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.tablets {
		if existing == t {
			s.tablets = append(s.tablets[:i], s.tablets[i+1:]...)
			return
		}
	}
}

// ByExtent returns the current tablets keyed by their extent's canonical
// string form (Extent itself holds byte slices and so cannot be a map
// key), the shape internal/compactrpc's commit/fail handlers need to
// resolve an extent to a live Compactable.
func (s *TabletSet) ByExtent() map[string]compaction.Compactable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]compaction.Compactable, len(s.tablets))
	for _, t := range s.tablets {
		out[t.Extent().String()] = t
	}
	return out
}

// Snapshot satisfies compaction.CompactablesSource: the main loop sweeps
// this point-in-time slice rather than a live view.
func (s *TabletSet) Snapshot() []compaction.Compactable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]compaction.Compactable, len(s.tablets))
	for i, t := range s.tablets {
		out[i] = t
	}
	return out
}
