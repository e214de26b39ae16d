package engine

import (
	"testing"

	"tabletd/pkg/compaction"
)

func TestTabletSetSnapshotReflectsAddAndRemove(t *testing.T) {
	t1 := NewTablet("t1", nil, "")
	t2 := NewTablet("t2", nil, "")
	set := NewTabletSet(t1)

	if got := set.Snapshot(); len(got) != 1 {
		t.Fatalf("expected one tablet after construction, got %d", len(got))
	}

	set.Add(t2)
	if got := set.Snapshot(); len(got) != 2 {
		t.Fatalf("expected two tablets after Add, got %d", len(got))
	}

	set.Remove(t1)
	got := set.Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected one tablet after Remove, got %d", len(got))
	}
	if !got[0].Extent().Equal(t2.Extent()) {
		t.Fatalf("expected the surviving tablet to be t2, got %v", got[0].Extent())
	}
}

func TestTabletSetByExtentKeysByExtent(t *testing.T) {
	t1 := NewTablet("t1", nil, "")
	t2 := NewTablet("t2", nil, "")
	set := NewTabletSet(t1, t2)

	byExtent := set.ByExtent()
	if len(byExtent) != 2 {
		t.Fatalf("expected two entries, got %d", len(byExtent))
	}
	if c, ok := byExtent[compaction.Extent{TableID: "t1"}.String()]; !ok || c.Extent().TableID != "t1" {
		t.Fatalf("expected t1's extent to map back to t1, got %+v ok=%v", c, ok)
	}
}
