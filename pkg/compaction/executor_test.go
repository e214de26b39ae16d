package compaction

import "testing"

func TestExternalCompactionExecutorReservesHighestPriorityFirst(t *testing.T) {
	ex := newExternalCompactionExecutor(ExternalExecutorId("q1"))

	low := newFakeCompactable("low", "default")
	high := newFakeCompactable("high", "default")

	ex.Submit(Job{Compactable: low, Priority: 1}, nil)
	ex.Submit(Job{Compactable: high, Priority: 5}, nil)

	job, err := ex.Reserve(0, "c-1", ExternalCompactionId("E1"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if job.Extent.TableID != "high" {
		t.Fatalf("expected the higher-priority offer first, got %s", job.Extent.TableID)
	}

	job2, err := ex.Reserve(0, "c-1", ExternalCompactionId("E2"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if job2.Extent.TableID != "low" {
		t.Fatalf("expected the remaining offer second, got %s", job2.Extent.TableID)
	}
}

func TestExternalCompactionExecutorSkipsClosedTablet(t *testing.T) {
	ex := newExternalCompactionExecutor(ExternalExecutorId("q1"))

	closed := newFakeCompactable("closed", "default")
	closed.setClosed(true)
	live := newFakeCompactable("live", "default")

	ex.Submit(Job{Compactable: closed, Priority: 10}, nil)
	ex.Submit(Job{Compactable: live, Priority: 1}, nil)

	job, err := ex.Reserve(0, "c-1", ExternalCompactionId("E1"))
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if job.Extent.TableID != "live" {
		t.Fatalf("expected the closed tablet's offer to be skipped, got %s", job.Extent.TableID)
	}
}

func TestExternalCompactionExecutorReserveRespectsMinimumPriority(t *testing.T) {
	ex := newExternalCompactionExecutor(ExternalExecutorId("q1"))
	ex.Submit(Job{Compactable: newFakeCompactable("t", "default"), Priority: 1}, nil)

	_, err := ex.Reserve(5, "c-1", ExternalCompactionId("E1"))
	if err != ErrNoJobAvailable {
		t.Fatalf("expected ErrNoJobAvailable when nothing meets the priority floor, got %v", err)
	}
}

// P9: GetCompactionQueueSummaries reflects a Submit before it is reserved,
// and stops reflecting it exactly when Reserve removes it.
func TestP9QueueSummariesReflectSubmitAndReserve(t *testing.T) {
	ex := newExternalCompactionExecutor(ExternalExecutorId("q1"))
	c := newFakeCompactable("t", "default")

	if n := ex.QueuedCount(); n != 0 {
		t.Fatalf("expected empty queue before Submit, got %d", n)
	}

	ex.Submit(Job{Compactable: c, Priority: 7}, nil)
	if n := ex.QueuedCount(); n != 1 {
		t.Fatalf("expected queue depth 1 right after Submit, got %d", n)
	}
	summaries := ex.Summarize()
	if len(summaries) != 1 || summaries[0].Priority != 7 || summaries[0].Queued != 1 {
		t.Fatalf("unexpected summaries before reservation: %+v", summaries)
	}

	if _, err := ex.Reserve(0, "c-1", ExternalCompactionId("E1")); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if n := ex.QueuedCount(); n != 0 {
		t.Fatalf("expected queue depth 0 immediately after Reserve, got %d", n)
	}
	if summaries := ex.Summarize(); len(summaries) != 0 {
		t.Fatalf("expected no summaries after the only offer was reserved, got %+v", summaries)
	}
}

func TestExternalExecutorRegistryGetOrCreateIsStable(t *testing.T) {
	r := newExternalExecutorRegistry()
	id := ExternalExecutorId("q1")

	a := r.getOrCreate(id)
	b := r.getOrCreate(id)
	if a != b {
		t.Fatalf("expected getOrCreate to return the same instance for the same id")
	}
	if r.len() != 1 {
		t.Fatalf("expected registry length 1, got %d", r.len())
	}
}

func TestExternalExecutorRegistryRetainOnly(t *testing.T) {
	r := newExternalExecutorRegistry()
	keep := ExternalExecutorId("keep")
	drop := ExternalExecutorId("drop")
	r.getOrCreate(keep)
	r.getOrCreate(drop)

	r.retainOnly(map[ExecutorId]struct{}{keep: {}})

	if _, ok := r.get(keep); !ok {
		t.Fatalf("expected %v to survive retainOnly", keep)
	}
	if _, ok := r.get(drop); ok {
		t.Fatalf("expected %v to be dropped by retainOnly", drop)
	}
}
