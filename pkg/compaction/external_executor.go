package compaction

import (
	"container/heap"
	"sync"
)

// externalOffer is one job sitting in an ExternalCompactionExecutor's queue,
// ordered by (priority desc, submit sequence asc) so that within a priority
// tier, offers are reserved FIFO.
type externalOffer struct {
	job      Job
	notifier func(Compactable)
	priority int64
	seq      int64
}

type offerHeap []*externalOffer

func (h offerHeap) Len() int { return len(h) }
func (h offerHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h offerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *offerHeap) Push(x any)        { *h = append(*h, x.(*externalOffer)) }
func (h *offerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ExternalCompactionJob is what Reserve hands back to a remote compactor.
type ExternalCompactionJob struct {
	ID          ExternalCompactionId
	Extent      Extent
	Job         Job
	CompactorId string
}

// QueueSummary is one priority tier's queue depth, reported for remote
// discovery via Summarize.
type QueueSummary struct {
	Queue    ExecutorId
	Priority int64
	Queued   int
}

// ExternalCompactionExecutor holds the priority queue of pending external
// jobs for one named queue, reserved by remote compactor processes.
type ExternalCompactionExecutor struct {
	id ExecutorId

	mu      sync.Mutex
	heap    offerHeap
	nextSeq int64
}

func newExternalCompactionExecutor(id ExecutorId) *ExternalCompactionExecutor {
	return &ExternalCompactionExecutor{id: id}
}

func (e *ExternalCompactionExecutor) ID() ExecutorId {
	return e.id
}

// Submit accepts an offer from any goroutine (a planner's Submit path).
func (e *ExternalCompactionExecutor) Submit(job Job, notifier func(Compactable)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSeq++
	heap.Push(&e.heap, &externalOffer{
		job:      job,
		notifier: notifier,
		priority: job.Priority,
		seq:      e.nextSeq,
	})
}

// Reserve dequeues the highest-priority offer whose priority is >= the
// requested priority and whose tablet still reports itself live, binding
// ecid to it. It returns ErrNoJobAvailable if nothing qualifies.
func (e *ExternalCompactionExecutor) Reserve(priority int64, compactorId string, ecid ExternalCompactionId) (ExternalCompactionJob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for e.heap.Len() > 0 {
		top := e.heap[0]
		if top.priority < priority {
			break
		}
		heap.Pop(&e.heap)
		if top.job.Compactable.Closed() {
			continue
		}
		if top.notifier != nil {
			defer top.notifier(top.job.Compactable)
		}
		return ExternalCompactionJob{
			ID:          ecid,
			Extent:      top.job.Compactable.Extent(),
			Job:         top.job,
			CompactorId: compactorId,
		}, nil
	}
	return ExternalCompactionJob{}, ErrNoJobAvailable
}

// Summarize returns queued-count aggregated by priority tier, for remote
// discovery of which queues currently have available work.
func (e *ExternalCompactionExecutor) Summarize() []QueueSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	byPriority := map[int64]int{}
	for _, o := range e.heap {
		byPriority[o.priority]++
	}
	out := make([]QueueSummary, 0, len(byPriority))
	for p, n := range byPriority {
		out = append(out, QueueSummary{Queue: e.id, Priority: p, Queued: n})
	}
	return out
}

// QueuedCount returns the total number of offers currently queued, used by
// manager-level metrics aggregation.
func (e *ExternalCompactionExecutor) QueuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heap.Len()
}
