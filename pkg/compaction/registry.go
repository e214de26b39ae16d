package compaction

import "github.com/zhangyunhao116/skipmap"

// externalExecutorRegistry is a concurrent map from ExecutorId to its
// ExternalCompactionExecutor, created lazily on first reference and
// retained only while some live service lists it as in use (spec §3 I2,
// I6). Backed by skipmap, the same concurrent-map primitive pkg/memtable
// already depends on elsewhere in this module.
type externalExecutorRegistry struct {
	m *skipmap.FuncMap[ExecutorId, *ExternalCompactionExecutor]
}

func newExternalExecutorRegistry() *externalExecutorRegistry {
	return &externalExecutorRegistry{
		m: skipmap.NewFunc[ExecutorId, *ExternalCompactionExecutor](executorIdLess),
	}
}

func executorIdLess(a, b ExecutorId) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Service != b.Service {
		return a.Service < b.Service
	}
	return a.Name < b.Name
}

// getOrCreate returns the executor for id, creating it on first reference.
func (r *externalExecutorRegistry) getOrCreate(id ExecutorId) *ExternalCompactionExecutor {
	if actual, ok := r.m.Load(id); ok {
		return actual
	}
	actual, _ := r.m.LoadOrStore(id, newExternalCompactionExecutor(id))
	return actual
}

func (r *externalExecutorRegistry) get(id ExecutorId) (*ExternalCompactionExecutor, bool) {
	return r.m.Load(id)
}

// retainOnly keeps entries whose id is in keep, discarding the rest. Called
// after a hot reload recomputes the set of external executors any live
// service still routes to (spec §4.4.4).
func (r *externalExecutorRegistry) retainOnly(keep map[ExecutorId]struct{}) {
	var toRemove []ExecutorId
	r.m.Range(func(id ExecutorId, _ *ExternalCompactionExecutor) bool {
		if _, ok := keep[id]; !ok {
			toRemove = append(toRemove, id)
		}
		return true
	})
	for _, id := range toRemove {
		r.m.Delete(id)
	}
}

func (r *externalExecutorRegistry) forEach(f func(ExecutorId, *ExternalCompactionExecutor)) {
	r.m.Range(func(id ExecutorId, ex *ExternalCompactionExecutor) bool {
		f(id, ex)
		return true
	})
}

func (r *externalExecutorRegistry) len() int {
	return r.m.Len()
}
