package compaction

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// fakeStore is a minimal in-memory ConfigStore, standing in for
// pkg/configstore's YAML/ZK backends so these tests never touch a file or
// a network connection.
type fakeStore struct {
	mu    sync.Mutex
	props map[string]string
}

func newFakeStore(props map[string]string) *fakeStore {
	cp := make(map[string]string, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return &fakeStore{props: cp}
}

func (f *fakeStore) set(prop, val string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[prop] = val
}

func (f *fakeStore) unset(prop string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.props, prop)
}

func (f *fakeStore) GetAllPropertiesWithPrefix(prefix string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.props {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (f *fakeStore) IsPropertySet(prop string, _ bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.props[prop]
	return ok, nil
}

func (f *fakeStore) GetTimeInMillis(prop string) (int64, error) {
	f.mu.Lock()
	raw, ok := f.props[prop]
	f.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("fakeStore: %s not set", prop)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}

func (f *fakeStore) GetProperty(prop string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.props[prop]
	return v, ok, nil
}

// fakeCompactable is a hand-driven Compactable: every field is set directly
// by the test, every call is recorded for later assertion.
type fakeCompactable struct {
	extent  Extent
	service ServiceId

	mu          sync.Mutex
	closed      bool
	externalIDs []ExternalCompactionId
	commits     []commitCall
	fails       []ExternalCompactionId
}

type commitCall struct {
	ecid     ExternalCompactionId
	fileSize int64
	entries  int64
}

func newFakeCompactable(table string, service ServiceId) *fakeCompactable {
	return &fakeCompactable{extent: Extent{TableID: table}, service: service}
}

func (c *fakeCompactable) Extent() Extent { return c.extent }

func (c *fakeCompactable) ConfiguredService(CompactionKind) ServiceId {
	return c.service
}

func (c *fakeCompactable) ExternalCompactionIDs(sink func(ExternalCompactionId)) {
	c.mu.Lock()
	ids := append([]ExternalCompactionId(nil), c.externalIDs...)
	c.mu.Unlock()
	for _, id := range ids {
		sink(id)
	}
}

func (c *fakeCompactable) setExternalIDs(ids ...ExternalCompactionId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.externalIDs = ids
}

func (c *fakeCompactable) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeCompactable) setClosed(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = v
}

func (c *fakeCompactable) CommitExternalCompaction(ecid ExternalCompactionId, fileSize, entries int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits = append(c.commits, commitCall{ecid: ecid, fileSize: fileSize, entries: entries})
	return nil
}

func (c *fakeCompactable) ExternalCompactionFailed(ecid ExternalCompactionId) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fails = append(c.fails, ecid)
	return nil
}

func (c *fakeCompactable) commitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.commits)
}

func (c *fakeCompactable) failCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fails)
}

// fakeSource is a hand-driven CompactablesSource.
type fakeSource struct {
	mu    sync.Mutex
	items []Compactable
}

func newFakeSource(items ...Compactable) *fakeSource {
	return &fakeSource{items: items}
}

func (s *fakeSource) Snapshot() []Compactable {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Compactable, len(s.items))
	copy(out, s.items)
	return out
}

func (s *fakeSource) set(items ...Compactable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

// countingRunner records every job it runs and signals ran after each one,
// so a test can wait for completion instead of sleeping.
type countingRunner struct {
	bytes int64
	err   error
	ran   chan Job

	mu    sync.Mutex
	calls []Job
}

func newCountingRunner() *countingRunner {
	return &countingRunner{ran: make(chan Job, 64)}
}

func (r *countingRunner) Run(ctx context.Context, job Job) (int64, error) {
	r.mu.Lock()
	r.calls = append(r.calls, job)
	r.mu.Unlock()
	r.ran <- job
	return r.bytes, r.err
}

func (r *countingRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}
