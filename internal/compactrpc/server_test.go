package compactrpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tabletd/pkg/compaction"
)

type fakeManager struct {
	reserveJob compaction.ExternalCompactionJob
	reserveErr error
	reserveEcs []compaction.ExternalCompactionId

	registered []registerCall
	commitErr  error
	failErr    error
	summaries  []compaction.QueueSummary
}

type registerCall struct {
	ecid   compaction.ExternalCompactionId
	extent compaction.Extent
	exec   compaction.ExecutorId
}

func (f *fakeManager) ReserveExternalCompaction(queueName string, priority int64, compactorId string, ecid compaction.ExternalCompactionId) (compaction.ExternalCompactionJob, error) {
	f.reserveEcs = append(f.reserveEcs, ecid)
	return f.reserveJob, f.reserveErr
}

func (f *fakeManager) RegisterExternalCompaction(ecid compaction.ExternalCompactionId, extent compaction.Extent, executorID compaction.ExecutorId) {
	f.registered = append(f.registered, registerCall{ecid: ecid, extent: extent, exec: executorID})
}

func (f *fakeManager) CommitExternalCompaction(ecid compaction.ExternalCompactionId, extent compaction.Extent, currentTablets map[string]compaction.Compactable, fileSize, entries int64) error {
	return f.commitErr
}

func (f *fakeManager) ExternalCompactionFailed(ecid compaction.ExternalCompactionId, extent compaction.Extent, currentTablets map[string]compaction.Compactable) error {
	return f.failErr
}

func (f *fakeManager) GetCompactionQueueSummaries() []compaction.QueueSummary {
	return f.summaries
}

func emptyTablets() map[string]compaction.Compactable { return map[string]compaction.Compactable{} }

func TestServerHealthHandler(t *testing.T) {
	s := NewServer(&fakeManager{}, emptyTablets, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestServerReserveReturnsJobOnSuccess(t *testing.T) {
	want := compaction.ExternalCompactionJob{ID: "E1", Extent: compaction.Extent{TableID: "t1"}}
	s := NewServer(&fakeManager{reserveJob: want}, emptyTablets, "", nil)

	body, _ := json.Marshal(reserveRequest{Queue: "q1", Priority: 0, CompactorId: "c-1", Ecid: "E1"})
	req := httptest.NewRequest(http.MethodPost, "/compactions/external/reserve", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var got compaction.ExternalCompactionJob
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != want.ID || got.Extent.TableID != want.Extent.TableID {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestServerReserveMintsEcidWhenCallerOmitsOne(t *testing.T) {
	fm := &fakeManager{}
	s := NewServer(fm, emptyTablets, "", nil)

	body, _ := json.Marshal(reserveRequest{Queue: "q1"})
	req := httptest.NewRequest(http.MethodPost, "/compactions/external/reserve", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(fm.reserveEcs) != 1 || fm.reserveEcs[0] == "" {
		t.Fatalf("expected a minted, non-empty ecid forwarded to the manager, got %+v", fm.reserveEcs)
	}
}

func TestServerReserveReturnsNoContentWhenNothingAvailable(t *testing.T) {
	s := NewServer(&fakeManager{reserveErr: compaction.ErrNoJobAvailable}, emptyTablets, "", nil)

	body, _ := json.Marshal(reserveRequest{Queue: "q1"})
	req := httptest.NewRequest(http.MethodPost, "/compactions/external/reserve", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestServerReserveRejectsMalformedBody(t *testing.T) {
	s := NewServer(&fakeManager{}, emptyTablets, "", nil)

	req := httptest.NewRequest(http.MethodPost, "/compactions/external/reserve", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestServerRegisterForwardsToManager(t *testing.T) {
	fm := &fakeManager{}
	s := NewServer(fm, emptyTablets, "", nil)

	body, _ := json.Marshal(registerRequest{Ecid: "E1", TableID: "t1", ExecutorID: "q1"})
	req := httptest.NewRequest(http.MethodPost, "/compactions/external/register", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if len(fm.registered) != 1 || fm.registered[0].ecid != "E1" || fm.registered[0].extent.TableID != "t1" {
		t.Fatalf("expected one forwarded registration for t1/E1, got %+v", fm.registered)
	}
}

func TestServerCommitReturnsConflictOnManagerError(t *testing.T) {
	s := NewServer(&fakeManager{commitErr: compaction.ErrExtentMismatch}, emptyTablets, "", nil)

	body, _ := json.Marshal(commitRequest{Ecid: "E1", TableID: "t1", FileSize: 10, Entries: 20})
	req := httptest.NewRequest(http.MethodPost, "/compactions/external/commit", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestServerFailReturnsSuccessOnNilError(t *testing.T) {
	s := NewServer(&fakeManager{}, emptyTablets, "", nil)

	body, _ := json.Marshal(failRequest{Ecid: "E1", TableID: "t1"})
	req := httptest.NewRequest(http.MethodPost, "/compactions/external/fail", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestServerQueuesReturnsSummaries(t *testing.T) {
	want := []compaction.QueueSummary{{Queue: compaction.ExternalExecutorId("q1"), Priority: 5, Queued: 2}}
	s := NewServer(&fakeManager{summaries: want}, emptyTablets, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/compactions/queues", nil)
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var got []compaction.QueueSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0].Queued != 2 {
		t.Fatalf("expected one summary with Queued=2, got %+v", got)
	}
}
