// Package compactrpc is the remote-compactor RPC surface of spec §6:
// reserve/register/commit/fail plus queue summaries, exposed over HTTP.
// chi.Router-over-net/http.Server and the bounded-context.WithTimeout
// graceful shutdown both follow the teacher's own HTTP server shape
// (createRouter + http.Server.Shutdown); the handlers themselves are new.
package compactrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tabletd/pkg/compaction"
)

const (
	defaultPort            = "8082"
	contentTypeJSON        = "application/json"
	defaultShutdownTimeout = 5 * time.Second
)

// ManagerAPI is the subset of *compaction.Manager handlers call, narrowed
// so tests can supply a fake.
type ManagerAPI interface {
	ReserveExternalCompaction(queueName string, priority int64, compactorId string, ecid compaction.ExternalCompactionId) (compaction.ExternalCompactionJob, error)
	RegisterExternalCompaction(ecid compaction.ExternalCompactionId, extent compaction.Extent, executorID compaction.ExecutorId)
	CommitExternalCompaction(ecid compaction.ExternalCompactionId, extent compaction.Extent, currentTablets map[string]compaction.Compactable, fileSize, entries int64) error
	ExternalCompactionFailed(ecid compaction.ExternalCompactionId, extent compaction.Extent, currentTablets map[string]compaction.Compactable) error
	GetCompactionQueueSummaries() []compaction.QueueSummary
}

// TabletLookup resolves an extent's canonical string form (compaction.Extent
// holds byte slices and so cannot be a map key itself) to the live
// Compactable a commit/fail call should be forwarded to. Hosts with more
// than one tablet supply a real lookup; engine.TabletSet-based hosts can
// supply a one-entry map.
type TabletLookup func() map[string]compaction.Compactable

// Server is the HTTP frontend remote compactor processes call.
type Server struct {
	manager ManagerAPI
	tablets TabletLookup
	logger  *slog.Logger

	httpServer *http.Server
	addr       string
}

func NewServer(manager ManagerAPI, tablets TabletLookup, port string, logger *slog.Logger) *Server {
	if port == "" {
		port = defaultPort
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{manager: manager, tablets: tablets, logger: logger, addr: ":" + port}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/compactions/external/reserve", s.handleReserve)
	r.Post("/compactions/external/register", s.handleRegister)
	r.Post("/compactions/external/commit", s.handleCommit)
	r.Post("/compactions/external/fail", s.handleFail)
	r.Get("/compactions/queues", s.handleQueues)
	return r
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router(),
		ReadHeaderTimeout: time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("compactrpc server error", "error", err)
		}
	}()
	s.logger.Info("compactrpc server started", "addr", s.addr)
	return nil
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("compactrpc: shutdown: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("compactrpc: failed to encode response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

type reserveRequest struct {
	Queue       string `json:"queue"`
	Priority    int64  `json:"priority"`
	CompactorId string `json:"compactorId"`
	Ecid        string `json:"ecid"`
}

func (s *Server) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}

	if req.Ecid == "" {
		req.Ecid = uuid.New().String()
	}

	job, err := s.manager.ReserveExternalCompaction(req.Queue, req.Priority, req.CompactorId, compaction.ExternalCompactionId(req.Ecid))
	if err != nil {
		status := http.StatusInternalServerError
		if err == compaction.ErrNoJobAvailable {
			status = http.StatusNoContent
		}
		s.writeJSON(w, status, errorBody(err))
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

type registerRequest struct {
	Ecid       string `json:"ecid"`
	TableID    string `json:"tableId"`
	StartRow   string `json:"startRow"`
	EndRow     string `json:"endRow"`
	ExecutorID string `json:"executorId"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	extent := compaction.Extent{TableID: req.TableID, StartRow: []byte(req.StartRow), EndRow: []byte(req.EndRow)}
	s.manager.RegisterExternalCompaction(compaction.ExternalCompactionId(req.Ecid), extent, compaction.ExternalExecutorId(req.ExecutorID))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type commitRequest struct {
	Ecid     string `json:"ecid"`
	TableID  string `json:"tableId"`
	StartRow string `json:"startRow"`
	EndRow   string `json:"endRow"`
	FileSize int64  `json:"fileSize"`
	Entries  int64  `json:"entries"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	extent := compaction.Extent{TableID: req.TableID, StartRow: []byte(req.StartRow), EndRow: []byte(req.EndRow)}
	err := s.manager.CommitExternalCompaction(compaction.ExternalCompactionId(req.Ecid), extent, s.tablets(), req.FileSize, req.Entries)
	if err != nil {
		s.writeJSON(w, http.StatusConflict, errorBody(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type failRequest struct {
	Ecid     string `json:"ecid"`
	TableID  string `json:"tableId"`
	StartRow string `json:"startRow"`
	EndRow   string `json:"endRow"`
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	var req failRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err))
		return
	}
	extent := compaction.Extent{TableID: req.TableID, StartRow: []byte(req.StartRow), EndRow: []byte(req.EndRow)}
	err := s.manager.ExternalCompactionFailed(compaction.ExternalCompactionId(req.Ecid), extent, s.tablets())
	if err != nil {
		s.writeJSON(w, http.StatusConflict, errorBody(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleQueues(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.GetCompactionQueueSummaries())
}

func errorBody(err error) map[string]string {
	return map[string]string{"status": "error", "error": err.Error()}
}
