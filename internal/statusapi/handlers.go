package statusapi

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/ossim/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
	Tick      int64  `json:"tick"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), healthResponse{
		Status:    "healthy",
		RunID:     s.source.RunID(),
		Tick:      s.source.Now(),
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleCPUs(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.source.CPUs())
}

func (s *Server) handleReadyQueue(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.source.ReadyQueue())
}

func (s *Server) handleListProcesses(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	procs := s.source.Processes()

	if st := r.URL.Query().Get("state"); st != "" {
		want := model.ProcessState(st)
		if !want.IsValid() {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("unknown state filter: "+st))
			return
		}
		filtered := make([]model.ProcessInfo, 0, len(procs))
		for _, p := range procs {
			if p.State == want {
				filtered = append(filtered, p)
			}
		}
		procs = filtered
	}
	respondOK(w, reqID, procs)
}

func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("process id must be an integer"))
		return
	}
	p, ok := s.source.Process(id)
	if !ok {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("process", raw))
		return
	}
	respondOK(w, reqID, p)
}
