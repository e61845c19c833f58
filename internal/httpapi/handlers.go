package httpapi

import (
	"net/http"

	"github.com/fmueller/whisper-api/internal/whisper"
)

type healthResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// handleHealth answers the orchestrator's poll: healthy only when the
// process is both live and ready.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	live := s.opts.Reporter.Live()
	ready := s.opts.Reporter.Ready()

	switch {
	case !live.OK:
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Reason: live.Reason})
	case !ready.OK:
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Reason: ready.Reason})
	default:
		writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
	}
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	live := s.opts.Reporter.Live()
	if !live.OK {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Reason: live.Reason})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type readinessResponse struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	Workers       int    `json:"workers"`
	QueueCapacity int    `json:"queue_capacity"`
	Running       int    `json:"running"`
	Queued        int    `json:"queued"`
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	readiness := s.opts.Reporter.Readiness()

	resp := readinessResponse{
		Status:        "ready",
		Workers:       readiness.Stats.Workers,
		QueueCapacity: readiness.Stats.QueueCapacity,
		Running:       readiness.Stats.Running,
		Queued:        readiness.Stats.Queued,
	}
	if !readiness.OK {
		resp.Status = "not_ready"
		resp.Reason = readiness.Reason
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type modelEntry struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	Downloaded bool   `json:"downloaded"`
}

type modelsResponse struct {
	Default string       `json:"default"`
	Models  []modelEntry `json:"models"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	resp := modelsResponse{Default: s.opts.DefaultModel}
	for _, name := range whisper.ModelNames() {
		model, _ := whisper.LookupModel(name)
		resp.Models = append(resp.Models, modelEntry{
			Name:       model.Name,
			File:       model.FileName,
			Downloaded: s.opts.Store.Downloaded(model),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
