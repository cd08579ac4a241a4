package handlers

import (
	"errors"
	"net/http"

	"intelgraph-lab/internal/infrastructure/database/repository"
	"intelgraph-lab/internal/infrastructure/queue"
	"intelgraph-lab/internal/worker"
	"intelgraph-lab/pkg/logger"
)

// AnalysisHandler handles analysis trigger endpoints
type AnalysisHandler struct {
	repos  *repository.Repositories
	queue  *queue.AnalysisQueue
	runner *worker.Runner
	logger *logger.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler
func NewAnalysisHandler(repos *repository.Repositories, q *queue.AnalysisQueue, runner *worker.Runner, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		repos:  repos,
		queue:  q,
		runner: runner,
		logger: log.WithComponent("analysis"),
	}
}

// Trigger handles POST /api/v1/investigations/{id}/analyze. The job is queued
// and picked up by a worker; pass ?sync=true to run inline and get the report
// back in the response.
func (h *AnalysisHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.repos.Investigations.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "investigation not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load investigation")
		respondError(w, http.StatusInternalServerError, "failed to load investigation")
		return
	}

	if r.URL.Query().Get("sync") == "true" {
		report, err := h.runner.Run(r.Context(), id)
		if err != nil {
			if errors.Is(err, worker.ErrAlreadyRunning) {
				respondError(w, http.StatusConflict, "analysis already running")
				return
			}
			h.logger.Error().Err(err).Msg("synchronous analysis failed")
			respondError(w, http.StatusInternalServerError, "analysis failed: "+err.Error())
			return
		}
		respondJSON(w, http.StatusOK, report)
		return
	}

	job, err := h.queue.Enqueue(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to enqueue analysis job")
		respondError(w, http.StatusInternalServerError, "failed to enqueue analysis")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":           job.ID,
		"investigation_id": job.InvestigationID,
		"enqueued_at":      job.EnqueuedAt,
	})
}

// QueueDepth handles GET /api/v1/analysis/queue
func (h *AnalysisHandler) QueueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Depth(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read queue depth")
		respondError(w, http.StatusInternalServerError, "failed to read queue depth")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"depth": depth})
}
