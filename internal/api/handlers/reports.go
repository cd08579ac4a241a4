package handlers

import (
	"errors"
	"net/http"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/internal/infrastructure/cache"
	"intelgraph-lab/internal/infrastructure/database/repository"
	"intelgraph-lab/internal/infrastructure/graph"
	"intelgraph-lab/pkg/logger"
)

// ReportsHandler handles report retrieval endpoints
type ReportsHandler struct {
	repos  *repository.Repositories
	cache  *cache.RedisCache
	graph  *graph.GraphRepository
	logger *logger.Logger
}

// NewReportsHandler creates a new ReportsHandler
func NewReportsHandler(repos *repository.Repositories, c *cache.RedisCache, g *graph.GraphRepository, log *logger.Logger) *ReportsHandler {
	return &ReportsHandler{
		repos:  repos,
		cache:  c,
		graph:  g,
		logger: log.WithComponent("reports"),
	}
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var cached models.IntelligenceReport
	if err := h.cache.GetCachedReport(r.Context(), id.String(), &cached); err == nil {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	report, err := h.repos.Reports.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "report not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load report")
		respondError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Latest handles GET /api/v1/investigations/{id}/reports/latest
func (h *ReportsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var cached models.IntelligenceReport
	if err := h.cache.GetCachedLatestReport(r.Context(), id.String(), &cached); err == nil {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	report, err := h.repos.Reports.GetLatest(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no report for investigation")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load latest report")
		respondError(w, http.StatusInternalServerError, "failed to load latest report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// History handles GET /api/v1/investigations/{id}/reports
func (h *ReportsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20)
	summaries, err := h.repos.Reports.ListByInvestigation(r.Context(), id, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list reports")
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  summaries,
		"total": len(summaries),
	})
}

// Neighborhood handles GET /api/v1/entities/{id}/neighborhood. It answers from
// the graph projection and requires Neo4j to be configured.
func (h *ReportsHandler) Neighborhood(w http.ResponseWriter, r *http.Request) {
	if h.graph == nil {
		respondError(w, http.StatusServiceUnavailable, "graph projection not configured")
		return
	}

	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	neighbors, err := h.graph.Neighborhood(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to query entity neighborhood")
		respondError(w, http.StatusInternalServerError, "failed to query entity neighborhood")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"entity_id": id,
		"neighbors": neighbors,
	})
}

// HighThreats handles GET /api/v1/threats. It answers from the graph
// projection across all investigations.
func (h *ReportsHandler) HighThreats(w http.ResponseWriter, r *http.Request) {
	if h.graph == nil {
		respondError(w, http.StatusServiceUnavailable, "graph projection not configured")
		return
	}

	levels := []models.ThreatLevel{models.ThreatLevelHigh, models.ThreatLevelCritical}
	if r.URL.Query().Get("include_medium") == "true" {
		levels = append(levels, models.ThreatLevelMedium)
	}

	entities, err := h.graph.HighThreatEntities(r.Context(), levels, queryInt(r, "limit", 25))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to query high threat entities")
		respondError(w, http.StatusInternalServerError, "failed to query high threat entities")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  entities,
		"total": len(entities),
	})
}
