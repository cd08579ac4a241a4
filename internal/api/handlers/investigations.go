package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"intelgraph-lab/internal/domain/models"
	"intelgraph-lab/internal/infrastructure/database/repository"
	"intelgraph-lab/internal/streaming"
	"intelgraph-lab/pkg/logger"
)

// InvestigationsHandler handles investigation and record ingestion endpoints
type InvestigationsHandler struct {
	repos  *repository.Repositories
	bus    *streaming.EventBus
	logger *logger.Logger
}

// NewInvestigationsHandler creates a new InvestigationsHandler
func NewInvestigationsHandler(repos *repository.Repositories, bus *streaming.EventBus, log *logger.Logger) *InvestigationsHandler {
	return &InvestigationsHandler{
		repos:  repos,
		bus:    bus,
		logger: log.WithComponent("investigations"),
	}
}

// CreateInvestigationRequest is the body for POST /api/v1/investigations
type CreateInvestigationRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Targets     []string `json:"targets,omitempty"`
}

// Create handles POST /api/v1/investigations
func (h *InvestigationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvestigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	inv, err := h.repos.Investigations.Create(r.Context(), &models.Investigation{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Targets:     req.Targets,
		Status:      models.InvestigationStatusOpen,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create investigation")
		respondError(w, http.StatusInternalServerError, "failed to create investigation")
		return
	}

	respondJSON(w, http.StatusCreated, inv)
}

// List handles GET /api/v1/investigations
func (h *InvestigationsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.InvestigationStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	investigations, total, err := h.repos.Investigations.List(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list investigations")
		respondError(w, http.StatusInternalServerError, "failed to list investigations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":   investigations,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// Get handles GET /api/v1/investigations/{id}
func (h *InvestigationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	inv, err := h.repos.Investigations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "investigation not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to load investigation")
		respondError(w, http.StatusInternalServerError, "failed to load investigation")
		return
	}

	respondJSON(w, http.StatusOK, inv)
}

// Delete handles DELETE /api/v1/investigations/{id}
func (h *InvestigationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.repos.Records.DeleteByInvestigation(r.Context(), id); err != nil {
		h.logger.Error().Err(err).Msg("failed to delete investigation records")
		respondError(w, http.StatusInternalServerError, "failed to delete investigation")
		return
	}
	if err := h.repos.Investigations.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "investigation not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete investigation")
		respondError(w, http.StatusInternalServerError, "failed to delete investigation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// IngestRecords handles POST /api/v1/investigations/{id}/records
func (h *InvestigationsHandler) IngestRecords(w http.ResponseWriter, r *http.Request) {
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

	var records []*models.RawRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(records) == 0 {
		respondError(w, http.StatusBadRequest, "no records provided")
		return
	}

	now := time.Now().UTC()
	for _, rec := range records {
		rec.InvestigationID = id
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		if rec.CollectedAt.IsZero() {
			rec.CollectedAt = now
		}
	}

	inserted, err := h.repos.Records.CreateBatch(r.Context(), records)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to ingest records")
		respondError(w, http.StatusInternalServerError, "failed to ingest records")
		return
	}

	if inserted > 0 {
		if err := h.repos.Investigations.IncrementRecordCount(r.Context(), id, inserted); err != nil {
			h.logger.Warn().Err(err).Msg("failed to update record count")
		}
		if h.bus != nil {
			_ = h.bus.PublishIngest(r.Context(), id, inserted)
		}
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"received": len(records),
		"inserted": inserted,
		"skipped":  len(records) - inserted,
	})
}

// ListRecords handles GET /api/v1/investigations/{id}/records
func (h *InvestigationsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	records, err := h.repos.Records.ListByInvestigation(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list records")
		respondError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": len(records),
	})
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, param string, fallback int) int {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
