package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Zaresol/staggerline/internal/adapters/repository"
)

// EncountersHandler handles encounter lifecycle requests.
type EncountersHandler struct {
	deps Dependencies
}

// NewEncountersHandler creates a new encounters handler.
func NewEncountersHandler(deps Dependencies) *EncountersHandler {
	return &EncountersHandler{deps: deps}
}

type openRequest struct {
	EncounterID string `json:"encounter_id,omitempty"`
	StartTime   int64  `json:"start_time"`
}

type openResponse struct {
	EncounterID string `json:"encounter_id"`
	StartTime   int64  `json:"start_time"`
}

// HandleOpen handles POST /v1/encounters requests.
func (h *EncountersHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.StartTime < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	id, err := h.deps.OpenEncounter(r.Context(), req.EncounterID, req.StartTime)
	switch {
	case errors.Is(err, repository.ErrExists):
		writeError(w, http.StatusConflict, "exists", err)
		return
	case errors.Is(err, repository.ErrLimitExceeded):
		writeError(w, http.StatusTooManyRequests, "limit_exceeded", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusCreated, openResponse{EncounterID: id, StartTime: req.StartTime})
}

// HandleSeries handles GET /v1/encounters/{id}/series requests.
func (h *EncountersHandler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Series(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleClose handles DELETE /v1/encounters/{id} requests. The final
// report is returned to the caller and archived when enabled.
func (h *EncountersHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.CloseEncounter(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
