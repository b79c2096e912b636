package api

import (
	"errors"
	"net/http"

	"github.com/Zaresol/staggerline/internal/adapters/archive"
)

// ArchiveHandler serves archived encounter reports.
type ArchiveHandler struct {
	deps Dependencies
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(deps Dependencies) *ArchiveHandler {
	return &ArchiveHandler{deps: deps}
}

// HandleList handles GET /v1/archive requests.
func (h *ArchiveHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.deps.ArchivedReports(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "archive_unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// HandleLoad handles GET /v1/archive/{id} requests.
func (h *ArchiveHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.ArchivedReport(r.Context(), r.PathValue("id"))
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "archive_unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
