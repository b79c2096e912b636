// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Zaresol/staggerline/internal/adapters/archive"
	"github.com/Zaresol/staggerline/internal/domain/model"
	"github.com/Zaresol/staggerline/internal/domain/series"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Encounter lifecycle.
	OpenEncounter(ctx context.Context, id string, startTime int64) (string, error)
	Series(ctx context.Context, id string) (series.Report, error)
	CloseEncounter(ctx context.Context, id string) (series.Report, error)

	// Ingestion. Enqueue returns false on backpressure.
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	Enqueue(ctx context.Context, e model.Event) bool

	// Archive reads.
	ArchivedReports(ctx context.Context) ([]archive.Summary, error)
	ArchivedReport(ctx context.Context, id string) (series.Report, error)
}

// StatsProvider exposes service statistics for the stats endpoint.
type StatsProvider interface {
	GetStats() map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	encountersHandler *EncountersHandler
	eventsHandler     *EventsHandler
	archiveHandler    *ArchiveHandler
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBatch caps the number of events accepted per ingest request.
func WithMaxBatch(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.eventsHandler.maxBatch = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		encountersHandler: NewEncountersHandler(deps),
		eventsHandler:     NewEventsHandler(deps),
		archiveHandler:    NewArchiveHandler(deps),
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /v1/encounters", MetricsMiddleware(s.encountersHandler.HandleOpen, "encounters_open"))
	mux.HandleFunc("GET /v1/encounters/{id}/series", MetricsMiddleware(s.encountersHandler.HandleSeries, "encounters_series"))
	mux.HandleFunc("DELETE /v1/encounters/{id}", MetricsMiddleware(s.encountersHandler.HandleClose, "encounters_close"))
	mux.HandleFunc("POST /v1/encounters/{id}/events", MetricsMiddleware(s.eventsHandler.HandlePostEvents, "events"))
	mux.HandleFunc("GET /v1/archive", MetricsMiddleware(s.archiveHandler.HandleList, "archive_list"))
	mux.HandleFunc("GET /v1/archive/{id}", MetricsMiddleware(s.archiveHandler.HandleLoad, "archive_load"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
