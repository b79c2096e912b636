package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Zaresol/staggerline/internal/domain/model"
)

const defaultMaxBatch = 5000

// EventsHandler handles event ingestion requests.
type EventsHandler struct {
	deps     Dependencies
	maxBatch int
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps, maxBatch: defaultMaxBatch}
}

// eventRequest is one combat-log record on the wire.
type eventRequest struct {
	EventID      string   `json:"event_id,omitempty"`
	Kind         string   `json:"kind"`
	Timestamp    int64    `json:"timestamp"`
	NewPooled    *float64 `json:"new_pooled,omitempty"`
	Amount       float64  `json:"amount,omitempty"`
	AbilityID    int64    `json:"ability_id,omitempty"`
	HitPoints    int64    `json:"hit_points,omitempty"`
	MaxHitPoints int64    `json:"max_hit_points,omitempty"`
}

func (e eventRequest) validate() error {
	if model.ParseKind(e.Kind) == model.KindUnknown {
		return fmt.Errorf("unrecognized kind %q", e.Kind)
	}
	if e.Timestamp < 0 {
		return fmt.Errorf("negative timestamp %d", e.Timestamp)
	}
	return nil
}

func (e eventRequest) toModel(encounterID string) model.Event {
	return model.Event{
		EventID:      e.EventID,
		EncounterID:  encounterID,
		Kind:         model.ParseKind(e.Kind),
		Timestamp:    e.Timestamp,
		NewPooled:    e.NewPooled,
		Amount:       e.Amount,
		AbilityID:    e.AbilityID,
		HitPoints:    e.HitPoints,
		MaxHitPoints: e.MaxHitPoints,
	}
}

type batchRequest struct {
	Events []eventRequest `json:"events"`
}

type batchResponse struct {
	Status     string `json:"status"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
}

// HandlePostEvents handles POST /v1/encounters/{id}/events requests.
//
// Events carrying an event_id are deduplicated so uploaders can replay a
// whole batch after a failed request. On backpressure the batch stops at
// the refused event and already-recorded ids past it stay retryable.
func (h *EventsHandler) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	encounterID := r.PathValue("id")

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if len(req.Events) > h.maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large", ErrBatchTooBig)
		return
	}
	for i, e := range req.Events {
		if err := e.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("event %d: %w", i, err))
			return
		}
	}

	accepted, duplicates := 0, 0
	for _, e := range req.Events {
		if e.EventID != "" && h.deps.SeenAndRecord(r.Context(), e.EventID) {
			duplicates++
			continue
		}
		if ok := h.deps.Enqueue(r.Context(), e.toModel(encounterID)); !ok {
			// Roll back the seen mark so the uploader can resend.
			if e.EventID != "" {
				h.deps.Unrecord(r.Context(), e.EventID)
			}
			writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
			return
		}
		accepted++
	}
	writeJSON(w, http.StatusAccepted, batchResponse{
		Status:     "accepted",
		Accepted:   accepted,
		Duplicates: duplicates,
	})
}
