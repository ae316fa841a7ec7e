package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/editorial-notify/internal/api/middleware"
	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/engine"
	"github.com/notifyhub/editorial-notify/internal/service"
)

// EventHandler accepts content-lifecycle events from the host.
type EventHandler struct {
	svc    *service.EventService
	logger *zap.Logger
}

func NewEventHandler(svc *service.EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

// EventResponse summarises what one event did.
type EventResponse struct {
	Event     domain.EventKind `json:"event"`
	Workflows []int64          `json:"workflows"`
	Sent      int              `json:"sent"`
	Duplicate int              `json:"duplicate"`
	Failed    int              `json:"failed"`
	Scheduled int              `json:"scheduled"`
	Error     string           `json:"error,omitempty"`
}

func newEventResponse(r engine.Report) EventResponse {
	resp := EventResponse{
		Event:     r.Event,
		Workflows: r.Workflows,
		Sent:      r.Count(domain.OutcomeSent),
		Duplicate: r.Count(domain.OutcomeDuplicate),
		Failed:    r.Count(domain.OutcomeFailed),
		Scheduled: r.Count(domain.OutcomeScheduled),
	}
	if resp.Workflows == nil {
		resp.Workflows = []int64{}
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

// BatchRequest is the body of POST /api/v1/events/batch.
type BatchRequest struct {
	Events []domain.EventArgs `json:"events"`
}

// Publish handles POST /api/v1/events
//
// @Summary  Fire one content-lifecycle event
// @Tags     events
// @Accept   json
// @Produce  json
// @Param    body  body      domain.EventArgs  true  "Event"
// @Success  200   {object}  EventResponse
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/events [post]
func (h *EventHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var args domain.EventArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	report, err := h.svc.Publish(r.Context(), args)
	if err != nil {
		h.logger.Warn("publish event failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newEventResponse(report))
}

// PublishBatch handles POST /api/v1/events/batch
//
// @Summary  Fire up to 100 events sharing one duplicate guard
// @Tags     events
// @Accept   json
// @Produce  json
// @Param    body  body      BatchRequest  true  "Events"
// @Success  200   {object}  map[string][]EventResponse
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/events/batch [post]
func (h *EventHandler) PublishBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reports, err := h.svc.PublishBatch(r.Context(), req.Events)
	if err != nil {
		h.logger.Warn("publish batch failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	results := make([]EventResponse, len(reports))
	for i, report := range reports {
		results[i] = newEventResponse(report)
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}
