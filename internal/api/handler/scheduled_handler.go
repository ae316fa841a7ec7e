package handler

import (
	"net/http"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/service"
)

// ScheduledHandler lists pending scheduled notifications.
type ScheduledHandler struct {
	svc *service.EventService
}

func NewScheduledHandler(svc *service.EventService) *ScheduledHandler {
	return &ScheduledHandler{svc: svc}
}

// List handles GET /api/v1/scheduled
//
// @Summary  List pending scheduled notifications in run order
// @Tags     scheduled
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/scheduled [get]
func (h *ScheduledHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.Scheduled(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if jobs == nil {
		jobs = []domain.ScheduledNotification{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  jobs,
		"total": len(jobs),
	})
}
