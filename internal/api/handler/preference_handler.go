package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/domain"
	"github.com/notifyhub/editorial-notify/internal/service"
)

// PreferenceHandler manages per-user, per-workflow channel preferences.
type PreferenceHandler struct {
	svc    *service.EventService
	logger *zap.Logger
}

func NewPreferenceHandler(svc *service.EventService, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{svc: svc, logger: logger}
}

// PreferenceRequest is the body of PUT /api/v1/users/{id}/channels/{workflowID}.
type PreferenceRequest struct {
	Channel string `json:"channel"`
}

type preferenceResponse struct {
	UserID     int64  `json:"user_id"`
	WorkflowID int64  `json:"workflow_id"`
	Channel    string `json:"channel"`
}

// Get handles GET /api/v1/users/{id}/channels/{workflowID}
//
// @Summary  Get a user's channel for a workflow ("" = default)
// @Tags     preferences
// @Produce  json
// @Success  200  {object}  preferenceResponse
// @Router   /api/v1/users/{id}/channels/{workflowID} [get]
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, workflowID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	channel, err := h.svc.ChannelPreference(r.Context(), userID, workflowID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preferenceResponse{UserID: userID, WorkflowID: workflowID, Channel: channel})
}

// Put handles PUT /api/v1/users/{id}/channels/{workflowID}
//
// @Summary  Route a workflow's notifications to a channel, or "mute" them
// @Tags     preferences
// @Accept   json
// @Produce  json
// @Param    body  body      PreferenceRequest  true  "Channel"
// @Success  200   {object}  preferenceResponse
// @Failure  404   {object}  map[string]string
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/users/{id}/channels/{workflowID} [put]
func (h *PreferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, workflowID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	var req PreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.svc.SetChannelPreference(r.Context(), userID, workflowID, req.Channel); err != nil {
		h.logger.Warn("set channel preference failed", zap.Error(err))
		mapError(w, err)
		return
	}
	channel, err := h.svc.ChannelPreference(r.Context(), userID, workflowID)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preferenceResponse{UserID: userID, WorkflowID: workflowID, Channel: channel})
}

// Delete handles DELETE /api/v1/users/{id}/channels/{workflowID}
//
// @Summary  Drop a user's channel preference for a workflow
// @Tags     preferences
// @Success  204
// @Router   /api/v1/users/{id}/channels/{workflowID} [delete]
func (h *PreferenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, workflowID, ok := pathIDs(w, r)
	if !ok {
		return
	}
	if err := h.svc.ClearChannelPreference(r.Context(), userID, workflowID); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathIDs(w http.ResponseWriter, r *http.Request) (userID, workflowID int64, ok bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || userID <= 0 {
		mapError(w, domain.ErrInvalidUserID)
		return 0, 0, false
	}
	workflowID, err = strconv.ParseInt(chi.URLParam(r, "workflowID"), 10, 64)
	if err != nil || workflowID <= 0 {
		mapError(w, domain.ErrInvalidWorkflowID)
		return 0, 0, false
	}
	return userID, workflowID, true
}
