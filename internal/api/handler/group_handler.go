package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/domain"
	"github.com/fluxhub/action-dispatch/internal/service"
)

// GroupHandler handles group-level endpoints.
type GroupHandler struct {
	svc    *service.ActionService
	logger *zap.Logger
}

func NewGroupHandler(svc *service.ActionService, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, logger: logger}
}

// EnqueueGroup handles POST /api/v1/invocations/group
//
// @Summary  Enqueue up to 1000 invocations in a single request
// @Tags     groups
// @Accept   json
// @Produce  json
// @Param    body  body      domain.EnqueueGroupRequest  true  "Group payload"
// @Success  201   {object}  domain.Group
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/invocations/group [post]
func (h *GroupHandler) EnqueueGroup(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	group, err := h.svc.EnqueueGroup(r.Context(), req.Invocations)
	if err != nil {
		h.logger.Warn("enqueue group failed", zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, group)
}

// GetGroup handles GET /api/v1/groups/{id}
//
// @Summary  Get a group and its invocations
// @Tags     groups
// @Produce  json
// @Param    id   path      string  true  "Group UUID"
// @Success  200  {object}  map[string]any
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/groups/{id} [get]
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	group, invocations, err := h.svc.GetGroup(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"group":       group,
		"invocations": invocations,
	})
}
