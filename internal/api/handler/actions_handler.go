package handler

import (
	"net/http"

	"github.com/fluxhub/action-dispatch/internal/service"
)

// ActionsHandler exposes the set of registered action names so callers can
// discover what the hub is able to dispatch.
type ActionsHandler struct {
	svc *service.ActionService
}

func NewActionsHandler(svc *service.ActionService) *ActionsHandler {
	return &ActionsHandler{svc: svc}
}

// List handles GET /api/v1/actions
//
// @Summary  List registered action names
// @Tags     actions
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/actions [get]
func (h *ActionsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"actions": h.svc.ActionNames(),
	})
}
