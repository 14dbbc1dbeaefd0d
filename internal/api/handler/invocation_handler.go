package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/fluxhub/action-dispatch/internal/api/middleware"
	"github.com/fluxhub/action-dispatch/internal/domain"
	"github.com/fluxhub/action-dispatch/internal/service"
)

// InvocationHandler handles single-invocation endpoints.
type InvocationHandler struct {
	svc    *service.ActionService
	logger *zap.Logger
}

func NewInvocationHandler(svc *service.ActionService, logger *zap.Logger) *InvocationHandler {
	return &InvocationHandler{svc: svc, logger: logger}
}

// Enqueue handles POST /api/v1/invocations
//
// @Summary     Enqueue an action invocation
// @Tags        invocations
// @Accept      json
// @Produce     json
// @Param       X-Idempotency-Key  header    string                false  "Idempotency key"
// @Param       body               body      domain.EnqueueRequest true   "Invocation payload"
// @Success     201                {object}  domain.Invocation
// @Success     200                {object}  domain.Invocation     "Duplicate: returned existing invocation"
// @Failure     422                {object}  map[string]string
// @Failure     503                {object}  map[string]string
// @Router      /api/v1/invocations [post]
func (h *InvocationHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	idempotencyKey := r.Header.Get("X-Idempotency-Key")
	inv, isDuplicate, err := h.svc.Enqueue(r.Context(), req, idempotencyKey)
	if err != nil {
		h.logger.Warn("enqueue invocation failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusCreated
	if isDuplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, inv)
}

// GetByID handles GET /api/v1/invocations/{id}
//
// @Summary  Get an invocation by ID
// @Tags     invocations
// @Produce  json
// @Param    id   path      string  true  "Invocation UUID"
// @Success  200  {object}  domain.Invocation
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/invocations/{id} [get]
func (h *InvocationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// List handles GET /api/v1/invocations
//
// @Summary  List invocations with filtering and pagination
// @Tags     invocations
// @Produce  json
// @Param    phase   query     string  false  "Filter by phase"
// @Param    action  query     string  false  "Filter by action name"
// @Param    from    query     string  false  "Created after (RFC3339)"
// @Param    to      query     string  false  "Created before (RFC3339)"
// @Param    page    query     int     false  "Page number (default 1)"
// @Param    limit   query     int     false  "Items per page (default 20, max 100)"
// @Success  200     {object}  map[string]any
// @Router   /api/v1/invocations [get]
func (h *InvocationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := parseListFilter(r)
	invocations, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list invocations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  invocations,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// Cancel handles DELETE /api/v1/invocations/{id}
//
// @Summary  Cancel an invocation that has not started running
// @Tags     invocations
// @Param    id   path      string  true  "Invocation UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/invocations/{id} [delete]
func (h *InvocationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Cancel(r.Context(), id); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseListFilter(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if ph := q.Get("phase"); ph != "" {
		p := domain.Phase(ph)
		filter.Phase = &p
	}
	if a := q.Get("action"); a != "" {
		filter.Action = &a
	}
	if f := q.Get("from"); f != "" {
		if t, err := time.Parse(time.RFC3339, f); err == nil {
			filter.From = &t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}
	return filter
}
