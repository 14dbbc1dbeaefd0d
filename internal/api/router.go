package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fluxhub/action-dispatch/internal/api/handler"
	apimw "github.com/fluxhub/action-dispatch/internal/api/middleware"
	"github.com/fluxhub/action-dispatch/internal/queue"
	"github.com/fluxhub/action-dispatch/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.ActionService,
	q *queue.PriorityQueue,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	ih := handler.NewInvocationHandler(svc, logger)
	gh := handler.NewGroupHandler(svc, logger)
	ah := handler.NewActionsHandler(svc)
	mh := handler.NewMetricsHandler(q)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Invocations — note: /group must be registered before /{id}
		// so chi does not treat the literal string "group" as an ID.
		r.Post("/invocations/group", gh.EnqueueGroup)
		r.Post("/invocations", ih.Enqueue)
		r.Get("/invocations", ih.List)
		r.Get("/invocations/{id}", ih.GetByID)
		r.Delete("/invocations/{id}", ih.Cancel)

		// Groups
		r.Get("/groups/{id}", gh.GetGroup)

		// Registered actions
		r.Get("/actions", ah.List)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
