package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/editorial-notify/internal/api/handler"
	apimw "github.com/notifyhub/editorial-notify/internal/api/middleware"
	"github.com/notifyhub/editorial-notify/internal/queue"
	"github.com/notifyhub/editorial-notify/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.EventService,
	q *queue.JobQueue,
	reg prometheus.Gatherer,
	checks map[string]handler.HealthCheck,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)        // X-Correlation-ID inject / echo
	r.Use(apimw.DispatchContext)      // one duplicate guard per request
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	eh := handler.NewEventHandler(svc, logger)
	sh := handler.NewScheduledHandler(svc)
	ph := handler.NewPreferenceHandler(svc, logger)
	mh := handler.NewMetricsHandler(q)
	hh := handler.NewHealthHandler(checks)

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", eh.Publish)
		r.Post("/events/batch", eh.PublishBatch)

		r.Get("/scheduled", sh.List)

		r.Get("/users/{id}/channels/{workflowID}", ph.Get)
		r.Put("/users/{id}/channels/{workflowID}", ph.Put)
		r.Delete("/users/{id}/channels/{workflowID}", ph.Delete)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
