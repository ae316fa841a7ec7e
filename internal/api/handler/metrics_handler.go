package handler

import (
	"net/http"

	"github.com/notifyhub/editorial-notify/internal/queue"
)

// MetricsHandler serves a human-readable JSON queue snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q *queue.JobQueue
}

func NewMetricsHandler(q *queue.JobQueue) *MetricsHandler {
	return &MetricsHandler{q: q}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time job queue snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	depth, free := 0, 0
	if h.q != nil {
		depth, free = h.q.Depth(), h.q.Free()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"job_queue": map[string]int{
			"depth": depth,
			"free":  free,
		},
	})
}
