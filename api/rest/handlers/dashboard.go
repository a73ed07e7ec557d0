package handlers

import (
	"net/http"

	"github.com/aznelite89/travel-budget-estimator/core/monitoring"
	"github.com/aznelite89/travel-budget-estimator/core/repository"

	"github.com/ternarybob/arbor"
)

// DashboardHandler serves aggregate job statistics and metrics
type DashboardHandler struct {
	jobRepo  repository.JobStore
	exporter *monitoring.MetricsExporter
	queue    monitoring.QueueDepth
	logger   arbor.ILogger
}

// NewDashboardHandler creates a new dashboard handler. queue may be nil.
func NewDashboardHandler(
	jobRepo repository.JobStore,
	queue monitoring.QueueDepth,
	logger arbor.ILogger,
) *DashboardHandler {
	return &DashboardHandler{
		jobRepo:  jobRepo,
		exporter: monitoring.NewMetricsExporter(jobRepo, queue),
		queue:    queue,
		logger:   logger,
	}
}

// JobStatsResponse summarizes jobs by status
type JobStatsResponse struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	QueueDepth int            `json:"queue_depth"`
}

// GetJobStats handles GET /api/estimate-jobs/stats
func (h *DashboardHandler) GetJobStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.jobRepo.CountJobsByStatus(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "", err)
		return
	}

	resp := JobStatsResponse{ByStatus: make(map[string]int, len(counts))}
	for status, n := range counts {
		resp.ByStatus[string(status)] = n
		resp.Total += n
	}
	if h.queue != nil {
		resp.QueueDepth = h.queue.QueueLen()
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetMetrics handles GET /metrics
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.exporter.GetPrometheusMetrics(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to collect metrics")
		http.Error(w, "Failed to collect metrics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.Write([]byte(metrics))
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
