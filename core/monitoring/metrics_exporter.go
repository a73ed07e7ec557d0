package monitoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"
)

// QueueDepth reports how many jobs are waiting for a worker
type QueueDepth interface {
	QueueLen() int
}

// MetricsExporter exports job metrics in the Prometheus text format
type MetricsExporter struct {
	jobRepo repository.JobStore
	queue   QueueDepth
}

// NewMetricsExporter creates a new metrics exporter. queue may be nil.
func NewMetricsExporter(jobRepo repository.JobStore, queue QueueDepth) *MetricsExporter {
	return &MetricsExporter{
		jobRepo: jobRepo,
		queue:   queue,
	}
}

// GetPrometheusMetrics returns metrics in Prometheus format
func (me *MetricsExporter) GetPrometheusMetrics(ctx context.Context) (string, error) {
	counts, err := me.jobRepo.CountJobsByStatus(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("# HELP estimate_jobs Number of estimate jobs by status\n")
	b.WriteString("# TYPE estimate_jobs gauge\n")
	total := 0
	for _, status := range models.AllJobStatuses {
		total += counts[status]
		fmt.Fprintf(&b, "estimate_jobs{status=%q} %d\n", status, counts[status])
	}

	b.WriteString("# HELP estimate_jobs_total Total number of estimate jobs\n")
	b.WriteString("# TYPE estimate_jobs_total gauge\n")
	fmt.Fprintf(&b, "estimate_jobs_total %d\n", total)

	if me.queue != nil {
		b.WriteString("# HELP estimate_queue_depth Jobs waiting for a worker\n")
		b.WriteString("# TYPE estimate_queue_depth gauge\n")
		fmt.Fprintf(&b, "estimate_queue_depth %d\n", me.queue.QueueLen())
	}

	return b.String(), nil
}
