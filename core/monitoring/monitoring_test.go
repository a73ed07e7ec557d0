package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"
)

type fixedQueue int

func (q fixedQueue) QueueLen() int { return int(q) }

func TestCheckRunningJobsReportsStalled(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	running, err := store.CreateJob(ctx, models.EstimateRequest{TripTitle: "running"})
	require.NoError(t, err)
	_, _, err = store.TransitionJob(ctx, running.ID, models.Transition{To: models.JobStatusRunning})
	require.NoError(t, err)
	_, err = store.CreateJob(ctx, models.EstimateRequest{TripTitle: "queued"})
	require.NoError(t, err)

	jm := NewJobMonitor(store, time.Minute, 10*time.Minute, arbor.NewLogger())
	assert.Empty(t, jm.CheckRunningJobs(ctx))

	jm.now = func() time.Time { return time.Now().Add(time.Hour) }
	stalled := jm.CheckRunningJobs(ctx)
	require.Len(t, stalled, 1)
	assert.Equal(t, running.ID, stalled[0].ID)
}

func TestGetPrometheusMetrics(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	for i := 0; i < 2; i++ {
		_, err := store.CreateJob(ctx, models.EstimateRequest{TripTitle: "trip"})
		require.NoError(t, err)
	}
	job, err := store.CreateJob(ctx, models.EstimateRequest{TripTitle: "cancel me"})
	require.NoError(t, err)
	_, _, err = store.TransitionJob(ctx, job.ID, models.Transition{To: models.JobStatusCancelled})
	require.NoError(t, err)

	out, err := NewMetricsExporter(store, fixedQueue(2)).GetPrometheusMetrics(ctx)
	require.NoError(t, err)

	assert.Contains(t, out, "# TYPE estimate_jobs gauge\n")
	assert.Contains(t, out, `estimate_jobs{status="queued"} 2`)
	assert.Contains(t, out, `estimate_jobs{status="cancelled"} 1`)
	assert.Contains(t, out, `estimate_jobs{status="done"} 0`)
	assert.Contains(t, out, "estimate_jobs_total 3\n")
	assert.Contains(t, out, "estimate_queue_depth 2\n")
}

func TestGetPrometheusMetricsWithoutQueue(t *testing.T) {
	out, err := NewMetricsExporter(repository.NewMemoryStore(), nil).GetPrometheusMetrics(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, out, "estimate_queue_depth")
}
