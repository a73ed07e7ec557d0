package monitoring

import (
	"context"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"

	"github.com/ternarybob/arbor"
)

// JobMonitor watches running jobs. A job that crashed mid-run stays running
// forever, so anything running longer than stalledAfter is reported.
type JobMonitor struct {
	jobRepo      repository.JobStore
	interval     time.Duration
	stalledAfter time.Duration
	logger       arbor.ILogger
	now          func() time.Time
}

// NewJobMonitor creates a new job monitor
func NewJobMonitor(
	jobRepo repository.JobStore,
	interval time.Duration,
	stalledAfter time.Duration,
	logger arbor.ILogger,
) *JobMonitor {
	return &JobMonitor{
		jobRepo:      jobRepo,
		interval:     interval,
		stalledAfter: stalledAfter,
		logger:       logger,
		now:          time.Now,
	}
}

// Start starts the job monitoring loop
func (jm *JobMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(jm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jm.CheckRunningJobs(ctx)
		}
	}
}

// CheckRunningJobs logs every running job older than the stall threshold
// and returns them
func (jm *JobMonitor) CheckRunningJobs(ctx context.Context) []*models.Job {
	status := models.JobStatusRunning
	jobs, err := jm.jobRepo.ListJobs(ctx, models.JobFilter{Status: &status, Oldest: true})
	if err != nil {
		jm.logger.Error().Err(err).Msg("Failed to fetch running jobs")
		return nil
	}

	var stalled []*models.Job
	for _, job := range jobs {
		if job.StartedAt == nil {
			continue
		}
		elapsed := jm.now().Sub(*job.StartedAt)
		if elapsed < jm.stalledAfter {
			continue
		}
		stalled = append(stalled, job)
		jm.logger.Warn().
			Str("job_id", job.ID).
			Dur("running_for", elapsed).
			Msg("Job has been running longer than expected")
	}
	return stalled
}
