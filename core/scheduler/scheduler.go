package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"

	"github.com/ternarybob/arbor"
)

// Runner executes one job to completion
type Runner interface {
	Execute(ctx context.Context, jobID string) error
}

// Scheduler dispatches queued jobs to a fixed pool of workers
type Scheduler struct {
	jobRepo      repository.JobStore
	queue        *JobQueue
	runner       Runner
	workers      int
	pollInterval time.Duration
	logger       arbor.ILogger
	notify       chan struct{}
	stopChan     chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(
	jobRepo repository.JobStore,
	runner Runner,
	workers int,
	logger arbor.ILogger,
) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		jobRepo:      jobRepo,
		queue:        NewJobQueue(),
		runner:       runner,
		workers:      workers,
		pollInterval: 5 * time.Second,
		logger:       logger,
		notify:       make(chan struct{}, workers),
		stopChan:     make(chan struct{}),
	}
}

// Start re-enqueues jobs left queued by a previous run and starts the
// workers. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.loadQueuedJobs(ctx)

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info().
		Int("workers", s.workers).
		Int("queued", s.queue.Size()).
		Msg("Scheduler started")
}

// Stop stops taking new work and waits for running jobs to finish, or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue adds a job to the queue and wakes a worker. It never blocks.
func (s *Scheduler) Enqueue(jobID string) {
	if !s.queue.Enqueue(jobID, time.Now()) {
		return
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// QueueLen returns the number of jobs waiting for a worker
func (s *Scheduler) QueueLen() int {
	return s.queue.Size()
}

// loadQueuedJobs loads queued jobs from the store, oldest first
func (s *Scheduler) loadQueuedJobs(ctx context.Context) {
	status := models.JobStatusQueued
	jobs, err := s.jobRepo.ListJobs(ctx, models.JobFilter{Status: &status, Oldest: true})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load queued jobs")
		return
	}

	for _, job := range jobs {
		s.queue.Enqueue(job.ID, job.CreatedAt)
	}
	if len(jobs) > 0 {
		s.logger.Info().Int("count", len(jobs)).Msg("Recovered queued jobs")
	}
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		s.processQueue(ctx, id)

		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-s.notify:
		case <-ticker.C:
		}
	}
}

// processQueue runs jobs until the queue is empty or the scheduler stops
func (s *Scheduler) processQueue(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		default:
		}

		jobID := s.queue.PopJob()
		if jobID == "" {
			return
		}

		if err := s.runner.Execute(ctx, jobID); err != nil {
			s.logger.Error().
				Int("worker", workerID).
				Str("job_id", jobID).
				Err(err).
				Msg("Failed to process job")
		}
	}
}
