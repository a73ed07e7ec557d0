package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/estimator"
	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"

	"github.com/ternarybob/arbor"
)

// Progress messages recorded while a job runs
const (
	MessageEstimating = "Estimating trip budget"
	MessageCompleted  = "Job completed"
)

// EstimateExecutor runs a single queued job through the estimator
type EstimateExecutor struct {
	store     repository.Store
	estimator estimator.Estimator
	logger    arbor.ILogger
}

// NewEstimateExecutor creates a new estimate executor
func NewEstimateExecutor(store repository.Store, est estimator.Estimator, logger arbor.ILogger) *EstimateExecutor {
	return &EstimateExecutor{
		store:     store,
		estimator: est,
		logger:    logger,
	}
}

// Execute moves the job to running, invokes the estimator once and records
// the outcome. A job that was cancelled or already started is skipped.
// The returned error is always a storage problem; estimator failures are
// recorded on the job instead.
func (e *EstimateExecutor) Execute(ctx context.Context, jobID string) error {
	job, applied, err := e.store.TransitionJob(ctx, jobID, models.Transition{To: models.JobStatusRunning})
	if err != nil {
		return fmt.Errorf("failed to start job %s: %w", jobID, err)
	}
	if !applied {
		e.logger.Info().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Skipping job that is no longer queued")
		return nil
	}

	e.logger.Info().
		Str("job_id", jobID).
		Str("origin", job.Request.Origin).
		Str("destination", job.Request.Destination).
		Msg("Executing estimate job")

	err = e.store.AppendEvent(ctx, jobID, models.EventTypeProgress, MessageEstimating, map[string]interface{}{
		"origin":      job.Request.Origin,
		"destination": job.Request.Destination,
	})
	if err != nil {
		return fmt.Errorf("failed to record progress for job %s: %w", jobID, err)
	}

	start := time.Now()
	result, estErr := e.estimate(ctx, job.Request)

	// The outcome must be recorded even when the caller is shutting down
	finishCtx := context.WithoutCancel(ctx)

	if estErr != nil {
		msg := describeFailure(estErr)
		e.logger.Warn().
			Str("job_id", jobID).
			Dur("duration", time.Since(start)).
			Str("error", msg).
			Msg("Estimate job failed")

		if _, _, err := e.store.TransitionJob(finishCtx, jobID, models.Transition{To: models.JobStatusError, Error: msg}); err != nil {
			return fmt.Errorf("failed to record error for job %s: %w", jobID, err)
		}
		return nil
	}

	job, applied, err = e.store.TransitionJob(finishCtx, jobID, models.Transition{To: models.JobStatusDone, Result: result})
	if err != nil {
		return fmt.Errorf("failed to record result for job %s: %w", jobID, err)
	}
	if !applied {
		e.logger.Info().
			Str("job_id", jobID).
			Str("status", string(job.Status)).
			Msg("Discarding result of job that was cancelled while running")
		return nil
	}

	err = e.store.AppendEvent(finishCtx, jobID, models.EventTypeProgress, MessageCompleted, map[string]interface{}{
		"status": string(models.JobStatusDone),
	})
	if err != nil {
		return fmt.Errorf("failed to record completion for job %s: %w", jobID, err)
	}

	e.logger.Info().
		Str("job_id", jobID).
		Dur("duration", time.Since(start)).
		Msg("Estimate job completed")
	return nil
}

// estimate invokes the estimator, turning a panic into an error
func (e *EstimateExecutor) estimate(ctx context.Context, req models.EstimateRequest) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	result, err = e.estimator.Estimate(ctx, req)
	if err == nil && len(result) == 0 {
		err = errors.New("estimator returned an empty result")
	}
	if err == nil && !json.Valid(result) {
		err = errors.New("estimator returned invalid JSON")
	}
	return result, err
}

type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// describeFailure renders an estimator error as "<kind>: <message>"
func describeFailure(err error) string {
	var failure *estimator.Failure
	if errors.As(err, &failure) {
		return failure.Error()
	}
	var p *panicError
	if errors.As(err, &p) {
		return fmt.Sprintf("Panic: %v", p.value)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout: " + err.Error()
	}
	return "EstimationFailure: " + err.Error()
}
