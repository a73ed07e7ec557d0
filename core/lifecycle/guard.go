// Package lifecycle holds the job state machine. Stores call Apply while
// holding the job's exclusive lock and persist the returned event in the
// same unit of work as the mutated job.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/models"
)

// Apply evaluates t against the current state of job. When the transition
// is permitted it mutates job in place and returns the status event that
// must be recorded with it. A rejected transition leaves job untouched and
// returns (nil, false).
func Apply(job *models.Job, t models.Transition, now time.Time) (*models.JobEvent, bool) {
	if !Allowed(job.Status, t.To) {
		return nil, false
	}

	job.Status = t.To
	switch t.To {
	case models.JobStatusRunning:
		if job.StartedAt == nil {
			job.StartedAt = &now
		}
	case models.JobStatusDone:
		job.Result = t.Result
		job.FinishedAt = &now
	case models.JobStatusError:
		msg := t.Error
		job.Error = &msg
		job.FinishedAt = &now
	case models.JobStatusCancelled:
		job.FinishedAt = &now
	}

	return statusEvent(job.ID, t, now), true
}

// Allowed reports whether a job in status from may move to status to.
// Anything leaving a terminal status is refused, which is what keeps a late
// done/error from overwriting a cancellation.
func Allowed(from, to models.JobStatus) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case models.JobStatusRunning:
		return from == models.JobStatusQueued
	case models.JobStatusDone, models.JobStatusError:
		return from == models.JobStatusRunning
	case models.JobStatusCancelled:
		return true
	}
	return false
}

// QueuedEvent is the event recorded alongside a freshly created job
func QueuedEvent(jobID string, now time.Time) *models.JobEvent {
	return &models.JobEvent{
		JobID:     jobID,
		CreatedAt: now,
		Type:      models.EventTypeStatus,
		Message:   "Job queued",
		Data:      map[string]interface{}{"status": string(models.JobStatusQueued)},
	}
}

func statusEvent(jobID string, t models.Transition, now time.Time) *models.JobEvent {
	data := map[string]interface{}{"status": string(t.To)}
	message := fmt.Sprintf("Status changed to %s", t.To)

	switch t.To {
	case models.JobStatusError:
		message = "Error: " + t.Error
		data["error"] = t.Error
	case models.JobStatusCancelled:
		message = "Job cancelled"
	}

	return &models.JobEvent{
		JobID:     jobID,
		CreatedAt: now,
		Type:      models.EventTypeStatus,
		Message:   message,
		Data:      data,
	}
}
