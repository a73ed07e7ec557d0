package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aznelite89/travel-budget-estimator/core/models"
)

// ErrNotFound is returned when an operation references an unknown job ID
var ErrNotFound = errors.New("job not found")

// StorageError wraps a persistence failure. Callers must not treat it as a
// job-level error: it means the store itself misbehaved.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// JobStore persists jobs. Every mutation of a single job is linearized.
type JobStore interface {
	// CreateJob stores a new queued job together with its "Job queued" event
	CreateJob(ctx context.Context, req models.EstimateRequest) (*models.Job, error)
	GetJob(ctx context.Context, id string) (*models.Job, error)
	// TransitionJob runs the lifecycle guard under the job's exclusive lock.
	// The bool reports whether the transition was applied; when it was not,
	// the returned job is the unchanged current state.
	TransitionJob(ctx context.Context, id string, t models.Transition) (*models.Job, bool, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error)
}

// EventLog is the append-only, cursor-ordered log of job events
type EventLog interface {
	AppendEvent(ctx context.Context, jobID string, eventType models.EventType, message string, data map[string]interface{}) error
	// EventsSince returns the job's events with ID greater than cursor
	// (all events when cursor is nil) in ascending ID order.
	EventsSince(ctx context.Context, jobID string, cursor *int64) ([]models.JobEvent, error)
}

// Store is the persistence handle shared by the API, scheduler and executor
type Store interface {
	JobStore
	EventLog
}
