package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/lifecycle"
	"github.com/aznelite89/travel-budget-estimator/core/models"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store. All writes are serialized by one
// mutex, which gives every job exclusive access during a transition.
// Jobs and events are copied on the way in and out, so callers never share
// state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	jobs        map[string]*models.Job
	order       []string // Job IDs in creation order
	events      map[string][]models.JobEvent
	nextEventID int64
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]*models.Job),
		events: make(map[string][]models.JobEvent),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a queued job and its initial event
func (s *MemoryStore) CreateJob(ctx context.Context, req models.EstimateRequest) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("create job", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	job := &models.Job{
		ID:        uuid.New().String(),
		Request:   req,
		Status:    models.JobStatusQueued,
		CreatedAt: now,
	}

	event, err := s.prepareEvent(lifecycle.QueuedEvent(job.ID, now))
	if err != nil {
		return nil, storageErr("create job", err)
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.commitEvent(event)

	return job.Clone(), nil
}

// GetJob retrieves a job by ID
func (s *MemoryStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("get job", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// TransitionJob applies the lifecycle guard to the stored job
func (s *MemoryStore) TransitionJob(ctx context.Context, id string, t models.Transition) (*models.Job, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, storageErr("transition job", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.jobs[id]
	if !ok {
		return nil, false, ErrNotFound
	}

	// Work on a copy so a failure below leaves the stored job untouched
	job := stored.Clone()
	event, applied := lifecycle.Apply(job, t, s.now())
	if !applied {
		return job, false, nil
	}

	prepared, err := s.prepareEvent(event)
	if err != nil {
		return nil, false, storageErr("transition job", err)
	}

	s.jobs[id] = job
	s.commitEvent(prepared)

	return job.Clone(), true, nil
}

// ListJobs lists jobs with an optional status filter
func (s *MemoryStore) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("list jobs", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*models.Job, 0)
	for i := range s.order {
		idx := i
		if !filter.Oldest {
			idx = len(s.order) - 1 - i
		}
		job := s.jobs[s.order[idx]]
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		jobs = append(jobs, job.Clone())
		if filter.Limit > 0 && len(jobs) == filter.Limit {
			break
		}
	}

	return jobs, nil
}

// CountJobsByStatus returns the number of jobs in each status
func (s *MemoryStore) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("count jobs", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.JobStatus]int, len(models.AllJobStatuses))
	for _, status := range models.AllJobStatuses {
		counts[status] = 0
	}
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// AppendEvent records an auxiliary event for a job
func (s *MemoryStore) AppendEvent(ctx context.Context, jobID string, eventType models.EventType, message string, data map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return storageErr("append event", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return ErrNotFound
	}

	event, err := s.prepareEvent(&models.JobEvent{
		JobID:     jobID,
		CreatedAt: s.now(),
		Type:      eventType,
		Message:   message,
		Data:      data,
	})
	if err != nil {
		return storageErr("append event", err)
	}

	s.commitEvent(event)
	return nil
}

// EventsSince returns the job's events after the cursor in ascending order
func (s *MemoryStore) EventsSince(ctx context.Context, jobID string, cursor *int64) ([]models.JobEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("events since", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.events[jobID]
	start := 0
	if cursor != nil {
		after := *cursor
		start = sort.Search(len(log), func(i int) bool { return log[i].ID > after })
	}

	out := make([]models.JobEvent, 0, len(log)-start)
	for _, event := range log[start:] {
		out = append(out, copyEvent(event))
	}
	return out, nil
}

// prepareEvent round-trips the payload through JSON, matching what a
// database would store. It does not assign the cursor.
func (s *MemoryStore) prepareEvent(event *models.JobEvent) (models.JobEvent, error) {
	prepared := *event
	if event.Data != nil {
		b, err := json.Marshal(event.Data)
		if err != nil {
			return models.JobEvent{}, fmt.Errorf("failed to encode event data: %w", err)
		}
		prepared.Data = nil
		if err := json.Unmarshal(b, &prepared.Data); err != nil {
			return models.JobEvent{}, fmt.Errorf("failed to decode event data: %w", err)
		}
	}
	return prepared, nil
}

// commitEvent assigns the next cursor. Callers hold the write lock.
func (s *MemoryStore) commitEvent(event models.JobEvent) {
	s.nextEventID++
	event.ID = s.nextEventID
	s.events[event.JobID] = append(s.events[event.JobID], event)
}

func copyEvent(event models.JobEvent) models.JobEvent {
	if event.Data != nil {
		data := make(map[string]interface{}, len(event.Data))
		for k, v := range event.Data {
			data[k] = v
		}
		event.Data = data
	}
	return event
}
