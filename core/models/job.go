package models

import (
	"encoding/json"
	"time"
)

// Job represents one budget estimate request tracked from submission to a terminal status
type Job struct {
	ID         string
	Request    EstimateRequest // Snapshot taken at creation, never modified
	Status     JobStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Error      *string
	Result     json.RawMessage // Opaque estimator output
}

// JobStatus represents the current status of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

// AllJobStatuses lists every status in lifecycle order
var AllJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusRunning,
	JobStatusDone,
	JobStatusError,
	JobStatusCancelled,
}

// IsTerminal reports whether no further transitions are permitted from s
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusDone, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	for _, known := range AllJobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Transition describes a requested status change and the fields that travel with it
type Transition struct {
	To     JobStatus
	Error  string          // Only used with JobStatusError
	Result json.RawMessage // Only used with JobStatusDone
}

// Clone returns a copy of the job that shares no mutable state with j
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.Error != nil {
		e := *j.Error
		c.Error = &e
	}
	if j.Result != nil {
		c.Result = append(json.RawMessage(nil), j.Result...)
	}
	return &c
}

// JobFilter narrows job listings
type JobFilter struct {
	Status *JobStatus
	Limit  int
	Oldest bool // Oldest first instead of newest first
}
