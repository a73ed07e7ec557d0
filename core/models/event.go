package models

import "time"

// JobEvent is an append-only status or progress record for a job.
// ID is the stream cursor: strictly increasing across the whole log.
type JobEvent struct {
	ID        int64
	JobID     string
	CreatedAt time.Time
	Type      EventType
	Message   string
	Data      map[string]interface{} // Optional structured payload
}

// EventType tags an event. Values other than the constants below are allowed.
type EventType string

const (
	EventTypeStatus   EventType = "status"
	EventTypeProgress EventType = "progress"
)
