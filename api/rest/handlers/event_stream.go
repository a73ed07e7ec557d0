package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"
)

// EventStreamer serves a job's event log as Server-Sent Events by tailing
// the store. Every stream polls independently, so one client going away
// never affects another.
type EventStreamer struct {
	store        repository.Store
	pollInterval time.Duration
	pingInterval time.Duration
	logger       arbor.ILogger
}

// NewEventStreamer creates a new event streamer
func NewEventStreamer(store repository.Store, pollInterval, pingInterval time.Duration, logger arbor.ILogger) *EventStreamer {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 15 * time.Second
	}
	return &EventStreamer{
		store:        store,
		pollInterval: pollInterval,
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// eventPayload is the JSON carried in the data field of each frame
type eventPayload struct {
	ID        int64                  `json:"id"`
	JobID     string                 `json:"job_id"`
	Type      models.EventType       `json:"type"`
	Message   string                 `json:"message"`
	CreatedAt time.Time              `json:"created_at"`
	Data      map[string]interface{} `json:"data"`
}

// StreamEvents handles GET /api/estimate-jobs/{id}/events. The stream
// resumes after the cursor in the Last-Event-ID header, or the
// last_event_id query parameter for clients that cannot set headers.
func (s *EventStreamer) StreamEvents(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	ctx := r.Context()

	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		writeStoreError(w, s.logger, jobID, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	cursor := parseCursor(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.logger.Debug().Str("job_id", jobID).Msg("Event stream opened")
	defer s.logger.Debug().Str("job_id", jobID).Msg("Event stream closed")

	pollTicker := time.NewTicker(s.pollInterval)
	pingTicker := time.NewTicker(s.pingInterval)
	defer pollTicker.Stop()
	defer pingTicker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		events, err := s.store.EventsSince(ctx, jobID, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to poll job events")
		} else if len(events) > 0 {
			for _, event := range events {
				if err := writeEvent(w, event); err != nil {
					return
				}
				id := event.ID
				cursor = &id
			}
			flusher.Flush()
			pingTicker.Reset(s.pingInterval)
		}

		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-pollTicker.C:
		}
	}
}

// parseCursor reads the resume cursor; a missing or malformed value means
// start from the first event
func parseCursor(r *http.Request) *int64 {
	raw := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("last_event_id"))
	}
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return nil
	}
	return &id
}

func writeEvent(w io.Writer, event models.JobEvent) error {
	payload, err := json.Marshal(eventPayload{
		ID:        event.ID,
		JobID:     event.JobID,
		Type:      event.Type,
		Message:   event.Message,
		CreatedAt: event.CreatedAt,
		Data:      event.Data,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, sanitizeField(string(event.Type)), payload)
	return err
}

// sanitizeField keeps a value on a single SSE line
func sanitizeField(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
