package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aznelite89/travel-budget-estimator/core/models"
)

// EventRepository handles database operations for job events
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// AppendEvent records an auxiliary event for a job. The job row is locked for
// the duration of the insert so cursors of one job are handed out in commit
// order, the same as for status events written by TransitionJob.
func (r *EventRepository) AppendEvent(ctx context.Context, jobID string, eventType models.EventType, message string, data map[string]interface{}) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("append event", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT job_id FROM estimate_jobs WHERE job_id = $1 FOR UPDATE`, jobID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return storageErr("append event", err)
	}

	event := &models.JobEvent{
		JobID:     jobID,
		CreatedAt: dbNow(),
		Type:      eventType,
		Message:   message,
		Data:      data,
	}
	if _, err := insertEventTx(ctx, tx, event); err != nil {
		return storageErr("append event", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("append event", err)
	}
	return nil
}

// EventsSince retrieves the events of a job after the given cursor
func (r *EventRepository) EventsSince(ctx context.Context, jobID string, cursor *int64) ([]models.JobEvent, error) {
	var after int64
	if cursor != nil {
		after = *cursor
	}

	query := `
		SELECT id, job_id, created_at, type, message, data
		FROM estimate_job_events
		WHERE job_id = $1 AND id > $2
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, jobID, after)
	if err != nil {
		return nil, storageErr("events since", err)
	}
	defer rows.Close()

	events := []models.JobEvent{}
	for rows.Next() {
		var event models.JobEvent
		var dataJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.CreatedAt,
			&event.Type,
			&event.Message,
			&dataJSON,
		)
		if err != nil {
			return nil, storageErr("events since", err)
		}

		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &event.Data); err != nil {
				return nil, storageErr("events since", fmt.Errorf("event %d: %w", event.ID, err))
			}
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("events since", err)
	}

	return events, nil
}

func insertEventTx(ctx context.Context, tx *sql.Tx, event *models.JobEvent) (int64, error) {
	query := `
		INSERT INTO estimate_job_events (job_id, created_at, type, message, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var dataJSON interface{}
	if event.Data != nil {
		b, err := json.Marshal(event.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to encode event data: %w", err)
		}
		dataJSON = string(b)
	}

	var id int64
	err := tx.QueryRowContext(ctx, query, event.JobID, event.CreatedAt, event.Type, event.Message, dataJSON).Scan(&id)
	if err != nil {
		return 0, err
	}
	event.ID = id
	return id, nil
}
