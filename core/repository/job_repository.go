package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aznelite89/travel-budget-estimator/core/lifecycle"
	"github.com/aznelite89/travel-budget-estimator/core/models"

	"github.com/google/uuid"
)

// JobRepository handles database operations for estimate jobs
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

const selectJobColumns = `
	SELECT job_id, request, status, created_at, started_at, finished_at, error, result
	FROM estimate_jobs
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// CreateJob inserts a queued job and its initial event in one transaction
func (r *JobRepository) CreateJob(ctx context.Context, req models.EstimateRequest) (*models.Job, error) {
	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	now := dbNow()
	job := &models.Job{
		ID:        uuid.New().String(),
		Request:   req,
		Status:    models.JobStatusQueued,
		CreatedAt: now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("create job", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO estimate_jobs (job_id, request, status, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, query, job.ID, string(requestJSON), job.Status, job.CreatedAt); err != nil {
		return nil, storageErr("create job", err)
	}

	if _, err := insertEventTx(ctx, tx, lifecycle.QueuedEvent(job.ID, now)); err != nil {
		return nil, storageErr("create job", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("create job", err)
	}

	return job, nil
}

// GetJob retrieves a job by ID
func (r *JobRepository) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := scanJob(r.db.QueryRowContext(ctx, selectJobColumns+" WHERE job_id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get job", err)
	}
	return job, nil
}

// TransitionJob locks the job row, applies the lifecycle guard and writes the
// job and its status event atomically
func (r *JobRepository) TransitionJob(ctx context.Context, id string, t models.Transition) (*models.Job, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, storageErr("transition job", err)
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRowContext(ctx, selectJobColumns+" WHERE job_id = $1 FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, storageErr("transition job", err)
	}

	event, applied := lifecycle.Apply(job, t, dbNow())
	if !applied {
		return job, false, nil
	}

	updateQuery := `
		UPDATE estimate_jobs
		SET status = $2, started_at = $3, finished_at = $4, error = $5, result = $6
		WHERE job_id = $1
	`
	_, err = tx.ExecContext(ctx, updateQuery,
		job.ID,
		job.Status,
		job.StartedAt,
		job.FinishedAt,
		job.Error,
		nullableJSON(job.Result),
	)
	if err != nil {
		return nil, false, storageErr("transition job", err)
	}

	if _, err := insertEventTx(ctx, tx, event); err != nil {
		return nil, false, storageErr("transition job", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, storageErr("transition job", err)
	}

	return job, true, nil
}

// ListJobs lists jobs with an optional status filter
func (r *JobRepository) ListJobs(ctx context.Context, filter models.JobFilter) ([]*models.Job, error) {
	query := selectJobColumns
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}

	if filter.Oldest {
		query += " ORDER BY created_at ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list jobs", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, storageErr("list jobs", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list jobs", err)
	}

	return jobs, nil
}

// CountJobsByStatus returns the number of jobs in each status
func (r *JobRepository) CountJobsByStatus(ctx context.Context) (map[models.JobStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM estimate_jobs GROUP BY status`)
	if err != nil {
		return nil, storageErr("count jobs", err)
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int, len(models.AllJobStatuses))
	for _, status := range models.AllJobStatuses {
		counts[status] = 0
	}
	for rows.Next() {
		var status models.JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storageErr("count jobs", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("count jobs", err)
	}

	return counts, nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var requestJSON []byte
	var startedAt sql.NullTime
	var finishedAt sql.NullTime
	var errorText sql.NullString
	var resultJSON []byte

	err := row.Scan(
		&job.ID,
		&requestJSON,
		&job.Status,
		&job.CreatedAt,
		&startedAt,
		&finishedAt,
		&errorText,
		&resultJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(requestJSON, &job.Request); err != nil {
		return nil, fmt.Errorf("failed to decode request of job %s: %w", job.ID, err)
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	if errorText.Valid {
		job.Error = &errorText.String
	}
	if len(resultJSON) > 0 {
		job.Result = json.RawMessage(resultJSON)
	}

	return &job, nil
}

// nullableJSON converts raw JSON into a value lib/pq sends as text, so that
// JSONB columns do not receive a bytea literal
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
