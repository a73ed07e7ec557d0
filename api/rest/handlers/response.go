package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"

	"github.com/ternarybob/arbor"
)

// JobResponse is the JSON snapshot of a job returned by every job endpoint
type JobResponse struct {
	JobID      string                 `json:"job_id"`
	Status     models.JobStatus       `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	StartedAt  *time.Time             `json:"started_at"`
	FinishedAt *time.Time             `json:"finished_at"`
	Error      *string                `json:"error"`
	Result     json.RawMessage        `json:"result"`
	Request    models.EstimateRequest `json:"request"`
}

func newJobResponse(job *models.Job) JobResponse {
	result := job.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return JobResponse{
		JobID:      job.ID,
		Status:     job.Status,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
		Error:      job.Error,
		Result:     result,
		Request:    job.Request,
	}
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeStoreError maps a store error onto a response: unknown jobs are 404,
// anything else is a storage failure and is logged.
func writeStoreError(w http.ResponseWriter, logger arbor.ILogger, jobID string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	logger.Error().Str("job_id", jobID).Err(err).Msg("Store operation failed")
	writeError(w, http.StatusInternalServerError, "Internal storage error")
}
