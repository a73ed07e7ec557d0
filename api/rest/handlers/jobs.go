package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"
	"github.com/aznelite89/travel-budget-estimator/core/request"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50
	maxListLimit     = 200
)

// Enqueuer hands a created job to the runner
type Enqueuer interface {
	Enqueue(jobID string)
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	store     repository.Store
	scheduler Enqueuer
	limiter   *rate.Limiter
	logger    arbor.ILogger
}

// NewJobHandler creates a new job handler. A nil limiter disables
// submission rate limiting.
func NewJobHandler(store repository.Store, sched Enqueuer, limiter *rate.Limiter, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		store:     store,
		scheduler: sched,
		limiter:   limiter,
		logger:    logger,
	}
}

// SubmitJob handles POST /api/estimate-jobs
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many estimate requests, try again shortly")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := request.ParseEstimateRequest(body, r.Header.Get("Content-Type"))
	if err != nil {
		var verr *request.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: verr.Error(), Fields: verr.Fields})
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.store.CreateJob(r.Context(), req)
	if err != nil {
		writeStoreError(w, h.logger, "", err)
		return
	}

	h.scheduler.Enqueue(job.ID)

	h.logger.Info().
		Str("job_id", job.ID).
		Str("origin", req.Origin).
		Str("destination", req.Destination).
		Msg("Estimate job queued")

	writeJSON(w, http.StatusCreated, newJobResponse(job))
}

// GetJob handles GET /api/estimate-jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeStoreError(w, h.logger, jobID, err)
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(job))
}

// ListJobs handles GET /api/estimate-jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := models.JobFilter{Limit: defaultListLimit}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := models.JobStatus(statusParam)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown status: "+statusParam)
			return
		}
		filter.Status = &status
	}

	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		limit, err := strconv.Atoi(limitParam)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	jobs, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		writeStoreError(w, h.logger, "", err)
		return
	}

	items := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		items[i] = newJobResponse(job)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
	})
}

// CancelJob handles POST /api/estimate-jobs/{id}/cancel. Cancelling a job
// that already finished returns its current state unchanged.
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, applied, err := h.store.TransitionJob(r.Context(), jobID, models.Transition{To: models.JobStatusCancelled})
	if err != nil {
		writeStoreError(w, h.logger, jobID, err)
		return
	}

	if applied {
		h.logger.Info().Str("job_id", jobID).Msg("Estimate job cancelled")
	}

	writeJSON(w, http.StatusOK, newJobResponse(job))
}
