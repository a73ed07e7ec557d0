package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/aznelite89/travel-budget-estimator/core/models"
	"github.com/aznelite89/travel-budget-estimator/core/repository"
)

const validBody = `{
	"trip_title": "Tokyo spring",
	"origin": "KUL",
	"destination": "NRT",
	"start_date": "2026-04-01",
	"end_date": "2026-04-08",
	"travelers": 2
}`

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *fakeQueue) Enqueue(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, jobID)
}

func (q *fakeQueue) QueueLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

func newTestRouter(store repository.Store, queue *fakeQueue, limiter *rate.Limiter) *mux.Router {
	logger := arbor.NewLogger()
	jobs := NewJobHandler(store, queue, limiter, logger)
	dashboard := NewDashboardHandler(store, queue, logger)

	r := mux.NewRouter()
	r.HandleFunc("/health", Health).Methods("GET")
	r.HandleFunc("/metrics", dashboard.GetMetrics).Methods("GET")
	r.HandleFunc("/api/estimate-jobs", jobs.SubmitJob).Methods("POST")
	r.HandleFunc("/api/estimate-jobs", jobs.ListJobs).Methods("GET")
	r.HandleFunc("/api/estimate-jobs/stats", dashboard.GetJobStats).Methods("GET")
	r.HandleFunc("/api/estimate-jobs/{id}", jobs.GetJob).Methods("GET")
	r.HandleFunc("/api/estimate-jobs/{id}/cancel", jobs.CancelJob).Methods("POST")
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSubmitJob(t *testing.T) {
	store := repository.NewMemoryStore()
	queue := &fakeQueue{}
	router := newTestRouter(store, queue, nil)

	rec := do(t, router, "POST", "/api/estimate-jobs", validBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	job := decodeJob(t, rec)
	assert.Equal(t, "queued", job["status"])
	assert.NotEmpty(t, job["job_id"])
	assert.NotEmpty(t, job["created_at"])
	for _, key := range []string{"started_at", "finished_at", "error", "result"} {
		assert.Contains(t, job, key)
		assert.Nil(t, job[key], key)
	}

	req := job["request"].(map[string]interface{})
	assert.Equal(t, "MYR", req["currency"])
	assert.Equal(t, "midrange", req["budget_style"])

	assert.Equal(t, []string{job["job_id"].(string)}, queue.ids)

	events, err := store.EventsSince(context.Background(), job["job_id"].(string), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Job queued", events[0].Message)
}

func TestSubmitJobAcceptsYAML(t *testing.T) {
	router := newTestRouter(repository.NewMemoryStore(), &fakeQueue{}, nil)

	body := "trip_title: Osaka\norigin: KUL\ndestination: KIX\nstart_date: \"2026-05-01\"\nend_date: \"2026-05-03\"\ntravelers: 1\n"
	req := httptest.NewRequest("POST", "/api/estimate-jobs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/yaml")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSubmitJobRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"malformed json", `{"origin":`, ""},
		{"missing destination", `{"trip_title":"t","origin":"KUL","start_date":"2026-04-01","end_date":"2026-04-02","travelers":1}`, "destination"},
		{"no travelers", `{"trip_title":"t","origin":"KUL","destination":"NRT","start_date":"2026-04-01","end_date":"2026-04-02","travelers":0}`, "travelers"},
		{"bad style", `{"trip_title":"t","origin":"KUL","destination":"NRT","start_date":"2026-04-01","end_date":"2026-04-02","travelers":1,"budget_style":"yolo"}`, "budget_style"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			queue := &fakeQueue{}
			rec := do(t, newTestRouter(store, queue, nil), "POST", "/api/estimate-jobs", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Detail)
			if tt.field != "" {
				assert.Contains(t, resp.Fields, tt.field)
			}

			jobs, err := store.ListJobs(context.Background(), models.JobFilter{})
			require.NoError(t, err)
			assert.Empty(t, jobs)
			assert.Empty(t, queue.ids)
		})
	}
}

func TestSubmitJobRateLimited(t *testing.T) {
	router := newTestRouter(repository.NewMemoryStore(), &fakeQueue{}, rate.NewLimiter(0, 1))

	assert.Equal(t, http.StatusCreated, do(t, router, "POST", "/api/estimate-jobs", validBody).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, router, "POST", "/api/estimate-jobs", validBody).Code)
}

// brokenStore fails every write
type brokenStore struct {
	repository.Store
}

func (brokenStore) CreateJob(ctx context.Context, req models.EstimateRequest) (*models.Job, error) {
	return nil, &repository.StorageError{Op: "create job", Err: errors.New("connection refused")}
}

func (brokenStore) TransitionJob(ctx context.Context, id string, t models.Transition) (*models.Job, bool, error) {
	return nil, false, &repository.StorageError{Op: "transition job", Err: errors.New("connection refused")}
}

func TestStorageFailuresAre500(t *testing.T) {
	queue := &fakeQueue{}
	router := newTestRouter(brokenStore{repository.NewMemoryStore()}, queue, nil)

	rec := do(t, router, "POST", "/api/estimate-jobs", validBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Empty(t, queue.ids)

	rec = do(t, router, "POST", "/api/estimate-jobs/abc/cancel", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetJob(t *testing.T) {
	store := repository.NewMemoryStore()
	router := newTestRouter(store, &fakeQueue{}, nil)

	created := decodeJob(t, do(t, router, "POST", "/api/estimate-jobs", validBody))
	id := created["job_id"].(string)

	rec := do(t, router, "GET", "/api/estimate-jobs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decodeJob(t, rec))

	rec = do(t, router, "GET", "/api/estimate-jobs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Job not found"}`, rec.Body.String())
}

func TestGetFinishedJobIncludesResult(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	job, err := store.CreateJob(ctx, models.EstimateRequest{TripTitle: "t"})
	require.NoError(t, err)
	_, _, err = store.TransitionJob(ctx, job.ID, models.Transition{To: models.JobStatusRunning})
	require.NoError(t, err)
	_, _, err = store.TransitionJob(ctx, job.ID, models.Transition{To: models.JobStatusDone, Result: json.RawMessage(`{"totals":{"base":10}}`)})
	require.NoError(t, err)

	rec := do(t, newTestRouter(store, &fakeQueue{}, nil), "GET", "/api/estimate-jobs/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeJob(t, rec)
	assert.Equal(t, "done", got["status"])
	assert.Equal(t, map[string]interface{}{"totals": map[string]interface{}{"base": 10.0}}, got["result"])
	assert.NotNil(t, got["started_at"])
	assert.NotNil(t, got["finished_at"])
}

func TestCancelJob(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	router := newTestRouter(store, &fakeQueue{}, nil)

	id := decodeJob(t, do(t, router, "POST", "/api/estimate-jobs", validBody))["job_id"].(string)

	rec := do(t, router, "POST", "/api/estimate-jobs/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJob(t, rec)
	assert.Equal(t, "cancelled", got["status"])
	assert.NotNil(t, got["finished_at"])
	assert.Nil(t, got["started_at"])

	// A second cancel is a no-op returning the same state
	rec = do(t, router, "POST", "/api/estimate-jobs/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, got, decodeJob(t, rec))

	events, err := store.EventsSince(ctx, id, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Job cancelled", events[1].Message)

	assert.Equal(t, http.StatusNotFound, do(t, router, "POST", "/api/estimate-jobs/missing/cancel", "").Code)
}

func TestCancelFinishedJobKeepsOutcome(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	job, err := store.CreateJob(ctx, models.EstimateRequest{TripTitle: "t"})
	require.NoError(t, err)
	_, _, err = store.TransitionJob(ctx, job.ID, models.Transition{To: models.JobStatusRunning})
	require.NoError(t, err)
	_, _, err = store.TransitionJob(ctx, job.ID, models.Transition{To: models.JobStatusError, Error: "APIError: boom"})
	require.NoError(t, err)

	rec := do(t, newTestRouter(store, &fakeQueue{}, nil), "POST", "/api/estimate-jobs/"+job.ID+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeJob(t, rec)
	assert.Equal(t, "error", got["status"])
	assert.Equal(t, "APIError: boom", got["error"])
}

func TestListJobs(t *testing.T) {
	store := repository.NewMemoryStore()
	router := newTestRouter(store, &fakeQueue{}, nil)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, decodeJob(t, do(t, router, "POST", "/api/estimate-jobs", validBody))["job_id"].(string))
	}
	do(t, router, "POST", "/api/estimate-jobs/"+ids[0]+"/cancel", "")

	var list struct {
		Items []JobResponse `json:"items"`
	}

	rec := do(t, router, "GET", "/api/estimate-jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 3)
	assert.Equal(t, ids[2], list.Items[0].JobID)

	rec = do(t, router, "GET", "/api/estimate-jobs?status=cancelled", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, ids[0], list.Items[0].JobID)

	rec = do(t, router, "GET", "/api/estimate-jobs?limit=2", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Items, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, router, "GET", "/api/estimate-jobs?status=paused", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, "GET", "/api/estimate-jobs?limit=zero", "").Code)
}

func TestJobStatsAndMetrics(t *testing.T) {
	store := repository.NewMemoryStore()
	queue := &fakeQueue{}
	router := newTestRouter(store, queue, nil)

	id := decodeJob(t, do(t, router, "POST", "/api/estimate-jobs", validBody))["job_id"].(string)
	do(t, router, "POST", "/api/estimate-jobs", validBody)
	do(t, router, "POST", "/api/estimate-jobs/"+id+"/cancel", "")

	rec := do(t, router, "GET", "/api/estimate-jobs/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats JobStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["queued"])
	assert.Equal(t, 1, stats.ByStatus["cancelled"])
	assert.Equal(t, 0, stats.ByStatus["running"])
	assert.Equal(t, 2, stats.QueueDepth)

	rec = do(t, router, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `estimate_jobs{status="cancelled"} 1`)
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(repository.NewMemoryStore(), &fakeQueue{}, nil), "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
