package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/aznelite89/travel-budget-estimator/api/rest/handlers"
	"github.com/aznelite89/travel-budget-estimator/core/repository"
	"github.com/aznelite89/travel-budget-estimator/core/scheduler"

	"github.com/gorilla/mux"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// Options configures the HTTP surface
type Options struct {
	StreamPollInterval time.Duration
	StreamPingInterval time.Duration
	SubmitLimiter      *rate.Limiter
	AllowedOrigins     []string
}

// Scheduler is what the routes need from the job runner
type Scheduler interface {
	handlers.Enqueuer
	QueueLen() int
}

var _ Scheduler = (*scheduler.Scheduler)(nil)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, store repository.Store, sched Scheduler, opts Options, logger arbor.ILogger) {
	jobHandler := handlers.NewJobHandler(store, sched, opts.SubmitLimiter, logger)
	streamer := handlers.NewEventStreamer(store, opts.StreamPollInterval, opts.StreamPingInterval, logger)
	dashboard := handlers.NewDashboardHandler(store, sched, logger)

	r.Use(loggingMiddleware(logger))
	r.Use(corsMiddleware(opts.AllowedOrigins))

	r.HandleFunc("/health", handlers.Health).Methods("GET", "OPTIONS")
	r.HandleFunc("/metrics", dashboard.GetMetrics).Methods("GET", "OPTIONS")

	api := r.PathPrefix("/api").Subrouter()

	// Job endpoints. stats is registered before {id} so it is not taken for a job ID.
	// Every route accepts OPTIONS so preflight reaches corsMiddleware.
	api.HandleFunc("/estimate-jobs", jobHandler.SubmitJob).Methods("POST", "OPTIONS")
	api.HandleFunc("/estimate-jobs", jobHandler.ListJobs).Methods("GET")
	api.HandleFunc("/estimate-jobs/stats", dashboard.GetJobStats).Methods("GET", "OPTIONS")
	api.HandleFunc("/estimate-jobs/{id}", jobHandler.GetJob).Methods("GET", "OPTIONS")
	api.HandleFunc("/estimate-jobs/{id}/cancel", jobHandler.CancelJob).Methods("POST", "OPTIONS")
	api.HandleFunc("/estimate-jobs/{id}/events", streamer.StreamEvents).Methods("GET", "OPTIONS")
}

// corsMiddleware allows the configured browser origins. Preflight requests
// are answered here.
func corsMiddleware(allowed []string) mux.MiddlewareFunc {
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (origins[origin] || origins["*"]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs each request once it completes
func loggingMiddleware(logger arbor.ILogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("HTTP response")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working through the recorder
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
