package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dealfinder/jobs"
	"dealfinder/models"
)

const (
	serviceName = "dealfinder"
	version     = "3.0.0"
)

// Searcher is the engine behind the HTTP surface
type Searcher interface {
	Submit(ctx context.Context, req models.SearchRequest) (string, error)
	Trigger(ctx context.Context, req models.SearchRequest) (string, error)
	Status(ctx context.Context, id string) (models.Job, error)
	Result(ctx context.Context, id string) (*models.Payload, error)
	CacheStats(ctx context.Context) (models.CacheStats, error)
	Active(ctx context.Context) (int, error)
}

type Server struct {
	search  Searcher
	started time.Time
}

func NewServer(search Searcher) *Server {
	return &Server{search: search, started: time.Now()}
}

// Router returns the HTTP handler for the service
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/search/smart", s.handleSmartSearch)
		r.Post("/trigger/full-search", s.handleTrigger)
		r.Get("/jobs/{jobID}", s.handleJob)
		r.Get("/results/{jobID}", s.handleResults)
		r.Get("/cache/stats", s.handleCacheStats)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	return r
}

type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type startedBody struct {
	JobID             string               `json:"jobId"`
	Status            string               `json:"status"`
	Message           string               `json:"message"`
	Parameters        models.SearchRequest `json:"parameters"`
	EstimatedDuration string               `json:"estimatedDuration"`
	StatusURL         string               `json:"checkStatusUrl"`
	ResultsURL        string               `json:"getResultsUrl"`
	Source            string               `json:"source,omitempty"`
}

func (s *Server) handleSmartSearch(w http.ResponseWriter, r *http.Request) {
	s.start(w, r, s.search.Submit, "Smart search started for %s", "4-8 seconds (cache-first)", "")
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	s.start(w, r, s.search.Trigger, "Full API search started for %s", "2-5 minutes (fresh scraping + analysis)", models.SourceTrigger)
}

func (s *Server) start(w http.ResponseWriter, r *http.Request,
	submit func(context.Context, models.SearchRequest) (string, error),
	message, estimate, source string) {

	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := submit(r.Context(), req)
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	if err != nil {
		log.Printf("Failed to start search: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to start search")
		return
	}

	params := req
	if job, err := s.search.Status(r.Context(), id); err == nil {
		params = job.Request
	}

	writeJSON(w, http.StatusAccepted, envelope{Success: true, Data: startedBody{
		JobID:             id,
		Status:            "started",
		Message:           fmt.Sprintf(message, params.Neighborhood),
		Parameters:        params,
		EstimatedDuration: estimate,
		StatusURL:         "/api/jobs/" + id,
		ResultsURL:        "/api/results/" + id,
		Source:            source,
	}})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.search.Status(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job ID not found")
		return
	}
	if err != nil {
		log.Printf("Failed to load job: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}
	if job.ThresholdUsed == 0 {
		job.ThresholdUsed = job.OriginalThreshold
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: job})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	payload, err := s.search.Result(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Results not found for this job ID")
		return
	}
	if err != nil {
		log.Printf("Failed to load results: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load results")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: payload})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.search.CacheStats(r.Context())
	if err != nil {
		log.Printf("Warning: cache stats unavailable: %v", err)
		stats = models.CacheStats{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: stats})
}

type healthBody struct {
	Status     string    `json:"status"`
	Service    string    `json:"service"`
	Timestamp  time.Time `json:"timestamp"`
	Uptime     float64   `json:"uptime"`
	Version    string    `json:"version"`
	ActiveJobs int       `json:"activeJobs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active, err := s.search.Active(r.Context())
	if err != nil {
		log.Printf("Warning: active job count unavailable: %v", err)
	}
	writeJSON(w, http.StatusOK, healthBody{
		Status:     "healthy",
		Service:    serviceName,
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(s.started).Seconds(),
		Version:    version,
		ActiveJobs: active,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: http.StatusText(status), Message: message})
}
