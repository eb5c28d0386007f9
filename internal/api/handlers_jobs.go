package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/service"
)

// handleCreateJob creates a scrape job and executes it in the background.
// The response is the pending job; poll GET /api/jobs/{id} for progress.
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var input service.StartJobInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	job, err := s.jobs.CreateJob(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Detached from the request context so the scrape survives the response
	background := context.WithoutCancel(r.Context())
	go func() {
		if err := s.jobs.Execute(background, job); err != nil {
			s.logger.WithError(err).WithField("jobId", job.ID).Warn("Background job failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, job)
}

// handleGetJob returns one scrape job
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// handleListJobs returns recent scrape jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	jobs, err := s.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "count": len(jobs)})
}

// queryInt reads an integer query parameter with a default
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
