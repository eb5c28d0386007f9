package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/models"
)

// handleCreateSearch registers a recurring saved search
func (s *Server) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var search models.SavedSearch
	if err := parseJSONBody(r, &search); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}
	if search.Platform == "" {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "platform required", nil)
		return
	}
	if search.Location == "" && search.Category == "" && search.Keywords == "" {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "location, category, or keywords required", nil)
		return
	}

	search.ID = uuid.New().String()
	search.Enabled = true

	if err := s.searches.Create(r.Context(), &search); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, search)
}

// handleListSearches returns enabled saved searches
func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	searches, err := s.searches.ListEnabled(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"searches": searches, "count": len(searches)})
}

// handleSetSearchEnabled toggles a saved search
func (s *Server) handleSetSearchEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := parseJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.searches.SetEnabled(r.Context(), id, body.Enabled); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "enabled": body.Enabled})
}

// handleDeleteSearch removes a saved search
func (s *Server) handleDeleteSearch(w http.ResponseWriter, r *http.Request) {
	if err := s.searches.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
