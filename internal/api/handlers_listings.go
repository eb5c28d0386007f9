package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/types"
)

// handleListListings returns listings matching the query-string filter
func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := storage.ListingFilter{
		Platform: types.Platform(query.Get("platform")),
		Status:   types.ListingStatus(query.Get("status")),
		Category: query.Get("category"),
		MinScore: queryInt(r, "minScore", 0),
		Limit:    queryInt(r, "limit", 50),
		Offset:   queryInt(r, "offset", 0),
		SortBy:   query.Get("sortBy"),
	}
	if owner := query.Get("ownerId"); owner != "" {
		filter.OwnerID = &owner
	}
	if query.Get("order") == "asc" {
		filter.Ascending = true
	}

	listings, err := s.listings.List(r.Context(), filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"listings": listings, "count": len(listings)})
}

// handleGetListing returns one listing
func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.listings.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

// handleSetListingStatus updates the operator-owned status field
func (s *Server) handleSetListingStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status types.ListingStatus `json:"status"`
	}
	if err := parseJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.listings.SetStatus(r.Context(), id, body.Status); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(body.Status)})
}

// handleSetListingNotes updates the operator-owned notes field
func (s *Server) handleSetListingNotes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := parseJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	id := mux.Vars(r)["id"]
	if err := s.listings.SetNotes(r.Context(), id, body.Notes); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": id})
}

// handleListingStats returns listing counts by status
func (s *Server) handleListingStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.listings.Stats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}
