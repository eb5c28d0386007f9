package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/service"
	"github.com/flipscan/internal/types"
)

// handleCreateOpportunity promotes a listing into a tracked opportunity
func (s *Server) handleCreateOpportunity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ListingID string `json:"listingId"`
		OwnerID   string `json:"ownerId,omitempty"`
		Notes     string `json:"notes,omitempty"`
	}
	if err := parseJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	opportunity, err := s.opportunities.CreateFromListing(r.Context(), body.ListingID, body.OwnerID, body.Notes)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, opportunity)
}

// handleGetOpportunity returns one opportunity
func (s *Server) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	opportunity, err := s.opportunities.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, opportunity)
}

// handleUpdateOpportunity applies operator edits
func (s *Server) handleUpdateOpportunity(w http.ResponseWriter, r *http.Request) {
	var input service.UpdateOpportunityInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	opportunity, err := s.opportunities.Update(r.Context(), mux.Vars(r)["id"], input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, opportunity)
}

// handleDeleteOpportunity untracks an opportunity
func (s *Server) handleDeleteOpportunity(w http.ResponseWriter, r *http.Request) {
	if err := s.opportunities.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListOpportunities returns opportunities, optionally by status
func (s *Server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	status := types.OpportunityStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 50)

	opportunities, err := s.opportunities.List(r.Context(), status, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"opportunities": opportunities, "count": len(opportunities)})
}

// handleOpportunitySummary returns aggregate realized economics
func (s *Server) handleOpportunitySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.opportunities.Summary(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
