package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/types"
)

// handleDraftMessage drafts an opening message for a listing
func (s *Server) handleDraftMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ListingID string `json:"listingId"`
		OwnerID   string `json:"ownerId,omitempty"`
	}
	if err := parseJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	message, err := s.messages.Draft(r.Context(), body.ListingID, body.OwnerID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, message)
}

// handleGetMessage returns one message
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	message, err := s.messages.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, message)
}

// handleEditMessage replaces a draft's body
func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Body string `json:"body"`
	}
	if err := parseJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	message, err := s.messages.Edit(r.Context(), mux.Vars(r)["id"], body.Body)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, message)
}

// handleApproveMessage approves a draft and enqueues its delivery
func (s *Server) handleApproveMessage(w http.ResponseWriter, r *http.Request) {
	message, err := s.messages.Approve(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, message)
}

// handleRejectMessage discards a draft
func (s *Server) handleRejectMessage(w http.ResponseWriter, r *http.Request) {
	message, err := s.messages.Reject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, message)
}

// handleListMessages lists messages by listing or by workflow state
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if listingID := query.Get("listingId"); listingID != "" {
		messages, err := s.messages.ListByListing(r.Context(), listingID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages, "count": len(messages)})
		return
	}

	status := types.MessageStatus(query.Get("status"))
	if status == "" {
		status = types.MessageStatusPendingApproval
	}
	messages, err := s.messages.ListByStatus(r.Context(), status, queryInt(r, "limit", 50))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages, "count": len(messages)})
}
