package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flipscan/internal/types"
)

// handleListQueue returns queue items in a given state, pending by default
func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	status := types.QueueStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = types.QueueStatusPending
	}

	items, err := s.queue.List(r.Context(), status, queryInt(r, "limit", 50))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

// handleGetQueueItem returns one queue item
func (s *Server) handleGetQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.queue.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// handleRetryQueueItem requeues a failed item
func (s *Server) handleRetryQueueItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.queue.Retry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}
