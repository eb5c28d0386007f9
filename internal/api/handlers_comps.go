package api

import (
	"net/http"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/models"
)

// handleGetComps returns the market-value snapshot for a product. A product
// without enough comparable sales yields 404, mirroring the estimator's
// fallback to heuristics.
func (s *Server) handleGetComps(w http.ResponseWriter, r *http.Request) {
	product := r.URL.Query().Get("product")
	if product == "" {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "product query parameter required", nil)
		return
	}

	value := s.comps.GetMarketValue(r.Context(), product)
	if value == nil {
		respondError(w, http.StatusNotFound, errors.CodeNotFound, "no market value available for "+product, nil)
		return
	}
	respondJSON(w, http.StatusOK, value)
}

// handleRecordComps stores externally observed sold listings
func (s *Server) handleRecordComps(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Comparables []models.Comparable `json:"comparables"`
	}
	if err := parseJSONBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}
	if len(body.Comparables) == 0 {
		respondError(w, http.StatusBadRequest, errors.CodeInvalidInput, "comparables must not be empty", nil)
		return
	}

	if err := s.comps.RecordSold(r.Context(), body.Comparables); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]int{"recorded": len(body.Comparables)})
}
