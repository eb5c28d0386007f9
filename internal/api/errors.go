package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/storage"
	"github.com/flipscan/internal/types"
)

// ErrorResponse is the API error envelope
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an explicit error response
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondServiceError maps a service-layer error onto the wire. Categorized
// errors carry their own status code; anything else is an opaque 500.
func respondServiceError(w http.ResponseWriter, err error) {
	// Repository errors reaching the API directly carry the sentinel
	if stderrors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, errors.CodeNotFound, err.Error(), nil)
		return
	}

	categorized := errors.Categorize(err)
	if categorized == nil {
		respondError(w, http.StatusInternalServerError, errors.CodeInternalError, "An internal error occurred", nil)
		return
	}

	serviceErr := categorized.ToServiceError()
	respondError(w, errors.GetHTTPStatusCode(err), serviceErr.Code, serviceErr.Message, serviceErr.Details)
}

// parseJSONBody parses a JSON request body, rejecting unknown fields
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
