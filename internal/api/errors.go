package api

import (
	"encoding/json"
	"net/http"

	"github.com/wallet-sync/internal/errors"
	"github.com/wallet-sync/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error *types.ServiceError `json:"error"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError maps an error to its HTTP status and writes the service
// error body.
func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, errors.GetHTTPStatusCode(err), ErrorResponse{
		Error: errors.Categorize(err).ToServiceError(),
	})
}

// respondErrorCode writes an error body without an underlying error value.
func respondErrorCode(w http.ResponseWriter, statusCode int, code, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: &types.ServiceError{Code: code, Message: message},
	})
}

// parseJSONBody parses a JSON request body, rejecting unknown fields.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
