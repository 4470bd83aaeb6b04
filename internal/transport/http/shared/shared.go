// Package shared holds response helpers used by every HTTP handler so error
// envelopes and JSON encoding stay uniform across the API.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "bidhub/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for all error responses.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP status and envelope.
// Non-domain errors become opaque 500s so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteJSON(w, dErrors.ToHTTPStatus(domainErr.Code), ErrorResponse{
			Error:       string(domainErr.Code),
			Description: domainErr.Message,
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: string(dErrors.CodeInternal)})
}
