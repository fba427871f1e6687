// ABOUTME: JSON error response helper for middleware
// ABOUTME: Ensures middleware failures match the API's response envelope

package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/mthomas/servicedesk-bff/models"
)

// writeJSONError writes a failure envelope with the given status code.
// Matches the format used by handlers for consistency.
func writeJSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.APIResponse{
		OK:    false,
		Error: &models.APIError{Message: message},
	})
}
