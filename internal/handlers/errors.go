package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crucial707/labstock/internal/inventory"
	"github.com/crucial707/labstock/internal/repo"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "internal server error"

// ErrMessageCorruptLog is returned after an unreadable audit log has been
// quarantined and replaced with an empty one.
const ErrMessageCorruptLog = "the audit log could not be read and was reset (the old log was kept aside); please retry"

// JSONError sends a JSON error response with a single "error" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// JSONValidationError sends "error" plus optional per-field details.
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	out := map[string]any{"error": message}
	if len(fields) > 0 {
		out["fields"] = fields
	}
	writeJSON(w, status, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StatusFor maps a domain error to the HTTP status and client-safe message
// used by the JSON API. Unknown errors map to 500.
func StatusFor(err error) (int, string) {
	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, inputErr.Error()
	case errors.Is(err, repo.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, repo.ErrItemNotFound):
		return http.StatusNotFound, "reagent not found"
	case errors.Is(err, repo.ErrInsufficientStock):
		return http.StatusConflict, "insufficient stock"
	case errors.Is(err, inventory.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, inventory.ErrAuditIncomplete):
		return http.StatusInternalServerError, inventory.ErrAuditIncomplete.Error()
	default:
		return http.StatusInternalServerError, ErrMessageInternal
	}
}
