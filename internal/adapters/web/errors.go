package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"seva-invoicing/internal/app"
	"seva-invoicing/internal/core"
	"seva-invoicing/internal/render"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps domain errors to HTTP responses. Anything unknown
// is a 500 carrying the error text so the form can show it.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorResponse(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     "invoice is incomplete or inconsistent",
			Code:      "VALIDATION_FAILED",
			RequestID: requestIDFromContext(r.Context()),
			Fields:    verr.Fields,
		})
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, "invoice not found", "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrSubmitInFlight):
		writeError(w, r, "this invoice is already being saved", "SUBMIT_IN_PROGRESS", http.StatusConflict)
	case errors.Is(err, app.ErrInvalidInput):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, render.ErrMissingField):
		writeError(w, r, err.Error(), "UNPRINTABLE_INVOICE", http.StatusUnprocessableEntity)
	case errors.Is(err, render.ErrAssetTimeout):
		writeError(w, r, "timed out loading document assets", "ASSET_TIMEOUT", http.StatusGatewayTimeout)
	default:
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
