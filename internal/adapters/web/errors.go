package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"tradebooks/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps core sentinel errors to HTTP statuses. Structural
// category failures map to 500: they indicate a data-model gap, not a bad
// request.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		writeError(w, r, err.Error(), "INVALID_AMOUNT", http.StatusBadRequest)
	case errors.Is(err, core.ErrSameAccount):
		writeError(w, r, err.Error(), "SAME_ACCOUNT", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidOperation), errors.Is(err, core.ErrInvalidStatus):
		writeError(w, r, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
	case errors.Is(err, core.ErrAccountNotFound):
		writeError(w, r, err.Error(), "ACCOUNT_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrTransactionNotFound):
		writeError(w, r, err.Error(), "TRANSACTION_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrClientNotFound):
		writeError(w, r, err.Error(), "CLIENT_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrDeliveryNotFound):
		writeError(w, r, err.Error(), "DELIVERY_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrBackupNotFound):
		writeError(w, r, err.Error(), "BACKUP_NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrAccountInactive):
		writeError(w, r, err.Error(), "ACCOUNT_INACTIVE", http.StatusConflict)
	case errors.Is(err, core.ErrBudgetInsufficient):
		writeError(w, r, err.Error(), "BUDGET_INSUFFICIENT", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrBackupFailed):
		writeError(w, r, err.Error(), "BACKUP_FAILED", http.StatusInternalServerError)
	case errors.Is(err, core.ErrUnsupportedCategory), errors.Is(err, core.ErrUnclassifiedCategory):
		writeError(w, r, err.Error(), "UNSUPPORTED_CATEGORY", http.StatusInternalServerError)
	default:
		writeError(w, r, err.Error(), "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
