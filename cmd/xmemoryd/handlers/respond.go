// Package handlers provides the REST API handlers for the cloud-memory
// service.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/xmemory/xmemory/internal/errors"
	"github.com/xmemory/xmemory/internal/logging"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps an error to the HTTP taxonomy. Unexpected errors become a
// generic 500 with the detail logged server-side only.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)

	status := http.StatusInternalServerError
	message := "Internal server error"

	switch code {
	case apperrors.ErrUnauthorized, apperrors.ErrSessionExpired:
		status = http.StatusUnauthorized
		message = "Authentication required"
	case apperrors.ErrNotFound, apperrors.ErrMemoryNotFound, apperrors.ErrVersionNotFound:
		status = http.StatusNotFound
	case apperrors.ErrValidation, apperrors.ErrInvalid:
		status = http.StatusBadRequest
	case apperrors.ErrQuotaExceeded, apperrors.ErrSyncDisabled, apperrors.ErrPermission:
		status = http.StatusForbidden
	case apperrors.ErrSyncConflict:
		status = http.StatusConflict
	}

	if status != http.StatusInternalServerError {
		if appErr, ok := err.(*apperrors.AppError); ok {
			message = appErr.Message
		}
	} else {
		logging.Error("Request failed", err)
	}

	writeJSON(w, status, map[string]interface{}{
		"error": message,
		"code":  string(code),
	})
}

// validationError is shorthand for a 400 with a field-naming message.
func validationError(w http.ResponseWriter, message string) {
	writeError(w, apperrors.New(apperrors.ErrValidation, message))
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
