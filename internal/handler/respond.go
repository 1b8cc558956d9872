package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/daybook/internal/validation"
)

const maxBodyBytes = 1 << 20

// Validator checks a raw request body against a named contract.
type Validator interface {
	Validate(name string, body []byte) ([]validation.FieldError, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidationError(w http.ResponseWriter, details []validation.FieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   "Validation error",
		"details": details,
	})
}

// decodeValid reads the body, checks it against the named contract and
// decodes it into dst. It writes the error response itself and reports
// whether the handler should continue.
func decodeValid(w http.ResponseWriter, r *http.Request, v Validator, logger *slog.Logger, name string, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	details, err := v.Validate(name, body)
	if err != nil {
		logger.Error("validate request", "schema", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return false
	}
	if len(details) > 0 {
		writeValidationError(w, details)
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeValidationError(w, []validation.FieldError{{Field: "(root)", Message: err.Error()}})
		return false
	}
	return true
}

func internalError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
