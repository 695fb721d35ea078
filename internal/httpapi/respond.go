package httpapi

import (
	"encoding/json"
	"errors"
	"foodflow/internal/core"
	"net/http"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeServiceError maps service errors onto status codes.
func (s *server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   core.ErrNotFound
		invalid    core.ValidationError
		referenced core.ErrReferenced
		violation  core.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      err.Error(),
			"violations": violation.Result.Violations,
		})
	case errors.Is(err, core.ErrEmailTaken), errors.As(err, &referenced):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// withWarnings adds non-blocking rule violations to a response envelope.
func withWarnings(payload map[string]any, res core.Result) map[string]any {
	if len(res.Violations) > 0 {
		payload["violations"] = res.Violations
	}
	return payload
}
