package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/lumen/internal/apperr"
	"github.com/MikeSquared-Agency/lumen/internal/processor"
)

type errorBody struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperr.ErrInputValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConversion), errors.Is(err, apperr.ErrNoSpeechDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrModelInvocation):
		return http.StatusBadGateway
	case errors.Is(err, processor.ErrDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto a status code. Server-side failures are logged
// and reported with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, runID string, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "run_id", runID, "error", err)
		msg = "processing failed"
	}
	writeJSON(w, code, errorBody{Error: msg, RunID: runID})
}
