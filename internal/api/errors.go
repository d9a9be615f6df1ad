package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:            http.StatusBadRequest,
	apperr.KindNotFound:              http.StatusNotFound,
	apperr.KindInvalidTransition:     http.StatusConflict,
	apperr.KindSlotUnavailable:       http.StatusConflict,
	apperr.KindDuplicateEntry:        http.StatusConflict,
	apperr.KindConflict:              http.StatusConflict,
	apperr.KindDependencyUnavailable: http.StatusServiceUnavailable,
}

// writeServiceError renders err by kind. Errors without a kind are logged and
// reported as internal errors without their text.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperr.As(err); ok {
		status, known := kindStatus[e.Kind]
		if known {
			if status >= http.StatusInternalServerError {
				log.Ctx(r.Context()).Warn().Err(err).Msg("dependency unavailable")
			}
			writeJSON(w, status, ErrorResponse{
				Error:   string(e.Kind),
				Details: e.Message,
				Field:   e.Field,
				State:   e.State,
			})
			return
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, string(apperr.KindDependencyUnavailable), "request timed out")
		return
	}

	log.Ctx(r.Context()).Error().Err(err).Msg("unhandled error")
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
}

func badRequest(w http.ResponseWriter, field, details string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   string(apperr.KindValidation),
		Details: details,
		Field:   field,
	})
}
