package httpapi

import (
	"encoding/json"
	"net/http"

	"inferd/internal/engine"
	"inferd/internal/resolver"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusForError maps well-known domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case resolver.IsPersonaNotFound(err):
		return http.StatusNotFound
	case resolver.IsModelUnavailable(err):
		return http.StatusBadRequest
	case engine.IsEngineBusy(err):
		return http.StatusTooManyRequests
	case engine.IsNotReady(err):
		return http.StatusServiceUnavailable
	case engine.IsBackendUnavailable(err):
		return http.StatusServiceUnavailable
	case engine.IsModelNotFound(err):
		return http.StatusNotFound
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeDomainError maps err to a status and writes the JSON payload,
// bumping the busy counter for 429s.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusTooManyRequests {
		IncrementBusyReject("engine_busy")
	}
	writeJSONError(w, status, err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
