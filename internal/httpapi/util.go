package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"cpted-sync/internal/repository"
	"cpted-sync/internal/service"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps repository sentinels to HTTP statuses so the device can
// tell "not remote-backed" (404) and "someone else pushed first" (409) apart
// from plain failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
