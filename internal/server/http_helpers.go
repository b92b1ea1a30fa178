package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Sundramrai3691/ReXcan/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeAppError maps domain errors onto HTTP statuses. Unknown errors
// become an opaque 500; the detail stays in the logs.
func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrRateLimited), errors.Is(err, common.ErrQueueFull):
		status = http.StatusTooManyRequests
	}

	body := errorBody{Error: "internal error"}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
		body.Code = appErr.Code
	} else if status != http.StatusInternalServerError {
		body.Error = err.Error()
	}
	writeJSON(w, status, body)
}
