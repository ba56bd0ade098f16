package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/telemetry"
)

var kindStatus = map[string]int{
	"InvalidArguments": http.StatusBadRequest,
	"PermissionDenied": http.StatusForbidden,
	"NotSupported":     http.StatusConflict,
	"NotImplemented":   http.StatusNotImplemented,
	"NoCarrier":        http.StatusServiceUnavailable,
	"NotFound":         http.StatusNotFound,
	"AlreadySet":       http.StatusConflict,
	"InProgress":       http.StatusAccepted,
	"Failed":           http.StatusInternalServerError,
}

// ErrorBody is the JSON body of a failed request.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WEB] encode response: %v", err)
	}
}

// writeError maps a domain error onto an HTTP status and counts it.
func writeError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)
	telemetry.BoundaryErrors.WithLabelValues(kind).Inc()
	writeJSON(w, kindStatus[kind], ErrorBody{Error: kind, Message: err.Error()})
}
