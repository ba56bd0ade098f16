package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

const maxBodyBytes = 1 << 20

// ServiceHandler exposes the per-service operations over HTTP. The service
// display path is carried in the URL without its leading slash.
type ServiceHandler struct {
	Manager ports.ServiceManager
}

// NewServiceHandler creates a new ServiceHandler
func NewServiceHandler(manager ports.ServiceManager) *ServiceHandler {
	return &ServiceHandler{Manager: manager}
}

func servicePath(r *http.Request) string {
	return "/" + mux.Vars(r)["path"]
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrInvalidArguments)
	}
	return nil
}

// HandleList returns the exposed service paths in selection order.
func (h *ServiceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"services": h.Manager.ListServices(r.Context()),
	})
}

// HandleGet returns the properties of one service.
func (h *ServiceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	props, err := h.Manager.GetProperties(r.Context(), servicePath(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// SetPropertyRequest is the body of PUT .../properties/{name}.
type SetPropertyRequest struct {
	Value any `json:"value"`
}

// HandleSetProperty changes one writable property.
func (h *ServiceHandler) HandleSetProperty(w http.ResponseWriter, r *http.Request) {
	var req SetPropertyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.Manager.SetProperty(r.Context(), servicePath(r), mux.Vars(r)["name"], req.Value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAction runs connect, disconnect or remove on a service.
func (h *ServiceHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	path := servicePath(r)

	var err error
	switch mux.Vars(r)["action"] {
	case "connect":
		err = h.Manager.Connect(r.Context(), path)
	case "disconnect":
		err = h.Manager.Disconnect(r.Context(), path)
	case "remove":
		err = h.Manager.Remove(r.Context(), path)
	default:
		err = fmt.Errorf("%w: unknown action", domain.ErrInvalidArguments)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// MoveRequest is the body of the move endpoints.
type MoveRequest struct {
	Target string `json:"target"`
}

// HandleMove runs move-before or move-after.
func (h *ServiceHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	path := servicePath(r)
	var err error
	switch mux.Vars(r)["direction"] {
	case "before":
		err = h.Manager.MoveBefore(r.Context(), path, req.Target)
	case "after":
		err = h.Manager.MoveAfter(r.Context(), path, req.Target)
	default:
		err = fmt.Errorf("%w: unknown direction", domain.ErrInvalidArguments)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
