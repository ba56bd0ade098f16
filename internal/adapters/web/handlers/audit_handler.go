package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/lcalzada-xor/connd/internal/core/ports"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditHandler serves the audit trail.
type AuditHandler struct {
	Service ports.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service ports.AuditService) *AuditHandler {
	return &AuditHandler{
		Service: service,
	}
}

// HandleGetLogs returns the most recent audit entries, newest first.
func (h *AuditHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxAuditLimit)
	}

	logs, err := h.Service.GetLogs(r.Context(), limit)
	if err != nil {
		log.Printf("[WEB] Failed to fetch audit logs: %v", err)
		http.Error(w, "Failed to fetch logs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
