package handlers

import (
	"net/http"
	"strconv"

	"github.com/seclens/seclens/internal/core/ports"
)

const defaultAuditLimit = 100

// AuditHandler serves the audit trail.
type AuditHandler struct {
	Audit ports.AuditService
}

func NewAuditHandler(auditService ports.AuditService) *AuditHandler {
	return &AuditHandler{Audit: auditService}
}

// HandleGetLogs returns the most recent audit entries.
func (h *AuditHandler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	logs, err := h.Audit.GetLogs(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to list audit logs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
