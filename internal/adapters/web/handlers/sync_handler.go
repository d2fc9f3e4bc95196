package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
)

// SyncHandler triggers tenant synchronization runs.
type SyncHandler struct {
	Sync  ports.SyncService
	Audit ports.AuditService
}

func NewSyncHandler(syncService ports.SyncService, auditService ports.AuditService) *SyncHandler {
	return &SyncHandler{Sync: syncService, Audit: auditService}
}

// HandleSyncTenant runs one tenant sync and returns its outcome. Outcomes
// are reported, not raised: a failed sync is still a 200 with success=false,
// except for request-level conditions like an unknown tenant or a run
// already in flight.
func (h *SyncHandler) HandleSyncTenant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid tenant id", http.StatusBadRequest)
		return
	}

	outcome := h.Sync.SyncTenant(r.Context(), uint(id))

	switch outcome.Error {
	case domain.ErrTenantNotFound.Error():
		http.Error(w, "Tenant not found", http.StatusNotFound)
		return
	case domain.ErrSyncInFlight.Error():
		writeJSON(w, http.StatusConflict, outcome)
		return
	}

	h.Audit.Log(r.Context(), domain.ActionSync, outcome.TenantName,
		fmt.Sprintf("sync finished: status=%s dropped=%d", outcome.Status, outcome.Dropped))
	writeJSON(w, http.StatusOK, outcome)
}

// HandleSyncAll runs a sync across every enabled tenant and returns the
// per-tenant outcomes.
func (h *SyncHandler) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	outcomes := h.Sync.SyncAll(r.Context())

	succeeded := 0
	for _, out := range outcomes {
		if out.Success {
			succeeded++
		}
	}

	h.Audit.Log(r.Context(), domain.ActionSync, "all",
		fmt.Sprintf("batch sync finished: %d/%d succeeded", succeeded, len(outcomes)))
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(outcomes),
		"succeeded": succeeded,
		"outcomes":  outcomes,
	})
}
