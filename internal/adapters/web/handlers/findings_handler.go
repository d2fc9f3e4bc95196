package handlers

import (
	"net/http"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/services/aggregate"
)

// FindingsHandler serves the aggregated read views. Every response is
// derived on demand from the current snapshots.
type FindingsHandler struct {
	Agg *aggregate.Aggregator
}

func NewFindingsHandler(agg *aggregate.Aggregator) *FindingsHandler {
	return &FindingsHandler{Agg: agg}
}

// HandleDashboard returns the cross-tenant landing view.
func (h *FindingsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Agg.Dashboard(r.Context())
	if err != nil {
		http.Error(w, "Failed to build dashboard", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleAlerts returns the alerts view. The min_severity query parameter
// filters out lower severities; it defaults to high.
func (h *FindingsHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	minSeverity := domain.SeverityHigh
	if s := r.URL.Query().Get("min_severity"); s != "" {
		parsed, ok := domain.ParseSeverity(s)
		if !ok {
			http.Error(w, "Unknown severity: "+s, http.StatusBadRequest)
			return
		}
		minSeverity = parsed
	}

	page, err := h.Agg.Alerts(r.Context(), minSeverity)
	if err != nil {
		http.Error(w, "Failed to build alerts view", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleVulnerabilities returns the vulnerabilities view with package
// groups.
func (h *FindingsHandler) HandleVulnerabilities(w http.ResponseWriter, r *http.Request) {
	page, err := h.Agg.Vulnerabilities(r.Context())
	if err != nil {
		http.Error(w, "Failed to build vulnerabilities view", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleCompliance returns the compliance view.
func (h *FindingsHandler) HandleCompliance(w http.ResponseWriter, r *http.Request) {
	page, err := h.Agg.Compliance(r.Context())
	if err != nil {
		http.Error(w, "Failed to build compliance view", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleIdentities returns the identities view with derived risk fields.
func (h *FindingsHandler) HandleIdentities(w http.ResponseWriter, r *http.Request) {
	page, err := h.Agg.Identities(r.Context())
	if err != nil {
		http.Error(w, "Failed to build identities view", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
