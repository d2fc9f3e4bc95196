package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/seclens/seclens/internal/adapters/reporting"
	"github.com/seclens/seclens/internal/adapters/web/middleware"
	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
	reportingService "github.com/seclens/seclens/internal/core/services/reporting"
)

// ReportHandler generates and serves the downloadable posture report.
type ReportHandler struct {
	Generator *reportingService.PostureReportGenerator
	Exporter  *reporting.PDFExporter
	Audit     ports.AuditService
}

func NewReportHandler(generator *reportingService.PostureReportGenerator, exporter *reporting.PDFExporter, auditService ports.AuditService) *ReportHandler {
	return &ReportHandler{Generator: generator, Exporter: exporter, Audit: auditService}
}

// HandleDownload builds the posture report and streams it as a PDF.
func (h *ReportHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	generatedBy := "seclens"
	if user := middleware.UserFromContext(r); user != nil {
		generatedBy = user.Username
	}

	report, err := h.Generator.Generate(r.Context(), generatedBy)
	if err != nil {
		http.Error(w, "Failed to generate report", http.StatusInternalServerError)
		return
	}

	pdfBytes, err := h.Exporter.ExportPostureReport(report)
	if err != nil {
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
		return
	}

	h.Audit.Log(r.Context(), domain.ActionInfo, "posture-report",
		fmt.Sprintf("report %s downloaded", report.ID))

	filename := fmt.Sprintf("posture-report-%s.pdf", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(pdfBytes)
}

// HandlePreview returns the report data as JSON without rendering a PDF.
func (h *ReportHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	generatedBy := "seclens"
	if user := middleware.UserFromContext(r); user != nil {
		generatedBy = user.Username
	}

	report, err := h.Generator.Generate(r.Context(), generatedBy)
	if err != nil {
		http.Error(w, "Failed to generate report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
