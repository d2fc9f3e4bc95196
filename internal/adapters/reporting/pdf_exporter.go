package reporting

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/seclens/seclens/internal/core/domain"
)

// PDFExporter renders posture reports to PDF.
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportPostureReport generates a PDF from a posture report.
func (e *PDFExporter) ExportPostureReport(report *domain.PostureReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addRiskScore(pdf, report)
	e.addStatistics(pdf, report)
	e.addTenantTable(pdf, report)
	e.addTopPackages(pdf, report)
	e.addFooter(pdf, report)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report *domain.PostureReport) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 15, "Security Posture Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	dateStr := fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 6, dateStr, "", 1, "L", false, 0, "")
	tenantsStr := fmt.Sprintf("Tenants: %d (%d healthy, %d failing)",
		report.Summary.TotalTenants, report.Summary.HealthyTenants, report.Summary.ErrorTenants)
	pdf.CellFormat(0, 6, tenantsStr, "", 1, "L", false, 0, "")

	pdf.Ln(8)
}

func (e *PDFExporter) addRiskScore(pdf *gofpdf.Fpdf, report *domain.PostureReport) {
	r, g, b := e.getRiskColor(report.RiskScore)

	pdf.SetFillColor(r, g, b)
	pdf.Rect(20, pdf.GetY(), 170, 30, "F")

	y := pdf.GetY()

	pdf.SetFont("Arial", "B", 36)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(25, y+5)
	scoreStr := fmt.Sprintf("%.1f/10", report.RiskScore)
	pdf.CellFormat(80, 20, scoreStr, "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.SetXY(110, y+8)
	levelStr := fmt.Sprintf("%s Risk", report.RiskLevel)
	pdf.CellFormat(80, 14, levelStr, "", 0, "L", false, 0, "")

	pdf.SetY(y + 35)
	pdf.Ln(5)
}

func (e *PDFExporter) getRiskColor(score float64) (r, g, b int) {
	switch {
	case score >= 8.0:
		return 220, 53, 69 // Red (Critical)
	case score >= 6.0:
		return 255, 149, 0 // Orange (High)
	case score >= 4.0:
		return 255, 204, 0 // Yellow (Medium)
	default:
		return 52, 199, 89 // Green (Low)
	}
}

func (e *PDFExporter) addStatistics(pdf *gofpdf.Fpdf, report *domain.PostureReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Security Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	s := report.Summary
	stats := []struct {
		label string
		value string
		color []int
	}{
		{"Critical Alerts", fmt.Sprintf("%d", s.CriticalAlerts), []int{220, 53, 69}},
		{"High Alerts", fmt.Sprintf("%d", s.HighAlerts), []int{255, 149, 0}},
		{"Composite Alerts", fmt.Sprintf("%d", s.CompositeAlerts), []int{0, 102, 204}},
		{"Critical Vulnerabilities", fmt.Sprintf("%d", s.CriticalVulns), []int{220, 53, 69}},
		{"Internet Exposed Critical", fmt.Sprintf("%d", s.ExposedCriticalVulns), []int{220, 53, 69}},
		{"High Vulnerabilities", fmt.Sprintf("%d", s.HighVulns), []int{255, 149, 0}},
		{"Critical Non-Compliance", fmt.Sprintf("%d", s.NonCompliantCritical), []int{255, 149, 0}},
		{"Identities", fmt.Sprintf("%d", report.TotalIdentities), []int{0, 102, 204}},
		{"Stale Identities", fmt.Sprintf("%d", report.StaleIdentities), []int{255, 204, 0}},
	}

	colWidth := 85.0
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}

		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, stat.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(stat.color[0], stat.color[1], stat.color[2])
		pdf.CellFormat(colWidth-50, 7, stat.value, "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}

	pdf.Ln(12)
}

func (e *PDFExporter) addTenantTable(pdf *gofpdf.Fpdf, report *domain.PostureReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Tenant Breakdown", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(report.Summary.Tenants) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No tenants configured", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(45, 8, "Tenant", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Status", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Crit. Alerts", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Crit. Vulns", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, "Non-Compliant", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, t := range report.Summary.Tenants {
		if pdf.GetY() > 260 {
			pdf.AddPage()
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(45, 7, t.TenantName, "1", 0, "L", false, 0, "")

		sr, sg, sb := e.getStatusColor(t.Status)
		pdf.SetTextColor(sr, sg, sb)
		pdf.CellFormat(25, 7, string(t.Status), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", t.CriticalAlerts), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", t.CriticalVulns), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%d", t.NonCompliantCritical), "1", 1, "C", false, 0, "")
	}

	pdf.Ln(8)
}

func (e *PDFExporter) getStatusColor(status domain.SyncStatus) (r, g, b int) {
	switch status {
	case domain.SyncSuccess:
		return 52, 199, 89 // Green
	case domain.SyncError:
		return 220, 53, 69 // Red
	default:
		return 150, 150, 150 // Gray
	}
}

func (e *PDFExporter) addTopPackages(pdf *gofpdf.Fpdf, report *domain.PostureReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Top Vulnerable Packages", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(report.TopPackages) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No vulnerable packages identified", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(45, 8, "Package", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Tenant", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "Hosts", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 8, "CVEs", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Exposed", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, group := range report.TopPackages {
		if pdf.GetY() > 260 {
			pdf.AddPage()
		}

		name := group.Package
		if len(name) > 28 {
			name = name[:25] + "..."
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(45, 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, group.TenantName, "1", 0, "L", false, 0, "")

		sr, sg, sb := e.getSeverityColor(group.Severity)
		pdf.SetTextColor(sr, sg, sb)
		pdf.CellFormat(25, 7, group.Severity.String(), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", group.AffectedHosts), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", len(group.CVEs)), "1", 0, "C", false, 0, "")

		exposed := "no"
		if group.InternetExposed {
			exposed = "YES"
			pdf.SetTextColor(220, 53, 69)
		}
		pdf.CellFormat(25, 7, exposed, "1", 1, "C", false, 0, "")
	}

	pdf.Ln(8)
}

func (e *PDFExporter) getSeverityColor(severity domain.Severity) (r, g, b int) {
	switch severity {
	case domain.SeverityCritical:
		return 220, 53, 69 // Red
	case domain.SeverityHigh:
		return 255, 149, 0 // Orange
	case domain.SeverityMedium:
		return 255, 204, 0 // Yellow
	default:
		return 52, 199, 89 // Green
	}
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, report *domain.PostureReport) {
	pdf.SetY(-20)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	footerText := fmt.Sprintf("Generated by %s | Report ID: %s",
		report.GeneratedBy, report.ID[:8])
	pdf.CellFormat(0, 5, footerText, "", 1, "C", false, 0, "")
}
