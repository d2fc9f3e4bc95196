package domain

import "time"

// RiskLevel buckets the overall posture score for reporting.
type RiskLevel string

const (
	RiskCritical RiskLevel = "Critical"
	RiskHigh     RiskLevel = "High"
	RiskMedium   RiskLevel = "Medium"
	RiskLow      RiskLevel = "Low"
)

// PostureReport is the cross-tenant security posture summary behind the
// downloadable report. Derived entirely from current snapshots.
type PostureReport struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	GeneratedBy string    `json:"generated_by"`

	RiskScore float64   `json:"risk_score"` // 0..10
	RiskLevel RiskLevel `json:"risk_level"`

	Summary     DashboardSummary `json:"summary"`
	TopPackages []PackageGroup   `json:"top_packages"`

	TotalIdentities int `json:"total_identities"`
	StaleIdentities int `json:"stale_identities"`
}
