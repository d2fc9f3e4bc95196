// Package reporting derives the downloadable posture report from the
// aggregated views.
package reporting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/services/aggregate"
)

// topPackageLimit caps the package table in the report.
const topPackageLimit = 10

// Risk weights. Exposed critical vulnerabilities dominate because they are
// reachable from the internet right now.
const (
	weightCriticalAlert    = 1.5
	weightExposedCritVuln  = 2.0
	weightCriticalVuln     = 1.0
	weightNonCompliantCrit = 0.5
	weightStaleIdentity    = 0.25
)

// PostureReportGenerator builds posture reports on demand.
type PostureReportGenerator struct {
	agg *aggregate.Aggregator
}

func NewPostureReportGenerator(agg *aggregate.Aggregator) *PostureReportGenerator {
	return &PostureReportGenerator{agg: agg}
}

// Generate assembles a posture report across all enabled tenants.
func (g *PostureReportGenerator) Generate(ctx context.Context, generatedBy string) (*domain.PostureReport, error) {
	summary, err := g.agg.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	vulns, err := g.agg.Vulnerabilities(ctx)
	if err != nil {
		return nil, err
	}
	identities, err := g.agg.Identities(ctx)
	if err != nil {
		return nil, err
	}

	top := vulns.Groups
	if len(top) > topPackageLimit {
		top = top[:topPackageLimit]
	}

	score := riskScore(summary, identities)

	return &domain.PostureReport{
		ID:              uuid.New().String(),
		GeneratedAt:     time.Now().UTC(),
		GeneratedBy:     generatedBy,
		RiskScore:       score,
		RiskLevel:       riskLevel(score),
		Summary:         *summary,
		TopPackages:     top,
		TotalIdentities: identities.TotalIdentities,
		StaleIdentities: identities.TotalStale,
	}, nil
}

// riskScore maps weighted finding counts onto a 0..10 scale. The curve
// saturates: a fleet with fifty exposed criticals is not five times worse
// than one with ten, both demand immediate action.
func riskScore(summary *domain.DashboardSummary, identities *domain.IdentityPage) float64 {
	raw := weightCriticalAlert*float64(summary.CriticalAlerts) +
		weightExposedCritVuln*float64(summary.ExposedCriticalVulns) +
		weightCriticalVuln*float64(summary.CriticalVulns) +
		weightNonCompliantCrit*float64(summary.NonCompliantCritical) +
		weightStaleIdentity*float64(identities.TotalStale)

	// 20 weighted points saturate the scale.
	score := raw / 2.0
	if score > 10 {
		score = 10
	}
	return score
}

func riskLevel(score float64) domain.RiskLevel {
	switch {
	case score >= 8.0:
		return domain.RiskCritical
	case score >= 6.0:
		return domain.RiskHigh
	case score >= 4.0:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
