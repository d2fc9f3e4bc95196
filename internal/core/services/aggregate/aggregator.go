// Package aggregate builds the cross-tenant read views. Everything here is
// derived on demand from the current snapshots and discarded after the
// response; no aggregate is ever persisted.
package aggregate

import (
	"context"
	"sort"
	"time"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
)

// recentLimit caps the highlight lists on the dashboard.
const recentLimit = 10

// Aggregator composes snapshot data into the dashboard and findings views.
type Aggregator struct {
	tenants   ports.TenantStore
	snapshots ports.SnapshotStore
	now       func() time.Time
}

// New creates an aggregator over the given stores.
func New(tenants ports.TenantStore, snapshots ports.SnapshotStore) *Aggregator {
	return &Aggregator{
		tenants:   tenants,
		snapshots: snapshots,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dashboard builds the landing-view rollup across all enabled tenants. A
// tenant that has never synced contributes zero to every total but still
// appears in the tenant list with its health state.
func (a *Aggregator) Dashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	tenants, err := a.tenants.ListTenants(ctx, true)
	if err != nil {
		return nil, err
	}

	summary := &domain.DashboardSummary{
		TotalTenants:     len(tenants),
		Tenants:          make([]domain.TenantSummary, 0, len(tenants)),
		RecentAlerts:     []domain.TenantAlert{},
		RecentVulns:      []domain.PackageGroup{},
		RecentCompliance: []domain.TenantComplianceFinding{},
	}

	var allGroups []domain.PackageGroup
	for _, t := range tenants {
		row := domain.TenantSummary{
			TenantID:   t.ID,
			TenantName: t.Name,
			Account:    t.Account,
			Status:     t.Health(),
		}
		switch row.Status {
		case domain.SyncSuccess:
			summary.HealthyTenants++
		case domain.SyncError:
			summary.ErrorTenants++
		}

		if alerts, err := a.alertsFor(ctx, t.ID); err == nil {
			for _, al := range alerts {
				switch al.Severity {
				case domain.SeverityCritical:
					row.CriticalAlerts++
				case domain.SeverityHigh:
					row.HighAlerts++
				}
				if al.Composite {
					row.CompositeAlerts++
				}
				if al.Severity >= domain.SeverityHigh {
					summary.RecentAlerts = append(summary.RecentAlerts, domain.TenantAlert{TenantName: t.Name, Alert: al})
				}
			}
		}

		if vulns, err := a.vulnsFor(ctx, t.ID); err == nil {
			for _, v := range vulns {
				switch v.Severity {
				case domain.SeverityCritical:
					row.CriticalVulns++
					if v.InternetExposed() {
						summary.ExposedCriticalVulns++
					}
				case domain.SeverityHigh:
					row.HighVulns++
				}
			}
			allGroups = append(allGroups, groupByPackage(t.Name, vulns)...)
		}

		if findings, err := a.complianceFor(ctx, t.ID); err == nil {
			for _, f := range findings {
				if f.Severity == domain.SeverityCritical {
					row.NonCompliantCritical++
					summary.RecentCompliance = append(summary.RecentCompliance, domain.TenantComplianceFinding{TenantName: t.Name, ComplianceFinding: f})
				}
			}
		}

		summary.CriticalAlerts += row.CriticalAlerts
		summary.HighAlerts += row.HighAlerts
		summary.CompositeAlerts += row.CompositeAlerts
		summary.CriticalVulns += row.CriticalVulns
		summary.HighVulns += row.HighVulns
		summary.NonCompliantCritical += row.NonCompliantCritical
		summary.Tenants = append(summary.Tenants, row)
	}

	sortAlerts(summary.RecentAlerts)
	summary.RecentAlerts = truncAlerts(summary.RecentAlerts, recentLimit)

	sortGroups(allGroups)
	if len(allGroups) > recentLimit {
		allGroups = allGroups[:recentLimit]
	}
	summary.RecentVulns = allGroups

	sort.SliceStable(summary.RecentCompliance, func(i, j int) bool {
		return summary.RecentCompliance[i].Severity > summary.RecentCompliance[j].Severity
	})
	if len(summary.RecentCompliance) > recentLimit {
		summary.RecentCompliance = summary.RecentCompliance[:recentLimit]
	}

	return summary, nil
}

// Alerts builds the alerts view, keeping only alerts at or above the
// minimum severity.
func (a *Aggregator) Alerts(ctx context.Context, minSeverity domain.Severity) (*domain.AlertPage, error) {
	snaps, err := a.snapshots.GetAllCurrent(ctx, domain.DomainAlerts)
	if err != nil {
		return nil, err
	}

	page := &domain.AlertPage{
		Tenants: []domain.AlertTenantSummary{},
		Items:   []domain.TenantAlert{},
	}
	for _, ts := range snaps {
		alerts, err := ts.Snapshot.Alerts()
		if err != nil {
			continue
		}
		count := 0
		for _, al := range alerts {
			if al.Severity < minSeverity {
				continue
			}
			count++
			page.Items = append(page.Items, domain.TenantAlert{TenantName: ts.Tenant.Name, Alert: al})
		}
		if count > 0 {
			page.Tenants = append(page.Tenants, domain.AlertTenantSummary{TenantName: ts.Tenant.Name, AlertCount: count})
		}
	}

	page.TotalAlerts = len(page.Items)
	sortAlerts(page.Items)
	sort.Slice(page.Tenants, func(i, j int) bool {
		return page.Tenants[i].AlertCount > page.Tenants[j].AlertCount
	})
	return page, nil
}

// Vulnerabilities builds the vulnerabilities view: totals, per-tenant
// rollups, package groups, and the flat occurrence list.
func (a *Aggregator) Vulnerabilities(ctx context.Context) (*domain.VulnPage, error) {
	snaps, err := a.snapshots.GetAllCurrent(ctx, domain.DomainVulnerabilities)
	if err != nil {
		return nil, err
	}

	page := &domain.VulnPage{
		Tenants: []domain.VulnTenantSummary{},
		Groups:  []domain.PackageGroup{},
		Items:   []domain.TenantVuln{},
	}
	for _, ts := range snaps {
		vulns, err := ts.Snapshot.Vulns()
		if err != nil {
			continue
		}
		row := domain.VulnTenantSummary{TenantName: ts.Tenant.Name}
		for _, v := range vulns {
			switch v.Severity {
			case domain.SeverityCritical:
				row.CriticalCount++
			case domain.SeverityHigh:
				row.HighCount++
			}
			page.Items = append(page.Items, domain.TenantVuln{TenantName: ts.Tenant.Name, VulnFinding: v})
		}
		page.TotalCritical += row.CriticalCount
		page.TotalHigh += row.HighCount
		page.Tenants = append(page.Tenants, row)
		page.Groups = append(page.Groups, groupByPackage(ts.Tenant.Name, vulns)...)
	}

	sortGroups(page.Groups)
	sort.SliceStable(page.Items, func(i, j int) bool {
		return page.Items[i].Severity > page.Items[j].Severity
	})
	sort.Slice(page.Tenants, func(i, j int) bool {
		if page.Tenants[i].CriticalCount != page.Tenants[j].CriticalCount {
			return page.Tenants[i].CriticalCount > page.Tenants[j].CriticalCount
		}
		return page.Tenants[i].TenantName < page.Tenants[j].TenantName
	})
	return page, nil
}

// Compliance builds the compliance view across tenants.
func (a *Aggregator) Compliance(ctx context.Context) (*domain.CompliancePage, error) {
	snaps, err := a.snapshots.GetAllCurrent(ctx, domain.DomainCompliance)
	if err != nil {
		return nil, err
	}

	page := &domain.CompliancePage{
		Tenants: []domain.ComplianceTenantSummary{},
		Items:   []domain.TenantComplianceFinding{},
	}
	for _, ts := range snaps {
		findings, err := ts.Snapshot.Compliance()
		if err != nil {
			continue
		}
		row := domain.ComplianceTenantSummary{TenantName: ts.Tenant.Name}
		datasets := map[string]bool{}
		for _, f := range findings {
			if f.Severity == domain.SeverityCritical {
				row.CriticalCount++
			}
			if f.Dataset != "" {
				datasets[f.Dataset] = true
			}
			page.Items = append(page.Items, domain.TenantComplianceFinding{TenantName: ts.Tenant.Name, ComplianceFinding: f})
		}
		row.Datasets = sortedKeys(datasets)
		page.TotalCritical += row.CriticalCount
		page.Tenants = append(page.Tenants, row)
	}

	sort.SliceStable(page.Items, func(i, j int) bool {
		return page.Items[i].Severity > page.Items[j].Severity
	})
	sort.Slice(page.Tenants, func(i, j int) bool {
		if page.Tenants[i].CriticalCount != page.Tenants[j].CriticalCount {
			return page.Tenants[i].CriticalCount > page.Tenants[j].CriticalCount
		}
		return page.Tenants[i].TenantName < page.Tenants[j].TenantName
	})
	return page, nil
}

// Identities builds the identities view with per-identity derived risk
// fields. Staleness is evaluated against the aggregator clock, not the
// snapshot time.
func (a *Aggregator) Identities(ctx context.Context) (*domain.IdentityPage, error) {
	snaps, err := a.snapshots.GetAllCurrent(ctx, domain.DomainIdentities)
	if err != nil {
		return nil, err
	}
	now := a.now()

	page := &domain.IdentityPage{
		Tenants: []domain.IdentityTenantSummary{},
		Items:   []domain.IdentityRisk{},
	}
	for _, ts := range snaps {
		ids, err := ts.Snapshot.Identities()
		if err != nil {
			continue
		}
		row := domain.IdentityTenantSummary{TenantName: ts.Tenant.Name, IdentityCount: len(ids)}
		for _, id := range ids {
			risk := domain.IdentityRisk{
				TenantName:      ts.Tenant.Name,
				IdentityFinding: id,
				UnusedPct:       id.UnusedEntitlementPct(),
				Stale:           id.Stale(now),
				NeverUsed:       id.NeverUsed(),
			}
			if days := id.DaysUnused(now); days >= 0 {
				risk.DaysUnused = &days
			}
			switch id.Severity {
			case domain.SeverityCritical:
				row.CriticalCount++
			case domain.SeverityHigh:
				row.HighCount++
			}
			if risk.Stale {
				page.TotalStale++
			}
			page.Items = append(page.Items, risk)
		}
		page.TotalIdentities += row.IdentityCount
		page.TotalCritical += row.CriticalCount
		page.TotalHigh += row.HighCount
		page.Tenants = append(page.Tenants, row)
	}

	sort.SliceStable(page.Items, func(i, j int) bool {
		if page.Items[i].Severity != page.Items[j].Severity {
			return page.Items[i].Severity > page.Items[j].Severity
		}
		return page.Items[i].RiskScore > page.Items[j].RiskScore
	})
	sort.Slice(page.Tenants, func(i, j int) bool {
		return page.Tenants[i].TenantName < page.Tenants[j].TenantName
	})
	return page, nil
}

// --- snapshot accessors ---

func (a *Aggregator) alertsFor(ctx context.Context, tenantID uint) ([]domain.Alert, error) {
	snap, err := a.snapshots.GetSnapshot(ctx, tenantID, domain.DomainAlerts)
	if err != nil || snap == nil {
		return nil, err
	}
	return snap.Alerts()
}

func (a *Aggregator) vulnsFor(ctx context.Context, tenantID uint) ([]domain.VulnFinding, error) {
	snap, err := a.snapshots.GetSnapshot(ctx, tenantID, domain.DomainVulnerabilities)
	if err != nil || snap == nil {
		return nil, err
	}
	return snap.Vulns()
}

func (a *Aggregator) complianceFor(ctx context.Context, tenantID uint) ([]domain.ComplianceFinding, error) {
	snap, err := a.snapshots.GetSnapshot(ctx, tenantID, domain.DomainCompliance)
	if err != nil || snap == nil {
		return nil, err
	}
	return snap.Compliance()
}

// --- grouping and ordering ---

// groupByPackage collapses one tenant's vulnerability occurrences into
// per-package groups. Occurrences without a package name group under their
// CVE so they are never silently lost.
func groupByPackage(tenantName string, vulns []domain.VulnFinding) []domain.PackageGroup {
	type acc struct {
		severity domain.Severity
		hosts    map[string]bool
		cves     map[string]bool
		fixes    map[string]bool
		exposed  bool
	}
	byPkg := map[string]*acc{}

	for _, v := range vulns {
		pkg := v.Package
		if pkg == "" {
			pkg = v.CVE
		}
		g, ok := byPkg[pkg]
		if !ok {
			g = &acc{hosts: map[string]bool{}, cves: map[string]bool{}, fixes: map[string]bool{}}
			byPkg[pkg] = g
		}
		if v.Severity > g.severity {
			g.severity = v.Severity
		}
		if v.Hostname != "" {
			g.hosts[v.Hostname] = true
		}
		if v.CVE != "" {
			g.cves[v.CVE] = true
		}
		if v.FixVersion != "" {
			g.fixes[v.FixVersion] = true
		}
		if v.InternetExposed() {
			g.exposed = true
		}
	}

	groups := make([]domain.PackageGroup, 0, len(byPkg))
	for pkg, g := range byPkg {
		groups = append(groups, domain.PackageGroup{
			TenantName:      tenantName,
			Package:         pkg,
			Severity:        g.severity,
			AffectedHosts:   len(g.hosts),
			CVEs:            sortedKeys(g.cves),
			FixVersions:     sortedKeys(g.fixes),
			InternetExposed: g.exposed,
		})
	}
	return groups
}

// sortGroups orders package groups by severity, then affected host count,
// then package name. Deterministic output for identical input.
func sortGroups(groups []domain.PackageGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Severity != groups[j].Severity {
			return groups[i].Severity > groups[j].Severity
		}
		if groups[i].AffectedHosts != groups[j].AffectedHosts {
			return groups[i].AffectedHosts > groups[j].AffectedHosts
		}
		return groups[i].Package < groups[j].Package
	})
}

func sortAlerts(alerts []domain.TenantAlert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity > alerts[j].Severity
		}
		return alerts[i].AlertID > alerts[j].AlertID
	})
}

func truncAlerts(alerts []domain.TenantAlert, n int) []domain.TenantAlert {
	if len(alerts) > n {
		return alerts[:n]
	}
	return alerts
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
