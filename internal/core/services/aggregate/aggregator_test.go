package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStores struct {
	tenants []domain.Tenant
	snaps   map[uint]map[domain.FindingDomain]*domain.Snapshot
}

func newMemStores(tenants ...domain.Tenant) *memStores {
	return &memStores{
		tenants: tenants,
		snaps:   make(map[uint]map[domain.FindingDomain]*domain.Snapshot),
	}
}

func (m *memStores) put(t *testing.T, snap *domain.Snapshot, err error) {
	t.Helper()
	require.NoError(t, err)
	if m.snaps[snap.TenantID] == nil {
		m.snaps[snap.TenantID] = make(map[domain.FindingDomain]*domain.Snapshot)
	}
	m.snaps[snap.TenantID][snap.Domain] = snap
}

// TenantStore

func (m *memStores) CreateTenant(ctx context.Context, t *domain.Tenant) error { return nil }
func (m *memStores) GetTenant(ctx context.Context, id uint) (*domain.Tenant, error) {
	for i := range m.tenants {
		if m.tenants[i].ID == id {
			return &m.tenants[i], nil
		}
	}
	return nil, domain.ErrTenantNotFound
}
func (m *memStores) ListTenants(ctx context.Context, enabledOnly bool) ([]domain.Tenant, error) {
	var out []domain.Tenant
	for _, t := range m.tenants {
		if enabledOnly && !t.Enabled {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
func (m *memStores) UpdateTenant(ctx context.Context, t *domain.Tenant) error { return nil }
func (m *memStores) DeleteTenant(ctx context.Context, id uint) error          { return nil }
func (m *memStores) UpdateSyncState(ctx context.Context, id uint, status domain.SyncStatus, errMsg string, at time.Time) error {
	return nil
}

// SnapshotStore

func (m *memStores) PutSnapshot(ctx context.Context, snap *domain.Snapshot) error { return nil }
func (m *memStores) GetSnapshot(ctx context.Context, tenantID uint, dom domain.FindingDomain) (*domain.Snapshot, error) {
	return m.snaps[tenantID][dom], nil
}
func (m *memStores) GetAllCurrent(ctx context.Context, dom domain.FindingDomain) ([]domain.TenantSnapshot, error) {
	var out []domain.TenantSnapshot
	for _, t := range m.tenants {
		if snap := m.snaps[t.ID][dom]; snap != nil {
			out = append(out, domain.TenantSnapshot{Tenant: t, Snapshot: *snap})
		}
	}
	return out, nil
}
func (m *memStores) DeleteTenantSnapshots(ctx context.Context, tenantID uint) error { return nil }

func enabledTenant(id uint, name string, status domain.SyncStatus) domain.Tenant {
	t := domain.Tenant{ID: id, Name: name, Account: name, Enabled: true, LastStatus: status}
	if status != "" {
		now := time.Now().UTC()
		t.LastSyncAt = &now
	}
	return t
}

func sevOfVuln(v domain.VulnFinding) domain.Severity          { return v.Severity }
func sevOfAlert(a domain.Alert) domain.Severity               { return a.Severity }
func sevOfComp(c domain.ComplianceFinding) domain.Severity    { return c.Severity }
func sevOfIdentity(i domain.IdentityFinding) domain.Severity  { return i.Severity }

func TestDashboardRollup(t *testing.T) {
	stores := newMemStores(
		enabledTenant(1, "acme", domain.SyncSuccess),
		enabledTenant(2, "globex", domain.SyncError),
		enabledTenant(3, "fresh", ""), // never synced
	)
	now := time.Now().UTC()

	snap, err := domain.NewSnapshot(1, domain.DomainAlerts, []domain.Alert{
		{AlertID: 1, Severity: domain.SeverityCritical, Composite: true},
		{AlertID: 2, Severity: domain.SeverityHigh},
		{AlertID: 3, Severity: domain.SeverityLow},
	}, sevOfAlert, 0, now)
	stores.put(t, snap, err)

	snap, err = domain.NewSnapshot(1, domain.DomainVulnerabilities, []domain.VulnFinding{
		{CVE: "CVE-1", Severity: domain.SeverityCritical, Hostname: "h1", ExternalIP: "1.2.3.4"},
		{CVE: "CVE-2", Severity: domain.SeverityHigh, Hostname: "h1"},
	}, sevOfVuln, 0, now)
	stores.put(t, snap, err)

	snap, err = domain.NewSnapshot(1, domain.DomainCompliance, []domain.ComplianceFinding{
		{PolicyID: "p1", Severity: domain.SeverityCritical, Title: "bad"},
		{PolicyID: "p2", Severity: domain.SeverityMedium, Title: "meh"},
	}, sevOfComp, 0, now)
	stores.put(t, snap, err)

	agg := New(stores, stores)
	sum, err := agg.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalTenants)
	assert.Equal(t, 1, sum.HealthyTenants)
	assert.Equal(t, 1, sum.ErrorTenants)
	assert.Equal(t, 1, sum.CriticalAlerts)
	assert.Equal(t, 1, sum.HighAlerts)
	assert.Equal(t, 1, sum.CompositeAlerts)
	assert.Equal(t, 1, sum.CriticalVulns)
	assert.Equal(t, 1, sum.ExposedCriticalVulns)
	assert.Equal(t, 1, sum.NonCompliantCritical)

	require.Len(t, sum.Tenants, 3)
	byName := map[string]domain.TenantSummary{}
	for _, row := range sum.Tenants {
		byName[row.TenantName] = row
	}
	assert.Equal(t, domain.SyncPending, byName["fresh"].Status, "never-synced tenant reads pending")
	assert.Zero(t, byName["fresh"].CriticalAlerts, "snapshot-less tenant contributes zero")
	assert.Equal(t, domain.SyncError, byName["globex"].Status)

	require.NotEmpty(t, sum.RecentAlerts)
	assert.Equal(t, domain.SeverityCritical, sum.RecentAlerts[0].Severity)
}

func TestPackageGrouping(t *testing.T) {
	vulns := []domain.VulnFinding{
		{CVE: "CVE-1", Severity: domain.SeverityHigh, Package: "openssl", Hostname: "h1", FixVersion: "3.0.1"},
		{CVE: "CVE-1", Severity: domain.SeverityHigh, Package: "openssl", Hostname: "h2"},
		{CVE: "CVE-2", Severity: domain.SeverityCritical, Package: "openssl", Hostname: "h1", ExternalIP: "9.9.9.9"},
		{CVE: "CVE-3", Severity: domain.SeverityMedium, Package: "zlib", Hostname: "h3"},
		{CVE: "CVE-4", Severity: domain.SeverityMedium, Hostname: "h4"}, // no package
	}

	groups := groupByPackage("acme", vulns)
	require.Len(t, groups, 3)
	sortGroups(groups)

	ssl := groups[0]
	assert.Equal(t, "openssl", ssl.Package)
	assert.Equal(t, domain.SeverityCritical, ssl.Severity, "group carries the worst member severity")
	assert.Equal(t, 2, ssl.AffectedHosts, "hosts are deduplicated")
	assert.Equal(t, []string{"CVE-1", "CVE-2"}, ssl.CVEs)
	assert.Equal(t, []string{"3.0.1"}, ssl.FixVersions)
	assert.True(t, ssl.InternetExposed, "one exposed member marks the group")

	// The package-less occurrence groups under its CVE.
	names := []string{groups[1].Package, groups[2].Package}
	assert.Contains(t, names, "CVE-4")
	assert.Contains(t, names, "zlib")
}

func TestGroupOrdering(t *testing.T) {
	groups := []domain.PackageGroup{
		{Package: "b", Severity: domain.SeverityHigh, AffectedHosts: 1},
		{Package: "a", Severity: domain.SeverityHigh, AffectedHosts: 1},
		{Package: "c", Severity: domain.SeverityHigh, AffectedHosts: 5},
		{Package: "d", Severity: domain.SeverityCritical, AffectedHosts: 1},
	}
	sortGroups(groups)

	got := []string{groups[0].Package, groups[1].Package, groups[2].Package, groups[3].Package}
	assert.Equal(t, []string{"d", "c", "a", "b"}, got,
		"severity desc, then host count desc, then name asc")
}

func TestVulnerabilitiesPage(t *testing.T) {
	stores := newMemStores(
		enabledTenant(1, "acme", domain.SyncSuccess),
		enabledTenant(2, "globex", domain.SyncSuccess),
	)
	now := time.Now().UTC()

	snap, err := domain.NewSnapshot(1, domain.DomainVulnerabilities, []domain.VulnFinding{
		{CVE: "CVE-1", Severity: domain.SeverityCritical, Package: "openssl", Hostname: "h1"},
		{CVE: "CVE-2", Severity: domain.SeverityHigh, Package: "zlib", Hostname: "h2"},
	}, sevOfVuln, 0, now)
	stores.put(t, snap, err)

	snap, err = domain.NewSnapshot(2, domain.DomainVulnerabilities, []domain.VulnFinding{
		{CVE: "CVE-1", Severity: domain.SeverityCritical, Package: "openssl", Hostname: "h9"},
	}, sevOfVuln, 0, now)
	stores.put(t, snap, err)

	agg := New(stores, stores)
	page, err := agg.Vulnerabilities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, page.TotalCritical)
	assert.Equal(t, 1, page.TotalHigh)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, domain.SeverityCritical, page.Items[0].Severity)

	// Groups stay per tenant: openssl appears once per owning tenant.
	opensslGroups := 0
	for _, g := range page.Groups {
		if g.Package == "openssl" {
			opensslGroups++
		}
	}
	assert.Equal(t, 2, opensslGroups)
}

func TestAlertsPageMinSeverity(t *testing.T) {
	stores := newMemStores(enabledTenant(1, "acme", domain.SyncSuccess))
	snap, err := domain.NewSnapshot(1, domain.DomainAlerts, []domain.Alert{
		{AlertID: 1, Severity: domain.SeverityCritical},
		{AlertID: 2, Severity: domain.SeverityHigh},
		{AlertID: 3, Severity: domain.SeverityMedium},
		{AlertID: 4, Severity: domain.SeverityInfo},
	}, sevOfAlert, 0, time.Now().UTC())
	stores.put(t, snap, err)

	agg := New(stores, stores)

	page, err := agg.Alerts(context.Background(), domain.SeverityHigh)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalAlerts)
	for _, item := range page.Items {
		assert.GreaterOrEqual(t, int(item.Severity), int(domain.SeverityHigh))
	}

	page, err = agg.Alerts(context.Background(), domain.SeverityInfo)
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalAlerts)
}

func TestCompliancePage(t *testing.T) {
	stores := newMemStores(enabledTenant(1, "acme", domain.SyncSuccess))
	snap, err := domain.NewSnapshot(1, domain.DomainCompliance, []domain.ComplianceFinding{
		{PolicyID: "p1", Severity: domain.SeverityCritical, Dataset: "AwsCompliance"},
		{PolicyID: "p2", Severity: domain.SeverityCritical, Dataset: "GcpCompliance"},
		{PolicyID: "p3", Severity: domain.SeverityLow, Dataset: "AwsCompliance"},
	}, sevOfComp, 0, time.Now().UTC())
	stores.put(t, snap, err)

	agg := New(stores, stores)
	page, err := agg.Compliance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, page.TotalCritical)
	require.Len(t, page.Tenants, 1)
	assert.Equal(t, []string{"AwsCompliance", "GcpCompliance"}, page.Tenants[0].Datasets)
	assert.Equal(t, domain.SeverityCritical, page.Items[0].Severity)
}

func TestIdentitiesPageDerivations(t *testing.T) {
	stores := newMemStores(enabledTenant(1, "acme", domain.SyncSuccess))
	now := time.Now().UTC()
	recent := now.Add(-10 * 24 * time.Hour)
	old := now.Add(-200 * 24 * time.Hour)

	snap, err := domain.NewSnapshot(1, domain.DomainIdentities, []domain.IdentityFinding{
		{
			PrincipalID: "active", Severity: domain.SeverityCritical, RiskScore: 90,
			LastUsed: &recent, EntitlementsTotal: 10, EntitlementsUnused: 5,
		},
		{
			PrincipalID: "stale", Severity: domain.SeverityHigh, RiskScore: 60,
			LastUsed: &old, EntitlementsTotal: 4, EntitlementsUnused: 4,
		},
		{
			PrincipalID: "ghost", Severity: domain.SeverityMedium, RiskScore: 30,
		},
		{
			// Keys but no usage record: indefinitely stale, not never-used.
			PrincipalID: "keyed", Severity: domain.SeverityLow,
			AccessKeys: []domain.AccessKey{{KeyID: "AKIA1", Active: true}},
		},
	}, sevOfIdentity, 0, now)
	stores.put(t, snap, err)

	agg := New(stores, stores)
	page, err := agg.Identities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, page.TotalIdentities)
	assert.Equal(t, 1, page.TotalCritical)
	assert.Equal(t, 1, page.TotalHigh)
	assert.Equal(t, 2, page.TotalStale)

	byID := map[string]domain.IdentityRisk{}
	for _, item := range page.Items {
		byID[item.PrincipalID] = item
	}

	active := byID["active"]
	assert.False(t, active.Stale)
	assert.False(t, active.NeverUsed)
	require.NotNil(t, active.DaysUnused)
	assert.Equal(t, 10, *active.DaysUnused)
	assert.Equal(t, 50.0, active.UnusedPct)

	stale := byID["stale"]
	assert.True(t, stale.Stale)
	assert.Equal(t, 100.0, stale.UnusedPct)

	ghost := byID["ghost"]
	assert.True(t, ghost.NeverUsed)
	assert.False(t, ghost.Stale, "never-used is distinct from stale")
	assert.Nil(t, ghost.DaysUnused)

	keyed := byID["keyed"]
	assert.False(t, keyed.NeverUsed)
	assert.True(t, keyed.Stale)

	// Worst severity first.
	assert.Equal(t, "active", page.Items[0].PrincipalID)
}

func TestPagesEmptyWithoutSnapshots(t *testing.T) {
	stores := newMemStores(enabledTenant(1, "acme", domain.SyncSuccess))
	agg := New(stores, stores)

	vulns, err := agg.Vulnerabilities(context.Background())
	require.NoError(t, err)
	assert.Zero(t, vulns.TotalCritical)
	assert.Empty(t, vulns.Items)

	ids, err := agg.Identities(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ids.TotalIdentities)

	sum, err := agg.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalTenants)
	assert.Zero(t, sum.CriticalAlerts)
}
