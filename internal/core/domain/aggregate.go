package domain

// Aggregate views are derived on demand from the current snapshots of all
// enabled tenants and discarded after the response. A tenant with no
// snapshot contributes zero to every total.

// TenantSummary is the per-tenant row on the dashboard.
type TenantSummary struct {
	TenantID             uint       `json:"tenant_id"`
	TenantName           string     `json:"tenant_name"`
	Account              string     `json:"account"`
	Status               SyncStatus `json:"status"`
	CriticalAlerts       int        `json:"critical_alerts"`
	HighAlerts           int        `json:"high_alerts"`
	CompositeAlerts      int        `json:"composite_alerts"`
	CriticalVulns        int        `json:"critical_vulns"`
	HighVulns            int        `json:"high_vulns"`
	NonCompliantCritical int        `json:"non_compliant_critical"`
}

// DashboardSummary is the cross-tenant rollup behind the landing view.
type DashboardSummary struct {
	TotalTenants         int             `json:"total_tenants"`
	HealthyTenants       int             `json:"healthy_tenants"`
	ErrorTenants         int             `json:"error_tenants"`
	CriticalAlerts       int             `json:"total_critical_alerts"`
	HighAlerts           int             `json:"total_high_alerts"`
	CompositeAlerts      int             `json:"total_composite_alerts"`
	CriticalVulns        int             `json:"total_critical_vulns"`
	ExposedCriticalVulns int             `json:"total_exposed_critical_vulns"`
	HighVulns            int             `json:"total_high_vulns"`
	NonCompliantCritical int             `json:"total_non_compliant_critical"`
	Tenants              []TenantSummary `json:"tenants"`
	RecentAlerts         []TenantAlert   `json:"recent_alerts"`
	RecentVulns          []PackageGroup  `json:"recent_vulns"`
	RecentCompliance     []TenantComplianceFinding `json:"recent_compliance"`
}

// TenantAlert is an alert annotated with its owning tenant.
type TenantAlert struct {
	TenantName string `json:"tenant_name"`
	Alert
}

// TenantComplianceFinding is a compliance finding annotated with its tenant.
type TenantComplianceFinding struct {
	TenantName string `json:"tenant_name"`
	ComplianceFinding
}

// PackageGroup aggregates vulnerability findings by package name. Severity
// is the worst severity among members; hosts, CVEs and fix versions are
// deduplicated.
type PackageGroup struct {
	TenantName      string   `json:"tenant_name"`
	Package         string   `json:"package"`
	Severity        Severity `json:"severity"`
	AffectedHosts   int      `json:"affected_hosts"`
	CVEs            []string `json:"cves"`
	FixVersions     []string `json:"fix_versions,omitempty"`
	InternetExposed bool     `json:"internet_exposed"`
}

/// VulnPage is the vulnerabilities view: totals, per-tenant rollups, package
// groups, and the flat occurrence list.
type VulnPage struct {
	TotalCritical int                 `json:"total_critical"`
	TotalHigh     int                 `json:"total_high"`
	Tenants       []VulnTenantSummary `json:"tenants"`
	Groups        []PackageGroup      `json:"groups"`
	Items         []TenantVuln        `json:"items"`
}

// VulnTenantSummary is the per-tenant rollup on the vulnerabilities view.
type VulnTenantSummary struct {
	TenantName    string `json:"tenant_name"`
	CriticalCount int    `json:"critical_count"`
	HighCount     int    `json:"high_count"`
}

// TenantVuln is a vulnerability occurrence annotated with its tenant.
type TenantVuln struct {
	TenantName string `json:"tenant_name"`
	VulnFinding
}

// CompliancePage is the compliance view across tenants.
type CompliancePage struct {
	TotalCritical int                       `json:"total_critical"`
	Tenants       []ComplianceTenantSummary `json:"tenants"`
	Items         []TenantComplianceFinding `json:"items"`
}

// ComplianceTenantSummary is the per-tenant rollup on the compliance view.
type ComplianceTenantSummary struct {
	TenantName    string   `json:"tenant_name"`
	CriticalCount int      `json:"critical_count"`
	Datasets      []string `json:"datasets"`
}

// AlertPage is the alerts view filtered to a minimum severity.
type AlertPage struct {
	TotalAlerts int                  `json:"total_alerts"`
	Tenants     []AlertTenantSummary `json:"tenants"`
	Items       []TenantAlert        `json:"items"`
}

// AlertTenantSummary is the per-tenant rollup on the alerts view.
type AlertTenantSummary struct {
	TenantName string `json:"tenant_name"`
	AlertCount int    `json:"alert_count"`
}

// IdentityRisk is one identity with its derived risk fields.
type IdentityRisk struct {
	TenantName string `json:"tenant_name"`
	IdentityFinding
	UnusedPct  float64 `json:"entitlements_unused_pct"`
	DaysUnused *int    `json:"days_unused,omitempty"`
	Stale      bool    `json:"stale"`
	NeverUsed  bool    `json:"never_used"`
}

// IdentityPage is the identities view across tenants.
type IdentityPage struct {
	TotalIdentities int                     `json:"total_identities"`
	TotalCritical   int                     `json:"total_critical"`
	TotalHigh       int                     `json:"total_high"`
	TotalStale      int                     `json:"total_stale"`
	Tenants         []IdentityTenantSummary `json:"tenants"`
	Items           []IdentityRisk          `json:"items"`
}

// IdentityTenantSummary is the per-tenant rollup on the identities view.
type IdentityTenantSummary struct {
	TenantName    string `json:"tenant_name"`
	IdentityCount int    `json:"identity_count"`
	CriticalCount int    `json:"critical_count"`
	HighCount     int    `json:"high_count"`
}
