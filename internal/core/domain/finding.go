package domain

import "time"

// FindingDomain identifies one of the four upstream data domains.
type FindingDomain string

const (
	DomainAlerts          FindingDomain = "alerts"
	DomainVulnerabilities FindingDomain = "vulnerabilities"
	DomainCompliance      FindingDomain = "compliance"
	DomainIdentities      FindingDomain = "identities"
)

// AllDomains lists every finding domain in a stable order.
func AllDomains() []FindingDomain {
	return []FindingDomain{DomainAlerts, DomainVulnerabilities, DomainCompliance, DomainIdentities}
}

// IsValid checks if the domain is one of the four known data domains.
func (d FindingDomain) IsValid() bool {
	switch d {
	case DomainAlerts, DomainVulnerabilities, DomainCompliance, DomainIdentities:
		return true
	}
	return false
}

// Alert is a normalized security alert. AlertID is the natural key.
type Alert struct {
	AlertID     int64    `json:"alert_id"`
	Severity    Severity `json:"severity"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	CreatedTime string   `json:"created_time,omitempty"`
	Composite   bool     `json:"composite"`
}

// VulnFinding is a normalized host or container vulnerability occurrence.
// The natural key is CVE plus hostname: the same CVE on two hosts is two
// findings, which is what host counting in the aggregator relies on.
type VulnFinding struct {
	CVE        string   `json:"cve"`
	Severity   Severity `json:"severity"`
	Package    string   `json:"package,omitempty"`
	Version    string   `json:"version,omitempty"`
	FixVersion string   `json:"fix_version,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	ExternalIP string   `json:"external_ip,omitempty"`
	MachineID  string   `json:"machine_id,omitempty"`
	Status     string   `json:"status,omitempty"`
}

// NaturalKey identifies a vulnerability occurrence within a snapshot.
func (v VulnFinding) NaturalKey() string {
	return v.CVE + "|" + v.Hostname
}

// InternetExposed reports whether the affected resource carries a public
// address. Purely attribute based, no probing.
func (v VulnFinding) InternetExposed() bool {
	return v.ExternalIP != ""
}

// ComplianceFinding is a normalized non-compliant policy evaluation.
// PolicyID plus Resource forms the natural key.
type ComplianceFinding struct {
	PolicyID string   `json:"policy_id"`
	Severity Severity `json:"severity"`
	Dataset  string   `json:"dataset"`
	Section  string   `json:"section,omitempty"`
	Title    string   `json:"title"`
	Reason   string   `json:"reason,omitempty"`
	Resource string   `json:"resource,omitempty"`
	Region   string   `json:"region,omitempty"`
	Account  string   `json:"account,omitempty"`
	Status   string   `json:"status"`
}

// AccessKey is a long-lived credential attached to a cloud identity.
type AccessKey struct {
	KeyID     string `json:"key_id"`
	Active    bool   `json:"active"`
	LastUsed  string `json:"last_used,omitempty"`
	Created   string `json:"created,omitempty"`
	HardCoded bool   `json:"hard_coded"`
}

// IdentityFinding is a normalized cloud identity with its risk posture.
// PrincipalID is the natural key.
type IdentityFinding struct {
	PrincipalID string     `json:"principal_id"`
	Name        string     `json:"name"`
	Provider    string     `json:"provider,omitempty"`
	DomainID    string     `json:"domain_id,omitempty"`
	RiskScore   int        `json:"risk_score"`
	Severity    Severity   `json:"risk_severity"`
	RiskTags    []string   `json:"risks,omitempty"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
	Created     *time.Time `json:"created,omitempty"`

	EntitlementsTotal  int `json:"entitlements_total"`
	EntitlementsUnused int `json:"entitlements_unused"`
	ServicesTotal      int `json:"services_total"`
	ServicesUnused     int `json:"services_unused"`

	AccessKeys []AccessKey `json:"access_keys,omitempty"`
}

// StaleCredentialCutoff is the unused-credential threshold applied to
// identity last-used timestamps.
const StaleCredentialCutoff = 180 * 24 * time.Hour

// UnusedEntitlementPct returns the unused-entitlement percentage in [0,100].
// Zero total entitlements yields 0, never a division fault.
func (i IdentityFinding) UnusedEntitlementPct() float64 {
	if i.EntitlementsTotal <= 0 {
		return 0
	}
	pct := float64(i.EntitlementsUnused) / float64(i.EntitlementsTotal) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// NeverUsed reports an identity with no usage record at all: no last-used
// timestamp and no access keys. Distinct from stale, which means unused
// past the cutoff.
func (i IdentityFinding) NeverUsed() bool {
	return i.LastUsed == nil && len(i.AccessKeys) == 0
}

// DaysUnused returns the days since the identity was last used, or -1 when
// no last-used timestamp exists.
func (i IdentityFinding) DaysUnused(now time.Time) int {
	if i.LastUsed == nil {
		return -1
	}
	return int(now.Sub(*i.LastUsed).Hours() / 24)
}

// Stale reports whether the identity's credentials are past the unused
// cutoff. An identity with access keys but no last-used timestamp is
// indefinitely stale.
func (i IdentityFinding) Stale(now time.Time) bool {
	if i.NeverUsed() {
		return false
	}
	if i.LastUsed == nil {
		return true
	}
	return now.Sub(*i.LastUsed) >= StaleCredentialCutoff
}
