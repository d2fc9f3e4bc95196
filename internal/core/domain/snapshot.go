package domain

import (
	"encoding/json"
	"time"
)

// Snapshot is the complete normalized finding set of one domain for one
// tenant as of the most recent successful sync. Findings are carried as an
// opaque JSON blob plus summary counters; writers replace the whole
// snapshot, never patch it.
type Snapshot struct {
	TenantID uint            `json:"tenant_id"`
	Domain   FindingDomain   `json:"domain"`
	Version  int             `json:"version"`
	SyncedAt time.Time       `json:"synced_at"`
	Counts   SeverityCounts  `json:"counts"`
	Dropped  int             `json:"dropped"`
	Payload  json.RawMessage `json:"payload"`
}

// NewSnapshot encodes a typed finding slice into a snapshot blob, counting
// severities via the provided accessor.
func NewSnapshot[T any](tenantID uint, dom FindingDomain, findings []T, sevOf func(T) Severity, dropped int, syncedAt time.Time) (*Snapshot, error) {
	payload, err := json.Marshal(findings)
	if err != nil {
		return nil, err
	}
	var counts SeverityCounts
	for _, f := range findings {
		counts.Add(sevOf(f))
	}
	return &Snapshot{
		TenantID: tenantID,
		Domain:   dom,
		SyncedAt: syncedAt,
		Counts:   counts,
		Dropped:  dropped,
		Payload:  payload,
	}, nil
}

// Alerts decodes the snapshot payload as alert findings.
func (s *Snapshot) Alerts() ([]Alert, error) {
	var out []Alert
	return out, s.decode(&out)
}

// Vulns decodes the snapshot payload as vulnerability findings.
func (s *Snapshot) Vulns() ([]VulnFinding, error) {
	var out []VulnFinding
	return out, s.decode(&out)
}

// Compliance decodes the snapshot payload as compliance findings.
func (s *Snapshot) Compliance() ([]ComplianceFinding, error) {
	var out []ComplianceFinding
	return out, s.decode(&out)
}

// Identities decodes the snapshot payload as identity findings.
func (s *Snapshot) Identities() ([]IdentityFinding, error) {
	var out []IdentityFinding
	return out, s.decode(&out)
}

func (s *Snapshot) decode(out any) error {
	if len(s.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(s.Payload, out)
}

// TenantSnapshot pairs a snapshot with its owning tenant for the
// aggregation read path.
type TenantSnapshot struct {
	Tenant   Tenant
	Snapshot Snapshot
}

// SyncOutcome is the structured result of one tenant sync run. Sync
// operations report outcomes, they do not raise.
type SyncOutcome struct {
	TenantID        uint                     `json:"tenant_id"`
	TenantName      string                   `json:"tenant_name"`
	Success         bool                     `json:"success"`
	Status          SyncStatus               `json:"status"`
	PerDomainCounts map[FindingDomain]int    `json:"per_domain_counts"`
	PerDomainErrors map[FindingDomain]string `json:"per_domain_errors,omitempty"`
	Dropped         int                      `json:"dropped,omitempty"`
	Error           string                   `json:"error,omitempty"`
	StartedAt       time.Time                `json:"started_at"`
	Duration        time.Duration            `json:"duration"`
}

// SyncPhase labels the stages of a tenant sync run for event consumers.
type SyncPhase string

const (
	PhasePending     SyncPhase = "pending"
	PhaseFetching    SyncPhase = "fetching"
	PhaseNormalizing SyncPhase = "normalizing"
	PhaseCommitting  SyncPhase = "committing"
	PhaseSuccess     SyncPhase = "success"
	PhaseFailed      SyncPhase = "failed"
)

// SyncEvent is broadcast as a tenant sync run moves through its phases.
type SyncEvent struct {
	TenantID   uint          `json:"tenant_id"`
	TenantName string        `json:"tenant_name"`
	Phase      SyncPhase     `json:"phase"`
	Domain     FindingDomain `json:"domain,omitempty"`
	Message    string        `json:"message,omitempty"`
	At         time.Time     `json:"at"`
}
