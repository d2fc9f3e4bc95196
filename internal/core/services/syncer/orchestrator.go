// Package syncer drives tenant synchronization: fetch all four domains,
// normalize, commit snapshots, update tenant health. Failures are isolated
// at two levels — a domain failure never aborts the other domains of the
// same run, and a tenant failure never aborts the rest of a batch.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
	"github.com/seclens/seclens/internal/core/services/normalize"
	"github.com/seclens/seclens/internal/telemetry"
)

const (
	// DefaultWorkers bounds concurrent tenant syncs in a batch.
	DefaultWorkers = 4

	// DefaultTenantTimeout bounds one tenant's sync run.
	DefaultTenantTimeout = 5 * time.Minute

	// stateUpdateTimeout bounds the post-run status write, which must
	// succeed even when the run context is already dead.
	stateUpdateTimeout = 10 * time.Second
)

// Config tunes the orchestrator.
type Config struct {
	// Workers is the concurrency ceiling for sync-all batches.
	Workers int

	// TenantTimeout is the per-tenant run budget. On expiry the run's
	// partial results are discarded and the tenant is marked failed.
	TenantTimeout time.Duration

	// Events receives sync lifecycle events. Optional.
	Events ports.SyncEventSink
}

// Orchestrator coordinates tenant sync runs.
type Orchestrator struct {
	tenants   ports.TenantStore
	snapshots ports.SnapshotStore
	vault     ports.Vault
	clients   ports.ClientFactory
	events    ports.SyncEventSink

	workers int
	timeout time.Duration

	mu       sync.Mutex
	inflight map[uint]bool
}

// New creates a sync orchestrator.
func New(tenants ports.TenantStore, snapshots ports.SnapshotStore, vault ports.Vault, clients ports.ClientFactory, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.TenantTimeout <= 0 {
		cfg.TenantTimeout = DefaultTenantTimeout
	}
	return &Orchestrator{
		tenants:   tenants,
		snapshots: snapshots,
		vault:     vault,
		clients:   clients,
		events:    cfg.Events,
		workers:   cfg.Workers,
		timeout:   cfg.TenantTimeout,
		inflight:  make(map[uint]bool),
	}
}

// SyncTenant runs one tenant sync and returns its structured outcome.
// A run already in flight for the tenant is rejected, not queued.
func (o *Orchestrator) SyncTenant(ctx context.Context, tenantID uint) domain.SyncOutcome {
	tenant, err := o.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return failedOutcome(tenantID, "", domain.ErrTenantNotFound.Error())
	}
	if !tenant.Enabled {
		return failedOutcome(tenantID, tenant.Name, domain.ErrTenantDisabled.Error())
	}

	if !o.acquire(tenantID) {
		return failedOutcome(tenantID, tenant.Name, domain.ErrSyncInFlight.Error())
	}
	defer o.release(tenantID)

	return o.run(ctx, tenant)
}

// SyncAll syncs every enabled tenant with a bounded worker pool and
// returns per-tenant outcomes. One slow or failing tenant never blocks or
// aborts the rest of the batch.
func (o *Orchestrator) SyncAll(ctx context.Context) []domain.SyncOutcome {
	tenants, err := o.tenants.ListTenants(ctx, true)
	if err != nil {
		log.Printf("syncer: listing tenants failed: %v", err)
		return nil
	}

	outcomes := make([]domain.SyncOutcome, len(tenants))
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup

	for i, t := range tenants {
		wg.Add(1)
		go func(i int, tenant domain.Tenant) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if !o.acquire(tenant.ID) {
				outcomes[i] = failedOutcome(tenant.ID, tenant.Name, domain.ErrSyncInFlight.Error())
				return
			}
			defer o.release(tenant.ID)

			outcomes[i] = o.run(ctx, &tenant)
		}(i, t)
	}
	wg.Wait()

	return outcomes
}

// TestConnection verifies unsaved connection parameters against the
// upstream. It never touches persisted credentials.
func (o *Orchestrator) TestConnection(ctx context.Context, params domain.ConnectionParams) (bool, string) {
	client := o.clients.NewClient(params)
	if err := client.TestConnection(ctx); err != nil {
		return false, err.Error()
	}
	return true, "Connection successful"
}

// TestTenant verifies a saved tenant's stored credentials.
func (o *Orchestrator) TestTenant(ctx context.Context, tenantID uint) (bool, string) {
	tenant, err := o.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return false, domain.ErrTenantNotFound.Error()
	}
	secret, err := o.vault.Decrypt(tenant.APISecretEnc)
	if err != nil {
		return false, fmt.Sprintf("credential decryption failed: %v", err)
	}
	return o.TestConnection(ctx, domain.ConnectionParams{
		BaseURL:    tenant.BaseURL,
		APIKeyID:   tenant.APIKeyID,
		APISecret:  secret,
		SubAccount: tenant.SubAccount,
	})
}

// domainFetch is one domain's raw fetch result within a run.
type domainFetch struct {
	dom     domain.FindingDomain
	records []ports.RawRecord
	err     error
}

// run executes the per-tenant state machine:
// Pending -> Fetching -> Normalizing -> Committing -> Success | Failed.
func (o *Orchestrator) run(parent context.Context, tenant *domain.Tenant) domain.SyncOutcome {
	started := time.Now().UTC()
	outcome := domain.SyncOutcome{
		TenantID:        tenant.ID,
		TenantName:      tenant.Name,
		StartedAt:       started,
		PerDomainCounts: make(map[domain.FindingDomain]int),
		PerDomainErrors: make(map[domain.FindingDomain]string),
	}
	o.publish(tenant, domain.PhasePending, "", "")

	ctx, cancel := context.WithTimeout(parent, o.timeout)
	defer cancel()

	secret, err := o.vault.Decrypt(tenant.APISecretEnc)
	if err != nil {
		return o.finish(ctx, tenant, outcome, fmt.Sprintf("credential decryption failed: %v", err), started)
	}

	client := o.clients.NewClient(domain.ConnectionParams{
		BaseURL:    tenant.BaseURL,
		APIKeyID:   tenant.APIKeyID,
		APISecret:  secret,
		SubAccount: tenant.SubAccount,
	})

	// Fetching: the four domains are independent and run concurrently;
	// completion order does not matter.
	o.publish(tenant, domain.PhaseFetching, "", "")
	fetches := o.fetchAll(ctx, client)

	// A run that exhausted its budget commits nothing: stale-but-valid
	// snapshots beat partially fresh ones.
	if ctx.Err() != nil {
		return o.finish(ctx, tenant, outcome, fmt.Sprintf("sync timed out after %s", o.timeout), started)
	}

	// Normalizing.
	o.publish(tenant, domain.PhaseNormalizing, "", "")
	snapshots := make([]*domain.Snapshot, 0, len(fetches))
	for _, f := range fetches {
		if f.err != nil {
			outcome.PerDomainErrors[f.dom] = f.err.Error()
			telemetry.FetchErrors.WithLabelValues(tenant.Name, string(f.dom)).Inc()
			continue
		}
		snap, dropped, err := o.normalizeDomain(tenant.ID, f.dom, f.records, started)
		if err != nil {
			outcome.PerDomainErrors[f.dom] = err.Error()
			continue
		}
		outcome.Dropped += dropped
		if dropped > 0 {
			telemetry.NormalizationDrops.WithLabelValues(tenant.Name, string(f.dom)).Add(float64(dropped))
			log.Printf("syncer: tenant %q domain %s dropped %d unmappable records", tenant.Name, f.dom, dropped)
		}
		snapshots = append(snapshots, snap)
	}

	// Committing: each successfully fetched domain replaces its snapshot
	// atomically. Failed domains keep their previous snapshot untouched.
	o.publish(tenant, domain.PhaseCommitting, "", "")
	for _, snap := range snapshots {
		if err := o.snapshots.PutSnapshot(ctx, snap); err != nil {
			outcome.PerDomainErrors[snap.Domain] = fmt.Sprintf("commit failed: %v", err)
			continue
		}
		outcome.PerDomainCounts[snap.Domain] = snap.Counts.Total()
		telemetry.SnapshotFindings.WithLabelValues(tenant.Name, string(snap.Domain)).Set(float64(snap.Counts.Total()))
	}

	if len(outcome.PerDomainErrors) > 0 {
		return o.finish(ctx, tenant, outcome, joinDomainErrors(outcome.PerDomainErrors), started)
	}
	return o.finish(ctx, tenant, outcome, "", started)
}

// fetchAll runs the four domain fetches concurrently and collects their
// results in a stable order.
func (o *Orchestrator) fetchAll(ctx context.Context, client ports.UpstreamClient) []domainFetch {
	calls := []struct {
		dom   domain.FindingDomain
		fetch func(context.Context) ([]ports.RawRecord, error)
	}{
		{domain.DomainAlerts, client.FetchAlerts},
		{domain.DomainVulnerabilities, client.FetchVulns},
		{domain.DomainCompliance, client.FetchCompliance},
		{domain.DomainIdentities, client.FetchIdentities},
	}

	results := make([]domainFetch, len(calls))
	var wg sync.WaitGroup
	for i, c := range calls {
		wg.Add(1)
		go func(i int, dom domain.FindingDomain, fetch func(context.Context) ([]ports.RawRecord, error)) {
			defer wg.Done()
			records, err := fetch(ctx)
			results[i] = domainFetch{dom: dom, records: records, err: err}
		}(i, c.dom, c.fetch)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) normalizeDomain(tenantID uint, dom domain.FindingDomain, records []ports.RawRecord, syncedAt time.Time) (*domain.Snapshot, int, error) {
	switch dom {
	case domain.DomainAlerts:
		findings, dropped := normalize.Alerts(records)
		snap, err := domain.NewSnapshot(tenantID, dom, findings, func(a domain.Alert) domain.Severity { return a.Severity }, dropped, syncedAt)
		return snap, dropped, err
	case domain.DomainVulnerabilities:
		findings, dropped := normalize.Vulns(records)
		snap, err := domain.NewSnapshot(tenantID, dom, findings, func(v domain.VulnFinding) domain.Severity { return v.Severity }, dropped, syncedAt)
		return snap, dropped, err
	case domain.DomainCompliance:
		findings, dropped := normalize.Compliance(records)
		snap, err := domain.NewSnapshot(tenantID, dom, findings, func(c domain.ComplianceFinding) domain.Severity { return c.Severity }, dropped, syncedAt)
		return snap, dropped, err
	default:
		findings, dropped := normalize.Identities(records)
		snap, err := domain.NewSnapshot(tenantID, dom, findings, func(i domain.IdentityFinding) domain.Severity { return i.Severity }, dropped, syncedAt)
		return snap, dropped, err
	}
}

// finish records the run outcome on the tenant and emits metrics and the
// terminal event. The state write uses a fresh context so an expired run
// budget cannot leave the tenant record stale.
func (o *Orchestrator) finish(_ context.Context, tenant *domain.Tenant, outcome domain.SyncOutcome, fatalMsg string, started time.Time) domain.SyncOutcome {
	outcome.Duration = time.Since(started)

	status := domain.SyncSuccess
	errMsg := ""
	if fatalMsg != "" {
		status, errMsg = domain.SyncError, fatalMsg
	}

	outcome.Status = status
	outcome.Success = status == domain.SyncSuccess
	outcome.Error = errMsg

	updateCtx, cancel := context.WithTimeout(context.Background(), stateUpdateTimeout)
	defer cancel()
	if err := o.tenants.UpdateSyncState(updateCtx, tenant.ID, status, errMsg, time.Now().UTC()); err != nil {
		log.Printf("syncer: recording sync state for tenant %q failed: %v", tenant.Name, err)
	}

	telemetry.SyncsTotal.WithLabelValues(tenant.Name, string(status)).Inc()
	telemetry.SyncDuration.WithLabelValues(tenant.Name).Observe(outcome.Duration.Seconds())

	if outcome.Success {
		o.publish(tenant, domain.PhaseSuccess, "", "")
	} else {
		o.publish(tenant, domain.PhaseFailed, "", errMsg)
	}
	return outcome
}

func (o *Orchestrator) acquire(tenantID uint) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inflight[tenantID] {
		return false
	}
	o.inflight[tenantID] = true
	return true
}

func (o *Orchestrator) release(tenantID uint) {
	o.mu.Lock()
	delete(o.inflight, tenantID)
	o.mu.Unlock()
}

func (o *Orchestrator) publish(tenant *domain.Tenant, phase domain.SyncPhase, dom domain.FindingDomain, msg string) {
	if o.events == nil {
		return
	}
	o.events.Publish(domain.SyncEvent{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Phase:      phase,
		Domain:     dom,
		Message:    msg,
		At:         time.Now().UTC(),
	})
}

func failedOutcome(tenantID uint, name, msg string) domain.SyncOutcome {
	return domain.SyncOutcome{
		TenantID:   tenantID,
		TenantName: name,
		Success:    false,
		Status:     domain.SyncError,
		Error:      msg,
		StartedAt:  time.Now().UTC(),
	}
}

func joinDomainErrors(errs map[domain.FindingDomain]string) string {
	parts := make([]string, 0, len(errs))
	for dom, msg := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", dom, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
