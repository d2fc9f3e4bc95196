package ports

import (
	"context"
	"time"

	"github.com/seclens/seclens/internal/core/domain"
)

// TenantStore defines persistence for tenant configuration records.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *domain.Tenant) error
	GetTenant(ctx context.Context, id uint) (*domain.Tenant, error)

	// ListTenants returns tenants ordered by name. With enabledOnly set,
	// disabled tenants are excluded.
	ListTenants(ctx context.Context, enabledOnly bool) ([]domain.Tenant, error)

	UpdateTenant(ctx context.Context, t *domain.Tenant) error

	// DeleteTenant removes the tenant and cascades to its snapshots.
	DeleteTenant(ctx context.Context, id uint) error

	// UpdateSyncState atomically records the outcome of a sync run.
	// Readers never observe a half-updated tenant record.
	UpdateSyncState(ctx context.Context, id uint, status domain.SyncStatus, errMsg string, at time.Time) error
}

// SnapshotStore defines the versioned per-tenant snapshot cache.
type SnapshotStore interface {
	// PutSnapshot replaces the current snapshot for (tenant, domain)
	// atomically. Readers see either the old complete snapshot or the
	// new one, never a mix.
	PutSnapshot(ctx context.Context, snap *domain.Snapshot) error

	// GetSnapshot returns the current snapshot, or nil if never synced.
	GetSnapshot(ctx context.Context, tenantID uint, dom domain.FindingDomain) (*domain.Snapshot, error)

	// GetAllCurrent lists the current snapshots of one domain across all
	// tenants. The primary read path for aggregation.
	GetAllCurrent(ctx context.Context, dom domain.FindingDomain) ([]domain.TenantSnapshot, error)

	// DeleteTenantSnapshots removes every snapshot owned by a tenant.
	DeleteTenantSnapshots(ctx context.Context, tenantID uint) error
}

// UserRepository defines persistence for console users.
type UserRepository interface {
	SaveUser(ctx context.Context, user domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

// AuditRepository defines persistence for the audit trail.
type AuditRepository interface {
	SaveAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}
