package storage

import (
	"context"
	"errors"
	"time"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// SQLiteAdapter implements the tenant and snapshot stores using GORM and
// SQLite. One adapter instance backs all repositories.
type SQLiteAdapter struct {
	db *gorm.DB
}

// TenantModel is the GORM model for tenant configuration records.
type TenantModel struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex"`
	Account      string
	BaseURL      string
	APIKeyID     string
	APISecretEnc string // vault ciphertext, never plaintext
	SubAccount   string
	Enabled      bool
	LastSyncAt   *time.Time
	LastStatus   string
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SnapshotModel is the GORM model for finding snapshots. The unique index
// on (tenant_id, domain) enforces at most one current snapshot per key;
// replacement happens in place inside a transaction.
type SnapshotModel struct {
	ID       uint   `gorm:"primaryKey"`
	TenantID uint   `gorm:"uniqueIndex:idx_snapshot_key"`
	Domain   string `gorm:"uniqueIndex:idx_snapshot_key"`
	Version  int
	SyncedAt time.Time
	Critical int
	High     int
	Medium   int
	Low      int
	Info     int
	Dropped  int
	Payload  []byte
}

// NewSQLiteAdapter initializes the database, migrates the schema and hooks
// up query tracing.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&TenantModel{}, &SnapshotModel{}, &domain.User{}, &domain.AuditLog{}); err != nil {
		return nil, err
	}

	db.Exec("CREATE INDEX IF NOT EXISTS idx_tenants_enabled ON tenant_models(enabled)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_snapshots_domain ON snapshot_models(domain)")

	return &SQLiteAdapter{db: db}, nil
}

// CreateTenant persists a new tenant configuration.
func (a *SQLiteAdapter) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	model := tenantToModel(t)
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	t.ID = model.ID
	return nil
}

// GetTenant retrieves a tenant by id.
func (a *SQLiteAdapter) GetTenant(ctx context.Context, id uint) (*domain.Tenant, error) {
	var model TenantModel
	if err := a.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return tenantToDomain(model), nil
}

// ListTenants returns tenants ordered by name.
func (a *SQLiteAdapter) ListTenants(ctx context.Context, enabledOnly bool) ([]domain.Tenant, error) {
	query := a.db.WithContext(ctx).Order("name asc")
	if enabledOnly {
		query = query.Where("enabled = ?", true)
	}

	var models []TenantModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	tenants := make([]domain.Tenant, len(models))
	for i, m := range models {
		tenants[i] = *tenantToDomain(m)
	}
	return tenants, nil
}

// UpdateTenant saves changed tenant configuration fields.
func (a *SQLiteAdapter) UpdateTenant(ctx context.Context, t *domain.Tenant) error {
	model := tenantToModel(t)
	result := a.db.WithContext(ctx).Model(&TenantModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"name":           model.Name,
		"account":        model.Account,
		"base_url":       model.BaseURL,
		"api_key_id":     model.APIKeyID,
		"api_secret_enc": model.APISecretEnc,
		"sub_account":    model.SubAccount,
		"enabled":        model.Enabled,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

// DeleteTenant removes a tenant and cascades to its snapshots in one
// transaction.
func (a *SQLiteAdapter) DeleteTenant(ctx context.Context, id uint) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&TenantModel{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrTenantNotFound
		}
		return tx.Where("tenant_id = ?", id).Delete(&SnapshotModel{}).Error
	})
}

// UpdateSyncState records a sync outcome as a single UPDATE, so readers
// never observe a half-updated tenant record.
func (a *SQLiteAdapter) UpdateSyncState(ctx context.Context, id uint, status domain.SyncStatus, errMsg string, at time.Time) error {
	result := a.db.WithContext(ctx).Model(&TenantModel{}).Where("id = ?", id).Updates(map[string]any{
		"last_status":  string(status),
		"last_error":   errMsg,
		"last_sync_at": at,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

// PutSnapshot replaces the current snapshot for (tenant, domain) inside a
// transaction, bumping the version.
func (a *SQLiteAdapter) PutSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current SnapshotModel
		err := tx.Where("tenant_id = ? AND domain = ?", snap.TenantID, string(snap.Domain)).First(&current).Error

		model := snapshotToModel(snap)
		switch {
		case err == nil:
			model.ID = current.ID
			model.Version = current.Version + 1
			if err := tx.Save(&model).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			model.Version = 1
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		default:
			return err
		}

		snap.Version = model.Version
		return nil
	})
}

// GetSnapshot returns the current snapshot for (tenant, domain), or nil if
// the tenant has never synced that domain.
func (a *SQLiteAdapter) GetSnapshot(ctx context.Context, tenantID uint, dom domain.FindingDomain) (*domain.Snapshot, error) {
	var model SnapshotModel
	err := a.db.WithContext(ctx).Where("tenant_id = ? AND domain = ?", tenantID, string(dom)).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDomain(model), nil
}

// GetAllCurrent lists one domain's current snapshots across all enabled
// tenants, paired with their owners.
func (a *SQLiteAdapter) GetAllCurrent(ctx context.Context, dom domain.FindingDomain) ([]domain.TenantSnapshot, error) {
	tenants, err := a.ListTenants(ctx, true)
	if err != nil {
		return nil, err
	}

	var models []SnapshotModel
	if err := a.db.WithContext(ctx).Where("domain = ?", string(dom)).Find(&models).Error; err != nil {
		return nil, err
	}
	byTenant := make(map[uint]SnapshotModel, len(models))
	for _, m := range models {
		byTenant[m.TenantID] = m
	}

	out := make([]domain.TenantSnapshot, 0, len(tenants))
	for _, t := range tenants {
		m, ok := byTenant[t.ID]
		if !ok {
			continue
		}
		out = append(out, domain.TenantSnapshot{Tenant: t, Snapshot: *snapshotToDomain(m)})
	}
	return out, nil
}

// DeleteTenantSnapshots removes every snapshot owned by a tenant.
func (a *SQLiteAdapter) DeleteTenantSnapshots(ctx context.Context, tenantID uint) error {
	return a.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&SnapshotModel{}).Error
}

// Close releases the underlying database handle.
func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var (
	_ ports.TenantStore   = (*SQLiteAdapter)(nil)
	_ ports.SnapshotStore = (*SQLiteAdapter)(nil)
)
