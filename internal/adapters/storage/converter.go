package storage

import (
	"encoding/json"

	"github.com/seclens/seclens/internal/core/domain"
)

func tenantToModel(t *domain.Tenant) TenantModel {
	return TenantModel{
		ID:           t.ID,
		Name:         t.Name,
		Account:      t.Account,
		BaseURL:      t.BaseURL,
		APIKeyID:     t.APIKeyID,
		APISecretEnc: t.APISecretEnc,
		SubAccount:   t.SubAccount,
		Enabled:      t.Enabled,
		LastSyncAt:   t.LastSyncAt,
		LastStatus:   string(t.LastStatus),
		LastError:    t.LastError,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func tenantToDomain(m TenantModel) *domain.Tenant {
	return &domain.Tenant{
		ID:           m.ID,
		Name:         m.Name,
		Account:      m.Account,
		BaseURL:      m.BaseURL,
		APIKeyID:     m.APIKeyID,
		APISecretEnc: m.APISecretEnc,
		SubAccount:   m.SubAccount,
		Enabled:      m.Enabled,
		LastSyncAt:   m.LastSyncAt,
		LastStatus:   domain.SyncStatus(m.LastStatus),
		LastError:    m.LastError,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func snapshotToModel(s *domain.Snapshot) SnapshotModel {
	return SnapshotModel{
		TenantID: s.TenantID,
		Domain:   string(s.Domain),
		Version:  s.Version,
		SyncedAt: s.SyncedAt,
		Critical: s.Counts.Critical,
		High:     s.Counts.High,
		Medium:   s.Counts.Medium,
		Low:      s.Counts.Low,
		Info:     s.Counts.Info,
		Dropped:  s.Dropped,
		Payload:  []byte(s.Payload),
	}
}

func snapshotToDomain(m SnapshotModel) *domain.Snapshot {
	return &domain.Snapshot{
		TenantID: m.TenantID,
		Domain:   domain.FindingDomain(m.Domain),
		Version:  m.Version,
		SyncedAt: m.SyncedAt,
		Counts: domain.SeverityCounts{
			Critical: m.Critical,
			High:     m.High,
			Medium:   m.Medium,
			Low:      m.Low,
			Info:     m.Info,
		},
		Dropped: m.Dropped,
		Payload: json.RawMessage(m.Payload),
	}
}
