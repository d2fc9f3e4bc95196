package storage

import (
	"context"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
)

// Ensure interface compliance
var _ ports.AuditRepository = (*SQLiteAdapter)(nil)

// SaveAuditLog appends one entry to the audit trail.
func (a *SQLiteAdapter) SaveAuditLog(ctx context.Context, log domain.AuditLog) error {
	return a.db.WithContext(ctx).Create(&log).Error
}

// ListAuditLogs returns the most recent entries, newest first.
func (a *SQLiteAdapter) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	var logs []domain.AuditLog
	if err := a.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
