package audit

import (
	"context"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
)

// userKey carries the acting user through the request context. The web
// middleware sets it; handlers never pass user identity explicitly.
type userKey struct{}

// WithUser returns a context carrying the acting user for audit purposes.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// AuditService records critical system actions against the audit trail.
type AuditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log writes one audit entry. Actions performed outside a user session,
// like the scheduler's sync runs, are attributed to "system".
func (s *AuditService) Log(ctx context.Context, action domain.AuditAction, target, details string) error {
	userID := "system"
	username := "system"

	if u, ok := ctx.Value(userKey{}).(*domain.User); ok && u != nil {
		userID = u.ID
		username = u.Username
	}

	entry, err := domain.NewAuditLog(userID, username, action, target, details)
	if err != nil {
		return err
	}

	return s.repo.SaveAuditLog(ctx, *entry)
}

// GetLogs returns the most recent audit entries, newest first.
func (s *AuditService) GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, limit)
}
