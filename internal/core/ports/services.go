package ports

import (
	"context"

	"github.com/seclens/seclens/internal/core/domain"
)

// AuthService gates access to the console. The sync core trusts it at the
// boundary; it never sees upstream credentials.
type AuthService interface {
	Login(ctx context.Context, creds domain.Credentials) (string, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*domain.User, error)
}

// AuditService records critical system actions.
type AuditService interface {
	Log(ctx context.Context, action domain.AuditAction, target, details string) error
	GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// SyncService drives tenant synchronization. All operations return
// structured outcomes rather than raising; failures within one tenant
// never abort a batch.
type SyncService interface {
	SyncTenant(ctx context.Context, tenantID uint) domain.SyncOutcome
	SyncAll(ctx context.Context) []domain.SyncOutcome

	// TestConnection verifies unsaved parameters; TestTenant verifies a
	// saved tenant's stored credentials.
	TestConnection(ctx context.Context, params domain.ConnectionParams) (bool, string)
	TestTenant(ctx context.Context, tenantID uint) (bool, string)
}
