package domain

import (
	"errors"
	"strings"
	"time"
)

// SyncStatus tracks the outcome of the most recent sync for a tenant.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
)

var (
	ErrEmptyTenantName    = errors.New("tenant name cannot be empty")
	ErrEmptyTenantAccount = errors.New("tenant account cannot be empty")
	ErrEmptyAPIKey        = errors.New("tenant API key id cannot be empty")
)

// Tenant is one independently configured upstream account being monitored.
// APISecretEnc holds only vault ciphertext; the plaintext secret exists in
// memory for the duration of a sync or connection test and nowhere else.
type Tenant struct {
	ID           uint       `json:"id"`
	Name         string     `json:"name"`
	Account      string     `json:"account"`
	BaseURL      string     `json:"base_url"`
	APIKeyID     string     `json:"api_key_id"`
	APISecretEnc string     `json:"-"`
	SubAccount   string     `json:"sub_account,omitempty"`
	Enabled      bool       `json:"enabled"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	LastStatus   SyncStatus `json:"last_sync_status"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewTenant builds a validated tenant in the pending state.
func NewTenant(name, account, apiKeyID, secretEnc, subAccount string) (*Tenant, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyTenantName
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, ErrEmptyTenantAccount
	}
	if apiKeyID == "" {
		return nil, ErrEmptyAPIKey
	}

	return &Tenant{
		Name:         name,
		Account:      strings.TrimSuffix(account, ".lacework.net"),
		BaseURL:      BuildBaseURL(account),
		APIKeyID:     apiKeyID,
		APISecretEnc: secretEnc,
		SubAccount:   subAccount,
		Enabled:      true,
		LastStatus:   SyncPending,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// BuildBaseURL derives the API host from a tenant account identifier,
// accepting either a bare account name or a full hostname.
func BuildBaseURL(account string) string {
	account = strings.TrimSpace(account)
	if strings.HasSuffix(account, ".lacework.net") {
		return account
	}
	return account + ".lacework.net"
}

// Health derives the tenant health as seen by the dashboard: never-synced
// tenants are pending regardless of stored status.
func (t Tenant) Health() SyncStatus {
	if t.LastSyncAt == nil || t.LastStatus == "" {
		return SyncPending
	}
	return t.LastStatus
}

// ConnectionParams carries the fields needed to reach an upstream tenant.
// Used both for saved tenants and for unsaved connection tests, where the
// secret arrives in plaintext and never touches persistence.
type ConnectionParams struct {
	BaseURL    string
	APIKeyID   string
	APISecret  string
	SubAccount string
}
