package ports

import (
	"context"

	"github.com/seclens/seclens/internal/core/domain"
)

// RawRecord is one undecoded upstream result row. The normalizer turns
// these into canonical findings.
type RawRecord = map[string]any

// UpstreamClient performs authenticated calls against one tenant's API.
// Token acquisition, refresh, pagination and transient-error retry happen
// inside the client; errors surfaced here are terminal for the run.
type UpstreamClient interface {
	// TestConnection verifies credentials by acquiring a token.
	TestConnection(ctx context.Context) error

	FetchAlerts(ctx context.Context) ([]RawRecord, error)

	// FetchVulns covers both host and container vulnerability searches;
	// the rows land in the single vulnerabilities domain.
	FetchVulns(ctx context.Context) ([]RawRecord, error)
	FetchCompliance(ctx context.Context) ([]RawRecord, error)
	FetchIdentities(ctx context.Context) ([]RawRecord, error)
}

// ClientFactory builds an upstream client for a tenant from its decrypted
// connection parameters.
type ClientFactory interface {
	NewClient(params domain.ConnectionParams) UpstreamClient
}

// SyncEventSink receives sync lifecycle events for live consumers. A nil
// or no-op sink is valid.
type SyncEventSink interface {
	Publish(event domain.SyncEvent)
}
