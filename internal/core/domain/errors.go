package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInFlight is returned when a sync is requested for a tenant
	// that already has one running. Tenant syncs are non-reentrant.
	ErrSyncInFlight = errors.New("sync already running for tenant")

	// ErrTenantNotFound is returned for unknown tenant ids.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantDisabled is returned when a sync targets a disabled tenant.
	ErrTenantDisabled = errors.New("tenant is disabled")
)

// FetchError describes a non-retryable upstream failure for one domain of
// one tenant. Body is an excerpt, never the full response.
type FetchError struct {
	Tenant string
	Domain FindingDomain
	Status int
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for tenant %q failed: status %d: %s", e.Domain, e.Tenant, e.Status, e.Body)
}

// ConnectionError describes a failure to reach or authenticate against an
// upstream tenant.
type ConnectionError struct {
	Status int
	Cause  error
}

func (e *ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("connection failed: HTTP %d: %v", e.Status, e.Cause)
	}
	return fmt.Sprintf("connection failed: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }
