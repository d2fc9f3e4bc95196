package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	tokenPath          = "/api/v2/access/tokens"
	alertsPath         = "/api/v2/Alerts"
	hostVulnsPath      = "/api/v2/Vulnerabilities/Hosts/search"
	containerVulnsPath = "/api/v2/Vulnerabilities/Containers/search"
	compliancePath     = "/api/v2/Configs/ComplianceEvaluations/search"
	queryExecutePath   = "/api/v2/Queries/execute"
	tokenExpirySecs    = 3600
	bodyExcerptLimit   = 200
	defaultReqTimeout  = 30 * time.Second
)

// complianceDatasets are the cloud-provider datasets queried per tenant.
var complianceDatasets = []string{"AwsCompliance", "GcpCompliance", "AzureCompliance"}

// Factory builds per-tenant upstream clients sharing one instrumented
// HTTP transport and retry policy.
type Factory struct {
	httpc  *http.Client
	policy RetryPolicy
}

// NewFactory creates a client factory with an OpenTelemetry-instrumented
// transport.
func NewFactory(policy RetryPolicy) *Factory {
	return &Factory{
		httpc: &http.Client{
			Timeout:   defaultReqTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		policy: policy,
	}
}

// NewClient builds a client for one tenant from its decrypted connection
// parameters.
func (f *Factory) NewClient(params domain.ConnectionParams) ports.UpstreamClient {
	base := params.BaseURL
	if !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Client{
		baseURL:    strings.TrimSuffix(base, "/"),
		keyID:      params.APIKeyID,
		secret:     params.APISecret,
		subAccount: params.SubAccount,
		httpc:      f.httpc,
		policy:     f.policy,
	}
}

// Client performs authenticated calls against one tenant's API. The access
// token is cached in memory for its validity window and refreshed
// transparently on expiry or 401.
type Client struct {
	baseURL    string
	keyID      string
	secret     string
	subAccount string
	httpc      *http.Client
	policy     RetryPolicy

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

type apiResponse struct {
	Data   []map[string]any `json:"data"`
	Paging struct {
		Urls struct {
			NextPage string `json:"nextPage"`
		} `json:"urls"`
	} `json:"paging"`
}

// TestConnection verifies credentials by acquiring an access token.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ensureToken(ctx)
	return err
}

// FetchAlerts returns open alerts with details.
func (c *Client) FetchAlerts(ctx context.Context) ([]ports.RawRecord, error) {
	resp, err := c.request(ctx, domain.DomainAlerts, http.MethodGet, alertsPath+"?details=Details", nil)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// FetchVulns searches host and container vulnerabilities over the last
// 24 hours, Critical and High only, and merges the rows into one set. A
// single failing search does not abort the other; the call errors only
// when both fail.
func (c *Client) FetchVulns(ctx context.Context) ([]ports.RawRecord, error) {
	searches := []struct {
		path     string
		returns  []string
		maxPages int
	}{
		{hostVulnsPath, []string{"vulnId", "severity", "status", "fixInfo", "featureKey", "machineTags"}, 5},
		{containerVulnsPath, []string{"vulnId", "severity", "status", "fixInfo", "featureKey", "imageId"}, 3},
	}

	var all []ports.RawRecord
	var lastErr error
	failed := 0

	for _, s := range searches {
		body := map[string]any{
			"timeFilter": timeFilter(24 * time.Hour),
			"filters": []map[string]any{
				{"field": "severity", "expression": "in", "values": []string{"Critical", "High"}},
			},
			"returns": s.returns,
		}
		rows, err := c.paginated(ctx, domain.DomainVulnerabilities, http.MethodPost, s.path, body, s.maxPages)
		if err != nil {
			log.Printf("upstream: vulnerability search %s failed: %v", s.path, err)
			lastErr = err
			failed++
			continue
		}
		all = append(all, rows...)
	}

	if failed == len(searches) {
		return nil, lastErr
	}
	return all, nil
}

// FetchCompliance collects non-compliant Critical/High evaluations across
// the cloud-provider datasets. Each row is tagged with its dataset. A
// single failing dataset does not abort the others; the call errors only
// when every dataset fails.
func (c *Client) FetchCompliance(ctx context.Context) ([]ports.RawRecord, error) {
	var all []ports.RawRecord
	var lastErr error
	failed := 0

	for _, dataset := range complianceDatasets {
		body := map[string]any{
			"timeFilter": timeFilter(24 * time.Hour),
			"dataset":    dataset,
			"filters": []map[string]any{
				{"field": "severity", "expression": "in", "values": []string{"Critical", "High"}},
				{"field": "status", "expression": "eq", "value": "NonCompliant"},
			},
		}
		rows, err := c.paginated(ctx, domain.DomainCompliance, http.MethodPost, compliancePath, body, 3)
		if err != nil {
			log.Printf("upstream: compliance dataset %s failed: %v", dataset, err)
			lastErr = err
			failed++
			continue
		}
		for _, r := range rows {
			r["dataset"] = dataset
		}
		all = append(all, rows...)
	}

	if failed == len(complianceDatasets) {
		return nil, lastErr
	}
	return all, nil
}

// FetchIdentities runs the cloud identities query over a 7-day window.
func (c *Client) FetchIdentities(ctx context.Context) ([]ports.RawRecord, error) {
	now := time.Now().UTC()
	body := map[string]any{
		"query": map[string]any{
			"queryText": "{ source { LW_CE_IDENTITIES I } return { I.* } }",
		},
		"arguments": []map[string]any{
			{"name": "StartTimeRange", "value": now.Add(-7 * 24 * time.Hour).Format("2006-01-02T15:04:05Z")},
			{"name": "EndTimeRange", "value": now.Format("2006-01-02T15:04:05Z")},
		},
	}
	resp, err := c.request(ctx, domain.DomainIdentities, http.MethodPost, queryExecutePath, body)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ensureToken returns a cached access token, acquiring a fresh one when
// absent or within a minute of expiry.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExp.Add(-time.Minute)) {
		return c.token, nil
	}

	payload, _ := json.Marshal(map[string]any{
		"keyId":      c.keyID,
		"expiryTime": tokenExpirySecs,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, bytes.NewReader(payload))
	if err != nil {
		return "", &domain.ConnectionError{Cause: err}
	}
	req.Header.Set("X-LW-UAKS", c.secret)
	req.Header.Set("Content-Type", "application/json")
	if c.subAccount != "" {
		req.Header.Set("Account-Name", c.subAccount)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &domain.ConnectionError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &domain.ConnectionError{
			Status: resp.StatusCode,
			Cause:  fmt.Errorf("token request rejected: %s", bodyExcerpt(resp.Body)),
		}
	}

	token, expiresAt, err := parseTokenResponse(resp.Body)
	if err != nil {
		return "", &domain.ConnectionError{Cause: err}
	}

	c.token = token
	c.tokenExp = expiresAt
	return c.token, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// request performs one API call with bounded retry for transient failures.
// A 401 triggers a single transparent re-authentication. Non-auth 4xx
// propagate immediately as a FetchError.
func (c *Client) request(ctx context.Context, dom domain.FindingDomain, method, path string, body any) (*apiResponse, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("upstream: encode request: %w", err)
		}
	}

	reauthed := false
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return nil, err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("upstream: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		if c.subAccount != "" {
			req.Header.Set("Account-Name", c.subAccount)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			// Network errors and timeouts are transient unless the
			// context itself is done.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt+1 < c.policy.MaxAttempts {
				if serr := c.sleep(ctx, c.policy.Delay(attempt, "")); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, &domain.ConnectionError{Cause: err}
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			resp.Body.Close()
			return &apiResponse{}, nil

		case resp.StatusCode == http.StatusUnauthorized && !reauthed:
			resp.Body.Close()
			c.invalidateToken()
			reauthed = true
			attempt-- // the re-auth pass does not consume a retry attempt
			continue

		case c.policy.RetryableStatus(resp.StatusCode):
			retryAfter := resp.Header.Get("Retry-After")
			excerpt := bodyExcerpt(resp.Body)
			resp.Body.Close()
			if attempt+1 < c.policy.MaxAttempts {
				if serr := c.sleep(ctx, c.policy.Delay(attempt, retryAfter)); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, &domain.FetchError{Tenant: c.baseURL, Domain: dom, Status: resp.StatusCode, Body: excerpt}

		case resp.StatusCode >= 400:
			excerpt := bodyExcerpt(resp.Body)
			resp.Body.Close()
			return nil, &domain.FetchError{Tenant: c.baseURL, Domain: dom, Status: resp.StatusCode, Body: excerpt}
		}

		var out apiResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("upstream: decode response: %w", err)
		}
		return &out, nil
	}

	return nil, &domain.FetchError{Tenant: c.baseURL, Domain: dom, Status: 0, Body: "retry budget exhausted"}
}

// paginated follows paging.urls.nextPage links up to maxPages pages.
func (c *Client) paginated(ctx context.Context, dom domain.FindingDomain, method, path string, body any, maxPages int) ([]ports.RawRecord, error) {
	resp, err := c.request(ctx, dom, method, path, body)
	if err != nil {
		return nil, err
	}
	all := resp.Data

	for page := 1; page < maxPages; page++ {
		next, err := nextPagePath(resp.Paging.Urls.NextPage)
		if err != nil {
			return nil, fmt.Errorf("upstream: bad nextPage link: %w", err)
		}
		if next == "" {
			break
		}
		resp, err = c.request(ctx, dom, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
	}

	return all, nil
}

// nextPagePath reduces a nextPage link to a path+query relative to the
// client's base URL. Absolute links keep only their request URI; requests
// never follow a link off the authenticated host.
func nextPagePath(link string) (string, error) {
	if link == "" {
		return "", nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || u.Host != "" {
		return u.RequestURI(), nil
	}
	return link, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseTokenResponse handles both the wrapped {"data":[{...}]} and the flat
// token response shapes.
func parseTokenResponse(r io.Reader) (string, time.Time, error) {
	var envelope struct {
		Data []struct {
			Token     string `json:"token"`
			ExpiresAt string `json:"expiresAt"`
		} `json:"data"`
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token response: %w", err)
	}

	token, expires := envelope.Token, envelope.ExpiresAt
	if len(envelope.Data) > 0 {
		token, expires = envelope.Data[0].Token, envelope.Data[0].ExpiresAt
	}
	if token == "" {
		return "", time.Time{}, fmt.Errorf("token response missing token")
	}

	exp, err := time.Parse(time.RFC3339, expires)
	if err != nil {
		// An unparseable expiry still yields a usable token; assume the
		// requested validity window.
		exp = time.Now().Add(tokenExpirySecs * time.Second)
	}
	return token, exp, nil
}

func timeFilter(window time.Duration) map[string]string {
	now := time.Now().UTC()
	return map[string]string{
		"startTime": now.Add(-window).Format("2006-01-02T15:04:05Z"),
		"endTime":   now.Format("2006-01-02T15:04:05Z"),
	}
}

func bodyExcerpt(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, bodyExcerptLimit))
	return string(b)
}
