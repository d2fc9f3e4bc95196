package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seclens/seclens/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPolicy keeps test retries instant.
func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func tokenResponse(token string, ttl time.Duration) string {
	return fmt.Sprintf(`{"data":[{"token":%q,"expiresAt":%q}]}`,
		token, time.Now().Add(ttl).Format(time.RFC3339))
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := &Client{
		baseURL: srv.URL,
		keyID:   "KEYID",
		secret:  "SECRET",
		httpc:   srv.Client(),
		policy:  fastPolicy(),
	}
	return c, srv
}

func TestTokenAcquisitionAndCaching(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.Equal(t, "SECRET", r.Header.Get("X-LW-UAKS"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "KEYID", body["keyId"])
		fmt.Fprint(w, tokenResponse("tok-1", time.Hour))
	})
	mux.HandleFunc(alertsPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"data":[{"alertId":1}]}`)
	})

	c, _ := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		records, err := c.FetchAlerts(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 1)
	}

	assert.Equal(t, int32(1), tokenCalls.Load(), "token must be cached across calls")
}

func TestTokenRefreshOn401(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		n := tokenCalls.Add(1)
		fmt.Fprint(w, tokenResponse(fmt.Sprintf("tok-%d", n), time.Hour))
	})
	mux.HandleFunc(alertsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[{"alertId":7}]}`)
	})

	c, _ := newTestClient(t, mux)

	records, err := c.FetchAlerts(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), tokenCalls.Load(), "401 must trigger one re-authentication")
}

func TestTransientErrorsRetried(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(alertsPath, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"data":[{"alertId":1}]}`)
	})

	c, _ := newTestClient(t, mux)

	records, err := c.FetchAlerts(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(alertsPath, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"bad filter"}`)
	})

	c, _ := newTestClient(t, mux)

	_, err := c.FetchAlerts(context.Background())
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusBadRequest, fetchErr.Status)
	assert.Equal(t, domain.DomainAlerts, fetchErr.Domain)
	assert.Contains(t, fetchErr.Body, "bad filter")
	assert.Equal(t, int32(1), attempts.Load(), "4xx must not be retried")
}

func TestRetryBudgetExhausted(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(alertsPath, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	c, _ := newTestClient(t, mux)

	_, err := c.FetchAlerts(context.Background())
	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestNoContentYieldsEmptyPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(alertsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	c, _ := newTestClient(t, mux)

	records, err := c.FetchAlerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPaginationFollowsNextPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})

	var srv *httptest.Server
	mux.HandleFunc(hostVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"vulnId":"CVE-1"}],"paging":{"urls":{"nextPage":%q}}}`, srv.URL+"/page2")
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		fmt.Fprint(w, `{"data":[{"vulnId":"CVE-2"}]}`)
	})
	mux.HandleFunc(containerVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})

	c, s := newTestClient(t, mux)
	srv = s

	records, err := c.FetchVulns(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CVE-1", records[0]["vulnId"])
	assert.Equal(t, "CVE-2", records[1]["vulnId"])
}

func TestPaginationForeignHostNextPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})

	// The nextPage link points at a different host; only its path and
	// query may be followed, against the authenticated base URL.
	mux.HandleFunc(hostVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"vulnId":"CVE-1"}],"paging":{"urls":{"nextPage":"https://elsewhere.example.com/page2?startAt=abc"}}}`)
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("startAt"))
		fmt.Fprint(w, `{"data":[{"vulnId":"CVE-2"}]}`)
	})
	mux.HandleFunc(containerVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	})

	c, _ := newTestClient(t, mux)

	records, err := c.FetchVulns(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CVE-2", records[1]["vulnId"])
}

func TestVulnSearchMergesHostAndContainerRows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(hostVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["returns"], "machineTags")
		fmt.Fprint(w, `{"data":[{"vulnId":"CVE-HOST"}]}`)
	})
	mux.HandleFunc(containerVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["returns"], "imageId")
		fmt.Fprint(w, `{"data":[{"vulnId":"CVE-CONTAINER","imageId":"sha256:aa"}]}`)
	})

	c, _ := newTestClient(t, mux)

	records, err := c.FetchVulns(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "CVE-HOST", records[0]["vulnId"])
	assert.Equal(t, "CVE-CONTAINER", records[1]["vulnId"])
}

func TestVulnSearchPartialFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(hostVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"vulnId":"CVE-HOST"}]}`)
	})
	mux.HandleFunc(containerVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	c, _ := newTestClient(t, mux)

	records, err := c.FetchVulns(context.Background())
	require.NoError(t, err, "one failing search must not fail the fetch")
	require.Len(t, records, 1)
	assert.Equal(t, "CVE-HOST", records[0]["vulnId"])
}

func TestVulnSearchAllFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(hostVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc(containerVulnsPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	c, _ := newTestClient(t, mux)

	_, err := c.FetchVulns(context.Background())
	require.Error(t, err)
}

func TestCompliancePartialDatasetFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(compliancePath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["dataset"] == "GcpCompliance" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"data":[{"id":"rec-%s"}]}`, body["dataset"])
	})

	c, _ := newTestClient(t, mux)

	records, err := c.FetchCompliance(context.Background())
	require.NoError(t, err, "one failing dataset must not fail the fetch")
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotEqual(t, "GcpCompliance", rec["dataset"])
		assert.NotEmpty(t, rec["dataset"], "rows must be tagged with their dataset")
	}
}

func TestComplianceAllDatasetsFail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tokenResponse("tok", time.Hour))
	})
	mux.HandleFunc(compliancePath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	c, _ := newTestClient(t, mux)

	_, err := c.FetchCompliance(context.Background())
	require.Error(t, err)
}

func TestTestConnectionBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"invalid key"}`)
	})

	c, _ := newTestClient(t, mux)

	err := c.TestConnection(context.Background())
	var connErr *domain.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, http.StatusUnauthorized, connErr.Status)
	assert.Contains(t, connErr.Error(), "invalid key")
}

func TestFactoryNormalizesBaseURL(t *testing.T) {
	f := NewFactory(DefaultRetryPolicy())

	client := f.NewClient(domain.ConnectionParams{BaseURL: "acme.lacework.net", APIKeyID: "k", APISecret: "s"})
	c, ok := client.(*Client)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(c.baseURL, "https://"))
}
