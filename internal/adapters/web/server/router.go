package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seclens/seclens/internal/adapters/web/middleware"
	"github.com/seclens/seclens/internal/core/domain"
)

// SetupRoutes wires the API surface. Reads need a session; tenant
// mutations and sync triggers additionally require the admin role.
func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// Rate limiter on the login endpoint
	loginLimiter := middleware.NewRateLimiter(5, 1*time.Minute)

	// Public API
	r.Handle("/api/login",
		middleware.RateLimitMiddleware(loginLimiter)(http.HandlerFunc(s.AuthHandler.HandleLogin))).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", s.AuthHandler.HandleLogout).Methods(http.MethodPost)

	auth := middleware.AuthMiddleware(s.AuthService)
	requireAdmin := middleware.RoleMiddleware(domain.RoleAdmin)

	protect := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}
	protectAdmin := func(h http.HandlerFunc) http.Handler {
		return auth(requireAdmin(h))
	}

	// Session
	r.Handle("/api/me", protect(s.AuthHandler.HandleMe)).Methods(http.MethodGet)

	// WebSocket endpoint (protected)
	r.Handle("/ws", protect(s.WSManager.HandleWebSocket))

	// Tenant configuration
	r.Handle("/api/tenants", protect(s.TenantHandler.HandleList)).Methods(http.MethodGet)
	r.Handle("/api/tenants", protectAdmin(s.TenantHandler.HandleCreate)).Methods(http.MethodPost)
	r.Handle("/api/tenants/test", protectAdmin(s.TenantHandler.HandleTestUnsaved)).Methods(http.MethodPost)
	r.Handle("/api/tenants/{id:[0-9]+}", protect(s.TenantHandler.HandleGet)).Methods(http.MethodGet)
	r.Handle("/api/tenants/{id:[0-9]+}", protectAdmin(s.TenantHandler.HandleUpdate)).Methods(http.MethodPut)
	r.Handle("/api/tenants/{id:[0-9]+}", protectAdmin(s.TenantHandler.HandleDelete)).Methods(http.MethodDelete)
	r.Handle("/api/tenants/{id:[0-9]+}/test", protectAdmin(s.TenantHandler.HandleTestSaved)).Methods(http.MethodPost)

	// Sync triggers
	r.Handle("/api/sync", protectAdmin(s.SyncHandler.HandleSyncAll)).Methods(http.MethodPost)
	r.Handle("/api/tenants/{id:[0-9]+}/sync", protectAdmin(s.SyncHandler.HandleSyncTenant)).Methods(http.MethodPost)

	// Aggregated views
	r.Handle("/api/dashboard", protect(s.FindingsHandler.HandleDashboard)).Methods(http.MethodGet)
	r.Handle("/api/alerts", protect(s.FindingsHandler.HandleAlerts)).Methods(http.MethodGet)
	r.Handle("/api/vulnerabilities", protect(s.FindingsHandler.HandleVulnerabilities)).Methods(http.MethodGet)
	r.Handle("/api/compliance", protect(s.FindingsHandler.HandleCompliance)).Methods(http.MethodGet)
	r.Handle("/api/identities", protect(s.FindingsHandler.HandleIdentities)).Methods(http.MethodGet)

	// Reports
	r.Handle("/api/reports/posture", protect(s.ReportHandler.HandlePreview)).Methods(http.MethodGet)
	r.Handle("/api/reports/posture/download", protect(s.ReportHandler.HandleDownload)).Methods(http.MethodGet)

	// Audit trail
	r.Handle("/api/audit-logs", protect(s.AuditHandler.HandleGetLogs)).Methods(http.MethodGet)

	// Metrics endpoint (protected - requires authentication)
	r.Handle("/metrics", protect(func(w http.ResponseWriter, req *http.Request) {
		promhttp.Handler().ServeHTTP(w, req)
	})).Methods(http.MethodGet)

	return r
}
