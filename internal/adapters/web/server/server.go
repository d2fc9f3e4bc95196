package server

import (
	"context"
	"log"
	"net/http"
	"time"

	pdfreporting "github.com/seclens/seclens/internal/adapters/reporting"
	"github.com/seclens/seclens/internal/adapters/web/handlers"
	"github.com/seclens/seclens/internal/adapters/web/websocket"
	"github.com/seclens/seclens/internal/core/ports"
	"github.com/seclens/seclens/internal/core/services/aggregate"
	"github.com/seclens/seclens/internal/core/services/reporting"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr        string
	AuthService ports.AuthService
	WSManager   *websocket.WSManager

	AuthHandler     *handlers.AuthHandler
	TenantHandler   *handlers.TenantHandler
	SyncHandler     *handlers.SyncHandler
	FindingsHandler *handlers.FindingsHandler
	ReportHandler   *handlers.ReportHandler
	AuditHandler    *handlers.AuditHandler

	srv *http.Server
}

// Deps carries everything the server wires into its handlers.
type Deps struct {
	Tenants ports.TenantStore
	Vault   ports.Vault
	Sync    ports.SyncService
	Auth    ports.AuthService
	Audit   ports.AuditService

	Aggregator *aggregate.Aggregator
	Generator  *reporting.PostureReportGenerator
	WSManager  *websocket.WSManager
}

// NewServer creates a new web server.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		Addr:        addr,
		AuthService: deps.Auth,
		WSManager:   deps.WSManager,

		AuthHandler:     handlers.NewAuthHandler(deps.Auth, deps.Audit),
		TenantHandler:   handlers.NewTenantHandler(deps.Tenants, deps.Vault, deps.Sync, deps.Audit),
		SyncHandler:     handlers.NewSyncHandler(deps.Sync, deps.Audit),
		FindingsHandler: handlers.NewFindingsHandler(deps.Aggregator),
		ReportHandler:   handlers.NewReportHandler(deps.Generator, pdfreporting.NewPDFExporter(), deps.Audit),
		AuditHandler:    handlers.NewAuditHandler(deps.Audit),
	}
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	handler := SetupRoutes(s)

	// Instrument with OpenTelemetry
	instrumentedHandler := otelhttp.NewHandler(handler, "seclens-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumentedHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Println("Web server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Web server shutdown error: %v", err)
		}
	}()

	log.Printf("Web server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
