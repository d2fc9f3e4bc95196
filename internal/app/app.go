package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/seclens/seclens/internal/adapters/storage"
	"github.com/seclens/seclens/internal/adapters/upstream"
	webserver "github.com/seclens/seclens/internal/adapters/web/server"
	"github.com/seclens/seclens/internal/adapters/web/websocket"
	"github.com/seclens/seclens/internal/config"
	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/services/aggregate"
	"github.com/seclens/seclens/internal/core/services/audit"
	"github.com/seclens/seclens/internal/core/services/auth"
	"github.com/seclens/seclens/internal/core/services/reporting"
	"github.com/seclens/seclens/internal/core/services/syncer"
	"github.com/seclens/seclens/internal/core/services/vault"
	"github.com/seclens/seclens/internal/telemetry"
)

// Application holds the core components of the system. It acts as the
// Facade for the whole service, wiring storage, the credential vault,
// the sync orchestrator and the web server together.
type Application struct {
	Config *config.Config

	Store        *storage.SQLiteAdapter
	Vault        *vault.Vault
	Syncer       *syncer.Orchestrator
	AuthService  *auth.AuthService
	AuditService *audit.AuditService
	WebServer    *webserver.Server
	WSManager    *websocket.WSManager
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Store = store

	// The vault fails closed: no master key, no startup. Credentials are
	// never stored or handled in plaintext as a fallback.
	v, err := vault.New(app.Config.SecretKey)
	if err != nil {
		return fmt.Errorf("credential vault init failed: %w", err)
	}
	app.Vault = v

	// 2. Domain Services
	app.WSManager = websocket.NewWSManager()

	clients := upstream.NewFactory(upstream.DefaultRetryPolicy())
	app.Syncer = syncer.New(store, store, v, clients, syncer.Config{
		Workers:       app.Config.SyncWorkers,
		TenantTimeout: app.Config.SyncTimeout,
		Events:        app.WSManager,
	})

	agg := aggregate.New(store, store)

	app.AuditService = audit.NewAuditService(store)
	app.AuthService = auth.NewAuthService(store)

	if err := app.AuthService.EnsureDefaultAdmin(context.Background(), app.Config.AdminUser, app.Config.AdminPassword); err != nil {
		log.Printf("Warning: could not ensure default admin: %v", err)
	}

	// 3. Servers
	app.WebServer = webserver.NewServer(app.Config.Addr, webserver.Deps{
		Tenants:    store,
		Vault:      v,
		Sync:       app.Syncer,
		Auth:       app.AuthService,
		Audit:      app.AuditService,
		Aggregator: agg,
		Generator:  reporting.NewPostureReportGenerator(agg),
		WSManager:  app.WSManager,
	})

	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	return store, nil
}

// Run starts the application components and blocks until the context is
// cancelled or a component fails.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting SecLens components...")

	if app.Config.SyncInterval > 0 {
		go app.runScheduler(ctx)
	}

	errChan := make(chan error, 1)

	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	slog.Info("SecLens Ready.", "addr", app.Config.Addr)

	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case err := <-errChan:
		return err
	}

	return app.cleanup()
}

// runScheduler triggers a sync-all batch on a fixed interval. Tenants
// already in flight are skipped by the orchestrator, so an interval
// shorter than a sync run cannot stack work.
func (app *Application) runScheduler(ctx context.Context) {
	slog.Info("Sync scheduler started", "interval", app.Config.SyncInterval)
	ticker := time.NewTicker(app.Config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			outcomes := app.Syncer.SyncAll(ctx)
			succeeded := 0
			for _, o := range outcomes {
				if o.Success {
					succeeded++
				}
			}
			slog.Info("Scheduled sync completed", "tenants", len(outcomes), "succeeded", succeeded)
			app.AuditService.Log(ctx, domain.ActionSync, "all",
				fmt.Sprintf("scheduled sync: %d/%d tenants succeeded", succeeded, len(outcomes)))
		}
	}
}

func (app *Application) cleanup() error {
	slog.Info("Cleaning up resources...")

	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			log.Printf("Error closing storage: %v", err)
		}
	}

	return nil
}
