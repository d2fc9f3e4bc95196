package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
)

// TenantHandler handles tenant configuration CRUD and connection tests.
// Upstream secrets pass through here exactly once, on create or rotate,
// and are encrypted before they reach storage.
type TenantHandler struct {
	Tenants ports.TenantStore
	Vault   ports.Vault
	Sync    ports.SyncService
	Audit   ports.AuditService
}

func NewTenantHandler(tenants ports.TenantStore, vault ports.Vault, syncService ports.SyncService, auditService ports.AuditService) *TenantHandler {
	return &TenantHandler{Tenants: tenants, Vault: vault, Sync: syncService, Audit: auditService}
}

// tenantRequest is the create/update body. APISecret is plaintext in
// flight only; responses never echo it back.
type tenantRequest struct {
	Name       string `json:"name"`
	Account    string `json:"account"`
	APIKeyID   string `json:"api_key_id"`
	APISecret  string `json:"api_secret"`
	SubAccount string `json:"sub_account"`
	Enabled    *bool  `json:"enabled"`
}

// HandleList returns all configured tenants, including disabled ones.
func (h *TenantHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Tenants.ListTenants(r.Context(), false)
	if err != nil {
		http.Error(w, "Failed to list tenants", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

// HandleCreate registers a new tenant. The API secret is encrypted before
// persistence; a vault failure aborts the create.
func (h *TenantHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if req.APISecret == "" {
		http.Error(w, "api_secret is required", http.StatusBadRequest)
		return
	}

	secretEnc, err := h.Vault.Encrypt(req.APISecret)
	if err != nil {
		http.Error(w, "Credential encryption failed", http.StatusInternalServerError)
		return
	}

	tenant, err := domain.NewTenant(req.Name, req.Account, req.APIKeyID, secretEnc, req.SubAccount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Tenants.CreateTenant(r.Context(), tenant); err != nil {
		http.Error(w, "Failed to create tenant: "+err.Error(), http.StatusConflict)
		return
	}

	h.Audit.Log(r.Context(), domain.ActionTenantCreate, tenant.Name, fmt.Sprintf("tenant %d created", tenant.ID))
	writeJSON(w, http.StatusCreated, tenant)
}

// HandleGet returns a single tenant.
func (h *TenantHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

// HandleUpdate changes tenant configuration. An empty api_secret keeps the
// stored credential; a non-empty one is re-encrypted and replaces it.
func (h *TenantHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantFromPath(w, r)
	if !ok {
		return
	}

	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	if req.Name != "" {
		tenant.Name = req.Name
	}
	if req.Account != "" {
		tenant.Account = req.Account
		tenant.BaseURL = domain.BuildBaseURL(req.Account)
	}
	if req.APIKeyID != "" {
		tenant.APIKeyID = req.APIKeyID
	}
	if req.SubAccount != "" {
		tenant.SubAccount = req.SubAccount
	}
	if req.Enabled != nil {
		tenant.Enabled = *req.Enabled
	}
	if req.APISecret != "" {
		secretEnc, err := h.Vault.Encrypt(req.APISecret)
		if err != nil {
			http.Error(w, "Credential encryption failed", http.StatusInternalServerError)
			return
		}
		tenant.APISecretEnc = secretEnc
	}

	if err := h.Tenants.UpdateTenant(r.Context(), tenant); err != nil {
		http.Error(w, "Failed to update tenant: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.Audit.Log(r.Context(), domain.ActionTenantUpdate, tenant.Name, fmt.Sprintf("tenant %d updated", tenant.ID))
	writeJSON(w, http.StatusOK, tenant)
}

// HandleDelete removes a tenant and its snapshots.
func (h *TenantHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantFromPath(w, r)
	if !ok {
		return
	}

	if err := h.Tenants.DeleteTenant(r.Context(), tenant.ID); err != nil {
		http.Error(w, "Failed to delete tenant: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.Audit.Log(r.Context(), domain.ActionTenantDelete, tenant.Name, fmt.Sprintf("tenant %d deleted", tenant.ID))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"deleted"}`))
}

// HandleTestSaved verifies a saved tenant's stored credentials against the
// upstream.
func (h *TenantHandler) HandleTestSaved(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenantFromPath(w, r)
	if !ok {
		return
	}

	success, message := h.Sync.TestTenant(r.Context(), tenant.ID)
	h.Audit.Log(r.Context(), domain.ActionTestConn, tenant.Name, message)
	writeJSON(w, http.StatusOK, map[string]any{"success": success, "message": message})
}

// HandleTestUnsaved verifies connection parameters before they are saved.
// The plaintext secret lives in the request only.
func (h *TenantHandler) HandleTestUnsaved(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if req.Account == "" || req.APIKeyID == "" || req.APISecret == "" {
		http.Error(w, "account, api_key_id and api_secret are required", http.StatusBadRequest)
		return
	}

	success, message := h.Sync.TestConnection(r.Context(), domain.ConnectionParams{
		BaseURL:    domain.BuildBaseURL(req.Account),
		APIKeyID:   req.APIKeyID,
		APISecret:  req.APISecret,
		SubAccount: req.SubAccount,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": success, "message": message})
}

func (h *TenantHandler) tenantFromPath(w http.ResponseWriter, r *http.Request) (*domain.Tenant, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid tenant id", http.StatusBadRequest)
		return nil, false
	}

	tenant, err := h.Tenants.GetTenant(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to load tenant", http.StatusInternalServerError)
		}
		return nil, false
	}
	return tenant, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
