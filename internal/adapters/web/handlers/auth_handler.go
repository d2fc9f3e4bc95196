package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seclens/seclens/internal/adapters/web/middleware"
	"github.com/seclens/seclens/internal/core/domain"
	"github.com/seclens/seclens/internal/core/ports"
	"github.com/seclens/seclens/internal/core/services/auth"
)

// AuthHandler handles login, logout and session introspection.
type AuthHandler struct {
	Auth  ports.AuthService
	Audit ports.AuditService
}

func NewAuthHandler(authService ports.AuthService, auditService ports.AuditService) *AuthHandler {
	return &AuthHandler{Auth: authService, Audit: auditService}
}

// HandleLogin authenticates credentials and issues a session cookie.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	token, err := h.Auth.Login(r.Context(), creds)
	if err != nil {
		if errors.Is(err, auth.ErrRateLimitExceeded) {
			http.Error(w, "Too many attempts", http.StatusTooManyRequests)
			return
		}
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	h.Audit.Log(r.Context(), domain.ActionLogin, creds.Username, "user logged in")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// HandleLogout invalidates the session and clears the cookie.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie("auth_token"); err == nil {
		token = cookie.Value
	}

	if token != "" {
		h.Auth.Logout(r.Context(), token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:   "auth_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	h.Audit.Log(r.Context(), domain.ActionLogout, "", "user logged out")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"logged_out"}`))
}

// HandleMe returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
