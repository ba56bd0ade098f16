package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lcalzada-xor/connd/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
	"github.com/lcalzada-xor/connd/internal/core/services/auth"
)

// AuthHandler handles login, logout and session introspection.
type AuthHandler struct {
	Service ports.AuthService
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service ports.AuthService) *AuthHandler {
	return &AuthHandler{Service: service}
}

// HandleLogin exchanges credentials for a session token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&creds); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	token, err := h.Service.Login(r.Context(), creds)
	if errors.Is(err, auth.ErrRateLimitExceeded) {
		http.Error(w, "Too many attempts", http.StatusTooManyRequests)
		return
	}
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_in", "token": token})
}

// HandleLogout ends the current session.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.Token(r); token != "" {
		_ = h.Service.Logout(r.Context(), token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:   middleware.SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleMe describes the authenticated caller.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := domain.CallerFrom(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}
