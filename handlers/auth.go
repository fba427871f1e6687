// ABOUTME: Login, logout, and current-user handlers
// ABOUTME: The session token is the only secret returned to the browser

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mthomas/servicedesk-bff/models"
)

// Login authenticates against the upstream store and creates a
// server-side session. Returns the token plus the identity and group
// set used for query scoping.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	if req.Username == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "Username and password are required", "")
		return
	}

	session, err := h.sessions.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			slog.Warn("Login rejected", "username", req.Username)
			h.writeError(w, http.StatusUnauthorized, "Invalid credentials", "")
			return
		}
		slog.Error("Login failed", "username", req.Username, "error", err)
		h.writeUpstreamError(w, "Login failed", err)
		return
	}

	h.writeResult(w, http.StatusOK, models.LoginResponse{
		Token:    session.Token,
		Identity: session.Identity,
		Groups:   session.Groups,
	})
}

// Logout deletes the server-side session for the presented token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token != "" && token != authHeader {
		if err := h.sessions.Logout(r.Context(), token); err != nil {
			slog.Warn("Logout: session delete failed", "error", err)
		}
	}

	h.writeResult(w, http.StatusOK, map[string]bool{"logged_out": true})
}

// Me returns the authenticated identity and groups for the session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	h.writeResult(w, http.StatusOK, map[string]any{
		"identity": session.Identity,
		"groups":   session.Groups,
	})
}
