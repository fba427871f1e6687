// ABOUTME: Bearer session token authentication middleware
// ABOUTME: Resolves the token to a server-side session and injects it into context

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mthomas/servicedesk-bff/models"
)

// SessionLookupFunc resolves a session token to its server-side session.
// A miss must return models.ErrNotAuthenticated.
type SessionLookupFunc func(ctx context.Context, token string) (*models.Session, error)

// contextKey is a private type for context keys to avoid collisions
type contextKey string

const sessionKey contextKey = "session"

// Auth returns middleware that requires a valid bearer session token.
// Requests without a token, or with a token no session store knows,
// are rejected with 401; the handler never runs.
func Auth(lookup SessionLookupFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				slog.Debug("Auth rejected: no bearer token", "path", r.URL.Path)
				writeJSONError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}

			session, err := lookup(r.Context(), token)
			if err != nil {
				if !errors.Is(err, models.ErrNotAuthenticated) {
					slog.Error("Session lookup failed", "path", r.URL.Path, "error", err)
					writeJSONError(w, "Session lookup failed", http.StatusInternalServerError)
					return
				}
				slog.Debug("Auth rejected: unknown session token", "path", r.URL.Path)
				writeJSONError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}

			slog.Debug("Auth: valid session", "path", r.URL.Path, "user", session.Identity.UserName)
			ctx := context.WithValue(r.Context(), sessionKey, session)
			next(w, r.WithContext(ctx))
		}
	}
}

// bearerToken extracts the token from the Authorization header.
// Returns "" when the header is absent or not bearer-shaped.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

// SessionFrom extracts the authenticated session from request context.
// Returns nil if the request did not pass the Auth middleware.
func SessionFrom(r *http.Request) *models.Session {
	session, ok := r.Context().Value(sessionKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}
