// ABOUTME: HTTP handler plumbing for the service desk proxy API
// ABOUTME: Owns the service wiring and the response envelope helpers

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mthomas/servicedesk-bff/cache"
	"github.com/mthomas/servicedesk-bff/config"
	"github.com/mthomas/servicedesk-bff/middleware"
	"github.com/mthomas/servicedesk-bff/models"
	"github.com/mthomas/servicedesk-bff/services"
)

// Handler carries the wired services behind the HTTP API.
type Handler struct {
	cfg        *config.Config
	client     *services.Client
	sessions   *services.SessionService
	resolver   *services.Resolver
	reconciler *services.Reconciler
	updater    *services.UpdatePipeline
	storeName  string
}

// NewHandler wires the service graph from configuration. The session
// store is injected so deployments can choose memory or Redis and tests
// can substitute doubles.
func NewHandler(cfg *config.Config, store services.SessionStore, storeName string) *Handler {
	client := services.NewClient(services.ClientOptions{
		BaseURL:       cfg.UpstreamURL,
		Timeout:       time.Duration(cfg.UpstreamTimeout) * time.Second,
		Retries:       cfg.UpstreamRetries,
		SkipSSLVerify: cfg.UpstreamSkipSSLVerify,
		Proxy:         cfg.UpstreamProxy,
	})

	serviceAccount := models.Credential{
		Username: cfg.ServiceAccountUser,
		Password: cfg.ServiceAccountPassword,
	}

	names := cache.New(time.Duration(cfg.NameCacheTTL) * time.Second)
	resolver := services.NewResolver(client, names, time.Duration(cfg.NameCacheTTL)*time.Second)

	return &Handler{
		cfg:    cfg,
		client: client,
		sessions: services.NewSessionService(services.SessionOptions{
			Store:             store,
			Client:            client,
			ServiceAccount:    serviceAccount,
			UseServiceAccount: cfg.UseServiceAccount,
			TTL:               time.Duration(cfg.SessionTTL) * time.Second,
		}),
		resolver:   resolver,
		reconciler: services.NewReconciler(client, resolver, serviceAccount),
		updater:    services.NewUpdatePipeline(client, resolver),
		storeName:  storeName,
	}
}

// SessionLookup exposes session resolution for the auth middleware.
func (h *Handler) SessionLookup() middleware.SessionLookupFunc {
	return h.sessions.Lookup
}

// session returns the authenticated session injected by the middleware.
func (h *Handler) session(r *http.Request) *models.Session {
	return middleware.SessionFrom(r)
}

// writeResult writes a success envelope.
func (h *Handler) writeResult(w http.ResponseWriter, status int, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIResponse{OK: true, Result: result})
}

// writeError writes a failure envelope.
func (h *Handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.APIResponse{
		OK:    false,
		Error: &models.APIError{Message: message, Detail: detail},
	})
}

// writeUpstreamError maps a service-layer failure onto the envelope,
// surfacing upstream detail when available.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, message string, err error) {
	var ue *models.UpstreamError
	if errors.As(err, &ue) {
		status := http.StatusBadGateway
		if ue.Status >= 400 && ue.Status < 500 {
			status = ue.Status
		}
		h.writeError(w, status, message, ue.Detail)
		return
	}
	h.writeError(w, http.StatusBadGateway, message, err.Error())
}
