// ABOUTME: Health endpoint reporting upstream configuration and store backend
// ABOUTME: Liveness only; does not call upstream on every probe

package handlers

import "net/http"

// Health returns service health and which session store backs the proxy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":        "ok",
		"upstream":      "configured",
		"session_store": h.storeName,
	}
	if h.cfg == nil || h.cfg.UpstreamURL == "" {
		resp["upstream"] = "not_configured"
	}

	h.writeResult(w, http.StatusOK, resp)
}
