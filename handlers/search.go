// ABOUTME: Typeahead search handlers for identities and groups
// ABOUTME: Minimum query length is enforced server-side as well

package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mthomas/servicedesk-bff/models"
	"github.com/mthomas/servicedesk-bff/services"
)

// searchMinLength gates typeahead queries; shorter input would scan too
// much of the upstream tables.
const searchMinLength = 2

// searchLimit bounds typeahead result sets.
const searchLimit = 10

// SearchUsers returns people matching the query by login name, full
// name, or email.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	q, ok := h.searchTerm(w, r)
	if !ok {
		return
	}

	params := url.Values{}
	params.Set("sysparm_query", "active=true^user_nameLIKE"+q+"^ORnameLIKE"+q+"^ORemailLIKE"+q)
	params.Set("sysparm_fields", "sys_id,user_name,name,email")
	params.Set("sysparm_limit", strconv.Itoa(searchLimit))

	rows, err := h.client.TableQuery(r.Context(), session.Delegated, "sys_user", params)
	if err != nil {
		slog.Error("User search failed", "error", err)
		h.writeUpstreamError(w, "Search failed", err)
		return
	}

	users := make([]models.UserSummary, 0, len(rows))
	for _, row := range rows {
		users = append(users, models.UserSummary{
			SysID:    row.Get("sys_id").String(),
			UserName: row.Get("user_name").String(),
			Name:     row.Get("name").String(),
			Email:    row.Get("email").String(),
		})
	}

	h.writeResult(w, http.StatusOK, users)
}

// SearchGroups returns groups matching the query by name.
func (h *Handler) SearchGroups(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	q, ok := h.searchTerm(w, r)
	if !ok {
		return
	}

	params := url.Values{}
	params.Set("sysparm_query", "active=true^nameLIKE"+q)
	params.Set("sysparm_fields", "sys_id,name")
	params.Set("sysparm_limit", strconv.Itoa(searchLimit))

	rows, err := h.client.TableQuery(r.Context(), session.Delegated, "sys_user_group", params)
	if err != nil {
		slog.Error("Group search failed", "error", err)
		h.writeUpstreamError(w, "Search failed", err)
		return
	}

	groups := make([]models.GroupSummary, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, models.GroupSummary{
			SysID: row.Get("sys_id").String(),
			Name:  row.Get("name").String(),
		})
	}

	h.writeResult(w, http.StatusOK, groups)
}

// searchTerm extracts and validates the q parameter.
func (h *Handler) searchTerm(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := r.URL.Query().Get("q")
	if len(q) < searchMinLength {
		h.writeError(w, http.StatusBadRequest, "Query too short", "")
		return "", false
	}
	return services.SanitizeQueryTerm(q), true
}
