// ABOUTME: Work item handlers: scoped lists, detail, update, and activity
// ABOUTME: Every upstream read is scoped by the session's identity and groups

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mthomas/servicedesk-bff/models"
)

// listLimit bounds every list query.
const listLimit = 100

// scopeQuery builds the row-visibility condition for a session: items
// assigned to the user, to one of the user's groups, or unassigned.
// Scoping happens here, in the query, regardless of which credential
// performs the upstream call.
func scopeQuery(session *models.Session) string {
	q := "assigned_to=" + session.Identity.SysID
	if len(session.Groups) > 0 {
		q += "^ORassignment_groupIN" + strings.Join(session.Groups, ",")
	}
	q += "^ORassigned_toISEMPTY"
	return q
}

// listRecords runs a scoped list query and writes the rows.
func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request, table models.TableKind, query string) {
	session := h.session(r)

	params := url.Values{}
	params.Set("sysparm_query", query)
	params.Set("sysparm_display_value", "all")
	params.Set("sysparm_limit", strconv.Itoa(listLimit))

	rows, err := h.client.TableQuery(r.Context(), session.Delegated, string(table), params)
	if err != nil {
		slog.Error("List query failed", "table", table, "error", err)
		h.writeUpstreamError(w, "Failed to list records", err)
		return
	}

	h.writeResult(w, http.StatusOK, rawRows(rows))
}

// ListIncidents returns open incidents visible to the caller, excluding
// terminal states (6 Resolved, 7 Closed).
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	query := scopeQuery(session) + "^stateNOT IN6,7^ORDERBYDESCsys_updated_on"
	h.listRecords(w, r, models.TableIncident, query)
}

// ListTasks returns active generic tasks visible to the caller.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	query := scopeQuery(session) + "^active=true^ORDERBYDESCsys_updated_on"
	h.listRecords(w, r, models.TableTask, query)
}

// ListApprovals returns the caller's pending approvals.
func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	query := "approver=" + session.Identity.SysID + "^state=requested^ORDERBYDESCsys_updated_on"
	h.listRecords(w, r, models.TableApproval, query)
}

// GetRecord returns one work item with all display values.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	ref, ok := h.recordRef(w, r)
	if !ok {
		return
	}

	params := url.Values{}
	params.Set("sysparm_display_value", "all")

	row, err := h.client.GetRecord(r.Context(), session.Delegated, string(ref.Table), ref.SysID, params)
	if err != nil {
		slog.Error("Record fetch failed", "table", ref.Table, "sys_id", ref.SysID, "error", err)
		h.writeUpstreamError(w, "Failed to fetch record", err)
		return
	}

	h.writeResult(w, http.StatusOK, json.RawMessage(row.Raw))
}

// UpdateRecord applies a partial update through the update pipeline.
// On failure the envelope still reports which of the two writes
// applied, since the pipeline does not roll back.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	ref, ok := h.recordRef(w, r)
	if !ok {
		return
	}

	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if len(fields) == 0 {
		h.writeError(w, http.StatusBadRequest, "No fields to update", "")
		return
	}

	result, err := h.updater.Apply(r.Context(), session.Delegated, ref, fields, session.Identity.UserName)
	if err != nil {
		slog.Error("Update failed", "table", ref.Table, "sys_id", ref.SysID, "error", err)

		detail := err.Error()
		var upErr *models.UpdateError
		if errors.As(err, &upErr) {
			var ue *models.UpstreamError
			if errors.As(upErr.Err, &ue) {
				detail = ue.Detail
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(models.APIResponse{
			OK:     false,
			Result: result,
			Error:  &models.APIError{Message: "Update failed", Detail: detail},
		})
		return
	}

	h.writeResult(w, http.StatusOK, result)
}

// Activity returns the reconciled plain-text narrative for a work item.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	ref, ok := h.recordRef(w, r)
	if !ok {
		return
	}

	narrative, err := h.reconciler.BuildNarrative(r.Context(), session.Delegated, ref)
	if err != nil {
		slog.Error("Activity fetch failed", "table", ref.Table, "sys_id", ref.SysID, "error", err)
		h.writeError(w, http.StatusBadGateway, "Activity fetch failed", err.Error())
		return
	}

	h.writeResult(w, http.StatusOK, narrative)
}

// recordRef parses and validates the {table}/{id} path segments.
func (h *Handler) recordRef(w http.ResponseWriter, r *http.Request) (models.RecordRef, bool) {
	table, err := models.ParseTableKind(r.PathValue("table"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Unknown table", err.Error())
		return models.RecordRef{}, false
	}

	sysID := r.PathValue("id")
	if !models.IsSysID(sysID) {
		h.writeError(w, http.StatusBadRequest, "Invalid record identifier", "")
		return models.RecordRef{}, false
	}

	return models.RecordRef{Table: table, SysID: sysID}, true
}

// rawRows converts upstream rows to raw JSON for the envelope.
func rawRows(rows []gjson.Result) []json.RawMessage {
	out := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		out[i] = json.RawMessage(row.Raw)
	}
	return out
}
