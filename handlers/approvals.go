// ABOUTME: Approval detail and decision handlers
// ABOUTME: Forwards terminal approve/reject decisions to the upstream store

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mthomas/servicedesk-bff/models"
)

// decisionStates maps the API decision to the upstream approval state.
var decisionStates = map[string]string{
	"approve": "approved",
	"reject":  "rejected",
}

// ApprovalDetail returns one approval record with all display values.
func (h *Handler) ApprovalDetail(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	sysID := r.PathValue("id")
	if !models.IsSysID(sysID) {
		h.writeError(w, http.StatusBadRequest, "Invalid approval identifier", "")
		return
	}

	params := url.Values{}
	params.Set("sysparm_display_value", "all")

	row, err := h.client.GetRecord(r.Context(), session.Delegated, string(models.TableApproval), sysID, params)
	if err != nil {
		slog.Error("Approval fetch failed", "sys_id", sysID, "error", err)
		h.writeUpstreamError(w, "Failed to fetch approval", err)
		return
	}

	h.writeResult(w, http.StatusOK, json.RawMessage(row.Raw))
}

// DecideApproval submits a terminal approve/reject decision. The state
// write and the optional comment ride through the update pipeline, so
// the comment picks up the same provenance stamp as any journal note.
func (h *Handler) DecideApproval(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	sysID := r.PathValue("id")
	if !models.IsSysID(sysID) {
		h.writeError(w, http.StatusBadRequest, "Invalid approval identifier", "")
		return
	}

	var req models.ApprovalDecision
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	state, ok := decisionStates[strings.ToLower(req.Decision)]
	if !ok {
		h.writeError(w, http.StatusBadRequest, "Decision must be approve or reject", "")
		return
	}

	ref := models.RecordRef{Table: models.TableApproval, SysID: sysID}
	fields := map[string]string{"state": state}
	if strings.TrimSpace(req.Comment) != "" {
		fields["comments"] = req.Comment
	}

	result, err := h.updater.Apply(r.Context(), session.Delegated, ref, fields, session.Identity.UserName)
	if err != nil {
		slog.Error("Approval decision failed", "sys_id", sysID, "decision", req.Decision, "error", err)
		h.writeUpstreamError(w, "Failed to submit decision", err)
		return
	}

	h.writeResult(w, http.StatusOK, result)
}
