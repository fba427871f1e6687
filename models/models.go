// ABOUTME: Core domain models for work items and the API response envelope
// ABOUTME: Defines table kinds, record references, and search result shapes

package models

import (
	"fmt"
	"regexp"
)

// TableKind identifies an upstream table holding work items.
type TableKind string

const (
	TableIncident      TableKind = "incident"
	TableTask          TableKind = "task"
	TableRequestedItem TableKind = "sc_req_item"
	TableChange        TableKind = "change_request"
	TableApproval      TableKind = "sysapproval_approver"
)

// knownTables is the whitelist of tables the proxy will touch.
var knownTables = map[TableKind]bool{
	TableIncident:      true,
	TableTask:          true,
	TableRequestedItem: true,
	TableChange:        true,
	TableApproval:      true,
}

// ParseTableKind validates a table name from a URL path segment.
func ParseTableKind(s string) (TableKind, error) {
	kind := TableKind(s)
	if !knownTables[kind] {
		return "", fmt.Errorf("unknown table: %q", s)
	}
	return kind, nil
}

// sysIDPattern matches upstream record identifiers (32 lowercase hex chars).
var sysIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// IsSysID reports whether s has the canonical record identifier shape.
func IsSysID(s string) bool {
	return sysIDPattern.MatchString(s)
}

// RecordRef points at one work item in the upstream store.
type RecordRef struct {
	Table TableKind `json:"table"`
	SysID string    `json:"sys_id"`
}

// Resolved reports whether the reference carries a canonical identifier
// rather than a display string still needing resolution.
func (r RecordRef) Resolved() bool {
	return IsSysID(r.SysID)
}

// APIResponse is the envelope returned to the UI for every endpoint.
type APIResponse struct {
	OK     bool      `json:"ok"`
	Result any       `json:"result,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

// APIError carries a human-readable failure message plus upstream detail.
type APIError struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// UserSummary is the typeahead search result shape for people.
type UserSummary struct {
	SysID    string `json:"sys_id"`
	UserName string `json:"user_name"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
}

// GroupSummary is the typeahead search result shape for groups.
type GroupSummary struct {
	SysID string `json:"sys_id"`
	Name  string `json:"name"`
}
