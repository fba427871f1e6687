// ABOUTME: Tests for the activity reconciler
// ABOUTME: Covers feed merging, alias de-duplication, value unwrapping, and failure semantics

package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mthomas/servicedesk-bff/cache"
	"github.com/mthomas/servicedesk-bff/models"
)

const testRecordID = "9c573169c611228700193229fff72400"

// activityUpstream serves canned journal and audit feeds and records the
// credential used for the audit feed.
type activityUpstream struct {
	journalBody string
	auditBody   string
	auditStatus int
	auditUser   string
}

func (u *activityUpstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/now/table/sys_journal_field":
			w.Write([]byte(u.journalBody))
		case "/api/now/table/sys_audit":
			u.auditUser, _, _ = r.BasicAuth()
			if u.auditStatus != 0 {
				w.WriteHeader(u.auditStatus)
				return
			}
			w.Write([]byte(u.auditBody))
		case "/api/now/table/sys_user/5137153cc611227c000bbd1bd8cd2005":
			w.Write([]byte(`{"result":{"name":"Jane Doe"}}`))
		case "/api/now/table/sys_user_group/287ebd7da9fe198100f92cc8d1d2154e":
			w.Write([]byte(`{"result":{"name":"Network Ops"}}`))
		default:
			t.Errorf("Unexpected upstream path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestReconciler(srv *httptest.Server) *Reconciler {
	client := NewClient(ClientOptions{BaseURL: srv.URL, Timeout: 2 * time.Second})
	resolver := NewResolver(client, cache.New(time.Minute), time.Minute)
	return NewReconciler(client, resolver, models.Credential{Username: "svc.bff", Password: "svcpw"})
}

func incidentRef() models.RecordRef {
	return models.RecordRef{Table: models.TableIncident, SysID: testRecordID}
}

func TestEntries_MergesBothFeedsNewestFirst(t *testing.T) {
	u := &activityUpstream{
		journalBody: `{"result":[
			{"sys_created_on":{"display_value":"2026-08-29 10:30:00"},"sys_created_by":{"display_value":"jdoe"},"element":{"value":"work_notes"},"value":{"display_value":"checking the switch"}}
		]}`,
		auditBody: `{"result":[
			{"sys_created_on":"2026-08-29 11:00:00","user":"rsmith","fieldname":"priority","oldvalue":"3","newvalue":"2"},
			{"sys_created_on":"2026-08-29 09:00:00","user":"jdoe","fieldname":"state","oldvalue":"1","newvalue":"2"}
		]}`,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	entries, err := rc.Entries(context.Background(), models.Credential{Username: "jdoe"}, incidentRef())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	want := []string{"2026-08-29 11:00:00", "2026-08-29 10:30:00", "2026-08-29 09:00:00"}
	for i, ts := range want {
		if entries[i].Timestamp != ts {
			t.Errorf("entries[%d].Timestamp = %q, want %q", i, entries[i].Timestamp, ts)
		}
	}
	if entries[1].Kind != models.ActivityJournal || entries[1].Subtype != models.JournalWorkNote {
		t.Errorf("entries[1] = %+v, want work note", entries[1])
	}
	if u.auditUser != "svc.bff" {
		t.Errorf("Audit feed fetched as %q, want the elevated credential", u.auditUser)
	}
}

func TestEntries_OrdersByRawTimestampNotDisplayForm(t *testing.T) {
	// With display values requested, sys_created_on arrives as an object
	// whose display form is locale-formatted. The raw value sub-key must
	// drive ordering, or a newer entry sorts behind an older one.
	u := &activityUpstream{
		journalBody: `{"result":[
			{"sys_created_on":{"display_value":"08/29/2026 11:00:00","value":"2026-08-29 11:00:00"},"sys_created_by":"jdoe","element":"work_notes","value":"newest entry"}
		]}`,
		auditBody: `{"result":[
			{"sys_created_on":{"display_value":"08/29/2026 09:00:00","value":"2026-08-29 09:00:00"},"user":"jdoe","fieldname":"state","oldvalue":"1","newvalue":"2"}
		]}`,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	entries, err := rc.Entries(context.Background(), models.Credential{}, incidentRef())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Kind != models.ActivityJournal {
		t.Errorf("entries[0] = %+v, want the newer journal entry first", entries[0])
	}
	if entries[0].Timestamp != "2026-08-29 11:00:00" {
		t.Errorf("entries[0].Timestamp = %q, want the canonical raw form", entries[0].Timestamp)
	}
	if entries[1].Timestamp != "2026-08-29 09:00:00" {
		t.Errorf("entries[1].Timestamp = %q, want the canonical raw form", entries[1].Timestamp)
	}
}

func TestEntries_AliasDedupMatchesAcrossTimestampShapes(t *testing.T) {
	// The primary row carries an object-shaped timestamp and the alias a
	// bare one; de-duplication must compare canonical values.
	u := &activityUpstream{
		journalBody: `{"result":[]}`,
		auditBody: `{"result":[
			{"sys_created_on":{"display_value":"08/29/2026 09:00:00","value":"2026-08-29 09:00:00"},"user":"jdoe","fieldname":"state","oldvalue":"2","newvalue":"6"},
			{"sys_created_on":"2026-08-29 09:00:00","user":"jdoe","fieldname":"incident_state","oldvalue":"2","newvalue":"6"}
		]}`,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	entries, err := rc.Entries(context.Background(), models.Credential{}, incidentRef())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1: %+v", len(entries), entries)
	}
	if entries[0].Field != "state" {
		t.Errorf("entries[0].Field = %q, want state", entries[0].Field)
	}
}

func TestEntries_StatusAliasDeduplicated(t *testing.T) {
	u := &activityUpstream{
		journalBody: `{"result":[]}`,
		auditBody: `{"result":[
			{"sys_created_on":"2026-08-29 09:00:00","user":"jdoe","fieldname":"state","oldvalue":"2","newvalue":"6"},
			{"sys_created_on":"2026-08-29 09:00:00","user":"jdoe","fieldname":"incident_state","oldvalue":"2","newvalue":"6"},
			{"sys_created_on":"2026-08-28 15:00:00","user":"jdoe","fieldname":"incident_state","oldvalue":"1","newvalue":"2"}
		]}`,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	entries, err := rc.Entries(context.Background(), models.Credential{}, incidentRef())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	// The alias entry at 09:00:00 is a duplicate of the primary status
	// change; the standalone alias entry at 15:00:00 survives.
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2: %+v", len(entries), entries)
	}
	if entries[0].Field != "state" {
		t.Errorf("entries[0].Field = %q, want state", entries[0].Field)
	}
	if entries[1].Field != "incident_state" {
		t.Errorf("entries[1].Field = %q, want the surviving alias entry", entries[1].Field)
	}
}

func TestEntries_JournalFieldsSkippedInAuditFeed(t *testing.T) {
	u := &activityUpstream{
		journalBody: `{"result":[
			{"sys_created_on":"2026-08-29 10:00:00","sys_created_by":"jdoe","element":"comments","value":"customer called back"}
		]}`,
		auditBody: `{"result":[
			{"sys_created_on":"2026-08-29 10:00:00","user":"jdoe","fieldname":"comments","oldvalue":"","newvalue":"customer called back"},
			{"sys_created_on":"2026-08-29 10:00:00","user":"jdoe","fieldname":"work_notes","oldvalue":"","newvalue":"checking"}
		]}`,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	entries, err := rc.Entries(context.Background(), models.Credential{}, incidentRef())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want only the journal entry", len(entries))
	}
	if entries[0].Kind != models.ActivityJournal || entries[0].Subtype != models.JournalComment {
		t.Errorf("entries[0] = %+v, want comment", entries[0])
	}
}

func TestEntries_EmptyJournalValuesDropped(t *testing.T) {
	u := &activityUpstream{
		journalBody: `{"result":[
			{"sys_created_on":"2026-08-29 10:00:00","sys_created_by":"jdoe","element":"comments","value":"  "},
			{"sys_created_on":"2026-08-29 09:00:00","sys_created_by":"jdoe","element":"comments","value":null}
		]}`,
		auditBody: `{"result":[]}`,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	entries, err := rc.Entries(context.Background(), models.Credential{}, incidentRef())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestEntries_AssignmentValuesResolvedAndEmptyPlaceholder(t *testing.T) {
	u := &activityUpstream{
		journalBody: `{"result":[]}`,
		auditBody: `{"result":[
			{"sys_created_on":"2026-08-29 10:00:00","user":"rsmith","fieldname":"assigned_to","oldvalue":"5137153cc611227c000bbd1bd8cd2005","newvalue":""},
			{"sys_created_on":"2026-08-29 09:00:00","user":"rsmith","fieldname":"assignment_group","oldvalue":"","newvalue":"287ebd7da9fe198100f92cc8d1d2154e"}
		]}`,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	entries, err := rc.Entries(context.Background(), models.Credential{}, incidentRef())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	if entries[0].OldValue != "Jane Doe" {
		t.Errorf("assigned_to old = %q, want resolved name", entries[0].OldValue)
	}
	if entries[0].NewValue != "-" {
		t.Errorf("assigned_to new = %q, want placeholder", entries[0].NewValue)
	}
	if entries[1].NewValue != "Network Ops" {
		t.Errorf("assignment_group new = %q, want resolved group name", entries[1].NewValue)
	}
	if entries[1].OldValue != "-" {
		t.Errorf("assignment_group old = %q, want placeholder", entries[1].OldValue)
	}
}

func TestEntries_AuditFailureFailsWholeOperation(t *testing.T) {
	u := &activityUpstream{
		journalBody: `{"result":[
			{"sys_created_on":"2026-08-29 10:00:00","sys_created_by":"jdoe","element":"comments","value":"fine"}
		]}`,
		auditStatus: http.StatusForbidden,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	_, err := rc.Entries(context.Background(), models.Credential{}, incidentRef())

	var fe *models.ActivityFetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected ActivityFetchError, got %v", err)
	}
	if fe.Ref.SysID != testRecordID {
		t.Errorf("Ref.SysID = %q", fe.Ref.SysID)
	}
}

func TestBuildNarrative_RendersProvenanceTags(t *testing.T) {
	u := &activityUpstream{
		journalBody: `{"result":[
			{"sys_created_on":"2026-08-29 10:30:00","sys_created_by":"jdoe","element":"work_notes","value":"checking the switch"}
		]}`,
		auditBody: `{"result":[
			{"sys_created_on":"2026-08-29 09:00:00","user":"jdoe","fieldname":"state","oldvalue":"1","newvalue":"2"}
		]}`,
	}
	srv := u.server(t)
	defer srv.Close()

	rc := newTestReconciler(srv)
	narrative, err := rc.BuildNarrative(context.Background(), models.Credential{}, incidentRef())
	if err != nil {
		t.Fatalf("BuildNarrative failed: %v", err)
	}

	blocks := strings.Split(narrative, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("Narrative has %d blocks, want 2:\n%s", len(blocks), narrative)
	}
	if blocks[0] != "checking the switch\n#Work note by jdoe at 2026-08-29 10:30:00" {
		t.Errorf("Journal block = %q", blocks[0])
	}
	if blocks[1] != "state: 1 → 2\n#Changed by jdoe at 2026-08-29 09:00:00" {
		t.Errorf("Field block = %q", blocks[1])
	}
}

func TestUnwrapValue(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"bare string", `"In Progress"`, "In Progress"},
		{"bare number", `2`, "2"},
		{"null", `null`, ""},
		{"display value object", `{"display_value":"Jane Doe","value":"5137153cc611227c000bbd1bd8cd2005"}`, "Jane Doe"},
		{"value only object", `{"value":"abc123"}`, "abc123"},
		{"named reference", `{"name":"Network Ops","sys_id":"287e"}`, "Network Ops"},
		{"user reference", `{"user_name":"jdoe"}`, "jdoe"},
		{"nested display value", `{"display_value":{"value":"deep"}}`, "deep"},
		{"single unknown key", `{"link":"https://upstream/api/now/table/sys_user/abc"}`, "https://upstream/api/now/table/sys_user/abc"},
		{"empty display falls through", `{"display_value":"","value":"raw"}`, "raw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unwrapValue(gjson.Parse(tt.json)); got != tt.want {
				t.Errorf("unwrapValue(%s) = %q, want %q", tt.json, got, tt.want)
			}
		})
	}
}

func TestUnwrapValue_Idempotent(t *testing.T) {
	inputs := []string{
		`"plain"`,
		`{"display_value":"Jane Doe","value":"5137"}`,
		`{"value":{"display_value":"wrapped"}}`,
	}
	for _, in := range inputs {
		once := unwrapValue(gjson.Parse(in))
		twice := unwrapValue(gjson.Parse(`"` + once + `"`))
		if once != twice {
			t.Errorf("unwrapValue not idempotent for %s: %q then %q", in, once, twice)
		}
	}
}
