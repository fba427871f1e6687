// ABOUTME: Activity reconciler merging the journal and field-audit feeds
// ABOUTME: Normalizes, de-duplicates, resolves names, and orders newest-first

package services

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/mthomas/servicedesk-bff/models"
)

const (
	// primaryStatusField is audited for every work item kind.
	primaryStatusField = "state"
	// aliasStatusField is the kind-specific status alias audited at the
	// same instant as the primary field; its entry is dropped when a
	// primary entry exists at the identical timestamp.
	aliasStatusField = "incident_state"

	// placeholder renders in place of an empty old/new value.
	placeholder = "-"
)

// Reconciler builds a single chronological narrative from the two
// upstream audit trails of a work item.
type Reconciler struct {
	client   *Client
	resolver *Resolver
	// elevated is used for the field-audit feed, whose visibility is not
	// guaranteed for the acting identity.
	elevated models.Credential
}

// NewReconciler creates an activity reconciler.
func NewReconciler(client *Client, resolver *Resolver, elevated models.Credential) *Reconciler {
	return &Reconciler{client: client, resolver: resolver, elevated: elevated}
}

// BuildNarrative fetches both feeds for one work item and returns the
// merged, de-duplicated, newest-first narrative. Any feed failure fails
// the whole operation; no partial narrative is returned.
func (rc *Reconciler) BuildNarrative(ctx context.Context, cred models.Credential, ref models.RecordRef) (string, error) {
	entries, err := rc.Entries(ctx, cred, ref)
	if err != nil {
		return "", err
	}

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Render()
	}
	return strings.Join(lines, "\n\n"), nil
}

// Entries returns the reconciled activity entries, newest first.
func (rc *Reconciler) Entries(ctx context.Context, cred models.Credential, ref models.RecordRef) ([]models.ActivityEntry, error) {
	var journalRows, auditRows []gjson.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := rc.fetchJournal(gctx, cred, ref)
		if err != nil {
			return err
		}
		journalRows = rows
		return nil
	})
	g.Go(func() error {
		rows, err := rc.fetchAudit(gctx, ref)
		if err != nil {
			return err
		}
		auditRows = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, &models.ActivityFetchError{Ref: ref, Err: err}
	}

	entries := rc.journalEntries(journalRows)
	entries = append(entries, rc.auditEntries(ctx, cred, auditRows)...)

	// Upstream timestamps are fixed-width and zero-padded, so string
	// comparison orders chronologically.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})

	return entries, nil
}

// fetchJournal loads the free-text note entries for the work item,
// restricted to the two journal kinds, newest first.
func (rc *Reconciler) fetchJournal(ctx context.Context, cred models.Credential, ref models.RecordRef) ([]gjson.Result, error) {
	params := url.Values{}
	params.Set("sysparm_query", "element_id="+ref.SysID+"^elementINwork_notes,comments^ORDERBYDESCsys_created_on")
	params.Set("sysparm_fields", "sys_created_on,sys_created_by,element,value")
	params.Set("sysparm_display_value", "all")

	return rc.client.TableQuery(ctx, cred, "sys_journal_field", params)
}

// fetchAudit loads the structured field-change entries. The match is by
// document key because audited fields may be recorded against a base
// entity type rather than the specific kind. Runs as the elevated
// credential.
func (rc *Reconciler) fetchAudit(ctx context.Context, ref models.RecordRef) ([]gjson.Result, error) {
	params := url.Values{}
	params.Set("sysparm_query", "documentkey="+ref.SysID+"^ORDERBYDESCsys_created_on")
	params.Set("sysparm_fields", "sys_created_on,user,fieldname,oldvalue,newvalue")
	params.Set("sysparm_display_value", "all")

	return rc.client.TableQuery(ctx, rc.elevated, "sys_audit", params)
}

// journalEntries normalizes journal rows into activity entries.
func (rc *Reconciler) journalEntries(rows []gjson.Result) []models.ActivityEntry {
	var entries []models.ActivityEntry
	for _, row := range rows {
		text := strings.TrimSpace(unwrapValue(row.Get("value")))
		if text == "" {
			continue
		}

		subtype := models.JournalComment
		if unwrapValue(row.Get("element")) == "work_notes" {
			subtype = models.JournalWorkNote
		}

		entries = append(entries, models.ActivityEntry{
			Timestamp: timestampValue(row.Get("sys_created_on")),
			Actor:     unwrapValue(row.Get("sys_created_by")),
			Kind:      models.ActivityJournal,
			Subtype:   subtype,
			Text:      text,
		})
	}
	return entries
}

// auditEntries normalizes field-audit rows into activity entries,
// applying journal-field skipping, status alias de-duplication, value
// unwrapping, and assignment name resolution.
func (rc *Reconciler) auditEntries(ctx context.Context, cred models.Credential, rows []gjson.Result) []models.ActivityEntry {
	primaryAt := primaryStatusTimestamps(rows)

	var entries []models.ActivityEntry
	for _, row := range rows {
		field := unwrapValue(row.Get("fieldname"))
		timestamp := timestampValue(row.Get("sys_created_on"))

		// Journal content already renders from the journal feed; a second
		// "field changed" line for it would be redundant.
		if models.IsJournalField(field) {
			continue
		}

		// The kind-specific status alias duplicates the primary status
		// change at the same instant.
		if field == aliasStatusField && primaryAt[timestamp] {
			slog.Debug("Dropping status alias audit entry", "timestamp", timestamp)
			continue
		}

		oldValue := rc.displayValue(ctx, cred, field, unwrapValue(row.Get("oldvalue")))
		newValue := rc.displayValue(ctx, cred, field, unwrapValue(row.Get("newvalue")))

		entries = append(entries, models.ActivityEntry{
			Timestamp: timestamp,
			Actor:     unwrapValue(row.Get("user")),
			Kind:      models.ActivityFieldChange,
			Field:     field,
			OldValue:  oldValue,
			NewValue:  newValue,
		})
	}
	return entries
}

// primaryStatusTimestamps collects the instants at which the primary
// status field changed.
func primaryStatusTimestamps(rows []gjson.Result) map[string]bool {
	at := make(map[string]bool)
	for _, row := range rows {
		if unwrapValue(row.Get("fieldname")) == primaryStatusField {
			at[timestampValue(row.Get("sys_created_on"))] = true
		}
	}
	return at
}

// timestampValue extracts the canonical fixed-width timestamp. Feeds
// are fetched with display values, so the field arrives as an object
// whose value key carries the raw form; the display form is locale and
// timezone dependent and must never become the ordering key.
func timestampValue(v gjson.Result) string {
	if v.IsObject() {
		if inner := v.Get("value"); inner.Exists() && inner.Type != gjson.Null {
			return unwrapValue(inner)
		}
	}
	return unwrapValue(v)
}

// displayValue substitutes the placeholder for empty values and resolves
// raw identifiers in assignment fields to human labels.
func (rc *Reconciler) displayValue(ctx context.Context, cred models.Credential, field, value string) string {
	if value == "" {
		return placeholder
	}
	if kind, ok := models.AssignmentFields[field]; ok && models.IsSysID(value) {
		return rc.resolver.ResolveName(ctx, cred, kind, value)
	}
	return value
}

// unwrapValue obtains the plain-text form of an upstream value, which
// may be a bare scalar or an object carrying a display label, an inner
// value, or a named reference. Known label-bearing keys are walked in
// fixed priority order; an object with a single remaining key unwraps
// through it; anything else falls back to the generic string form.
func unwrapValue(v gjson.Result) string {
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	if !v.IsObject() {
		return v.String()
	}

	for _, key := range []string{"display_value", "value", "name", "user_name"} {
		if inner := v.Get(key); inner.Exists() && inner.Type != gjson.Null {
			if s := unwrapValue(inner); s != "" {
				return s
			}
		}
	}

	m := v.Map()
	if len(m) == 1 {
		for _, only := range m {
			return unwrapValue(only)
		}
	}

	return v.String()
}
