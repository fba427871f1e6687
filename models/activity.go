// ABOUTME: Activity narrative models produced by the reconciler
// ABOUTME: One entry per journal note or field change, newest first

package models

import "fmt"

// ActivityKind distinguishes the two upstream audit sources.
type ActivityKind string

const (
	ActivityJournal     ActivityKind = "journal"
	ActivityFieldChange ActivityKind = "field_change"
)

// JournalSubtype distinguishes the two free-text note kinds.
type JournalSubtype string

const (
	JournalWorkNote JournalSubtype = "Work note"
	JournalComment  JournalSubtype = "Comment"
)

// ActivityEntry is one reconciled line of a work item's history.
// Immutable once constructed; ordering key is Timestamp, descending.
type ActivityEntry struct {
	Timestamp string         `json:"timestamp"`
	Actor     string         `json:"actor"`
	Kind      ActivityKind   `json:"kind"`
	Subtype   JournalSubtype `json:"subtype,omitempty"`
	Field     string         `json:"field,omitempty"`
	OldValue  string         `json:"old_value,omitempty"`
	NewValue  string         `json:"new_value,omitempty"`
	Text      string         `json:"text,omitempty"`
}

// Render produces the display line for the entry with a provenance tag
// naming the actor and time.
func (e ActivityEntry) Render() string {
	switch e.Kind {
	case ActivityJournal:
		return fmt.Sprintf("%s\n#%s by %s at %s", e.Text, e.Subtype, e.Actor, e.Timestamp)
	default:
		return fmt.Sprintf("%s: %s → %s\n#Changed by %s at %s", e.Field, e.OldValue, e.NewValue, e.Actor, e.Timestamp)
	}
}
