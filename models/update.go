// ABOUTME: Update pipeline request/result models
// ABOUTME: Reports the two independent writes (fields, journal) separately

package models

// JournalFields are the two free-text journal fields. They are written
// in a separate PATCH with display-value-aware write mode and never sent
// as structured fields.
var JournalFields = []string{"work_notes", "comments"}

// IsJournalField reports whether name is one of the journal fields.
func IsJournalField(name string) bool {
	for _, f := range JournalFields {
		if f == name {
			return true
		}
	}
	return false
}

// EntityKind identifies a reference entity table (people, groups).
type EntityKind string

const (
	EntityUser  EntityKind = "sys_user"
	EntityGroup EntityKind = "sys_user_group"
)

// AssignmentFields maps assignment-type field names to the reference
// table their values point into.
var AssignmentFields = map[string]EntityKind{
	"assigned_to":      EntityUser,
	"assignment_group": EntityGroup,
}

// UpdateResult reports which of the two writes succeeded. The pipeline
// does not roll back, so callers must treat the steps independently.
type UpdateResult struct {
	FieldsApplied  bool `json:"fields_applied"`
	JournalApplied bool `json:"journal_applied"`
}

// ApprovalDecision is a terminal approve/reject submitted for a pending
// approval record.
type ApprovalDecision struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment,omitempty"`
}
