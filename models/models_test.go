// ABOUTME: Tests for table kinds, identifier validation, and activity rendering

package models

import "testing"

func TestParseTableKind(t *testing.T) {
	tests := []struct {
		input   string
		want    TableKind
		wantErr bool
	}{
		{"incident", TableIncident, false},
		{"task", TableTask, false},
		{"sc_req_item", TableRequestedItem, false},
		{"change_request", TableChange, false},
		{"sysapproval_approver", TableApproval, false},
		{"sys_user", "", true},
		{"sys_audit", "", true},
		{"", "", true},
		{"Incident", "", true},
	}

	for _, tt := range tests {
		got, err := ParseTableKind(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTableKind(%q) = %v, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTableKind(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTableKind(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsSysID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"9c573169c611228700193229fff72400", true},
		{"9c573169c611228700193229fff7240", false},   // 31 chars
		{"9c573169c611228700193229fff724000", false}, // 33 chars
		{"9C573169C611228700193229FFF72400", false},  // uppercase
		{"9c573169-c611-2287-0019-3229fff724", false},
		{"jane.doe", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsSysID(tt.input); got != tt.want {
			t.Errorf("IsSysID(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestActivityEntry_Render(t *testing.T) {
	tests := []struct {
		name  string
		entry ActivityEntry
		want  string
	}{
		{
			name: "work note",
			entry: ActivityEntry{
				Timestamp: "2026-08-29 10:30:00",
				Actor:     "jdoe",
				Kind:      ActivityJournal,
				Subtype:   JournalWorkNote,
				Text:      "checking the switch",
			},
			want: "checking the switch\n#Work note by jdoe at 2026-08-29 10:30:00",
		},
		{
			name: "comment",
			entry: ActivityEntry{
				Timestamp: "2026-08-29 11:00:00",
				Actor:     "rsmith",
				Kind:      ActivityJournal,
				Subtype:   JournalComment,
				Text:      "customer confirmed",
			},
			want: "customer confirmed\n#Comment by rsmith at 2026-08-29 11:00:00",
		},
		{
			name: "field change",
			entry: ActivityEntry{
				Timestamp: "2026-08-29 09:00:00",
				Actor:     "jdoe",
				Kind:      ActivityFieldChange,
				Field:     "state",
				OldValue:  "New",
				NewValue:  "In Progress",
			},
			want: "state: New → In Progress\n#Changed by jdoe at 2026-08-29 09:00:00",
		},
		{
			name: "cleared value",
			entry: ActivityEntry{
				Timestamp: "2026-08-29 09:00:00",
				Actor:     "jdoe",
				Kind:      ActivityFieldChange,
				Field:     "assigned_to",
				OldValue:  "Jane Doe",
				NewValue:  "-",
			},
			want: "assigned_to: Jane Doe → -\n#Changed by jdoe at 2026-08-29 09:00:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsJournalField(t *testing.T) {
	for _, f := range []string{"work_notes", "comments"} {
		if !IsJournalField(f) {
			t.Errorf("IsJournalField(%q) = false, want true", f)
		}
	}
	for _, f := range []string{"state", "assigned_to", "description", ""} {
		if IsJournalField(f) {
			t.Errorf("IsJournalField(%q) = true, want false", f)
		}
	}
}

func TestRecordRef_Resolved(t *testing.T) {
	ok := RecordRef{Table: TableIncident, SysID: "9c573169c611228700193229fff72400"}
	if !ok.Resolved() {
		t.Error("Resolved() = false for a valid ref")
	}

	bad := RecordRef{Table: TableIncident, SysID: "Jane Doe"}
	if bad.Resolved() {
		t.Error("Resolved() = true for a display-string reference")
	}
}
