package seed

import "testing"

// TestStateRecordRoundTrip verifies MarkSeeded stores the program metadata
// and IsSeeded only matches on an identical size and hash.
func TestStateRecordRoundTrip(t *testing.T) {
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	if err := state.MarkSeeded("strength.json", 42, "abc123", "strength-12w", 3); err != nil {
		t.Fatal(err)
	}

	seeded, err := state.IsSeeded("strength.json", 42, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if !seeded {
		t.Error("IsSeeded = false for matching entry")
	}

	seeded, err = state.IsSeeded("strength.json", 42, "changed")
	if err != nil {
		t.Fatal(err)
	}
	if seeded {
		t.Error("IsSeeded = true for changed hash")
	}

	rec, err := state.Record("strength.json")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("Record = nil for seeded file")
	}
	if rec.ProgramID != "strength-12w" || rec.Phases != 3 {
		t.Errorf("record = %+v, want program strength-12w with 3 phases", rec)
	}

	rec, err = state.Record("other.json")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Errorf("Record = %+v for unknown file, want nil", rec)
	}
}
