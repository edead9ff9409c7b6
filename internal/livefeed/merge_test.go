package livefeed

import (
	"testing"

	"demodrop/internal/records"
)

// An update racing ahead of the snapshot references an id the view does not
// know yet. It must be dropped silently; the insert that follows lands it.
func TestMergeDiscardsUpdateForUnknownID(t *testing.T) {
	viewer := NewViewer(nil, nil)

	inserted, updated := viewer.merge(records.ChangeUpdate, records.Submission{ID: "t2", Name: "Racer"})
	if inserted || updated {
		t.Fatalf("unknown-id update merged: inserted=%v updated=%v", inserted, updated)
	}
	if len(viewer.Submissions()) != 0 {
		t.Fatalf("view should stay empty, got %+v", viewer.Submissions())
	}

	inserted, updated = viewer.merge(records.ChangeInsert, records.Submission{ID: "t2", Name: "Racer"})
	if !inserted || updated {
		t.Fatalf("subsequent insert should merge: inserted=%v updated=%v", inserted, updated)
	}
	if view := viewer.Submissions(); len(view) != 1 || view[0].ID != "t2" {
		t.Fatalf("unexpected view after insert: %+v", view)
	}
}

// A redundant insert for a known id replaces in place instead of duplicating.
func TestMergeInsertForKnownIDReplacesInPlace(t *testing.T) {
	viewer := NewViewer(nil, nil)

	viewer.merge(records.ChangeInsert, records.Submission{ID: "a", Name: "One"})
	viewer.merge(records.ChangeInsert, records.Submission{ID: "b", Name: "Two"})
	viewer.merge(records.ChangeInsert, records.Submission{ID: "a", Name: "One Revised"})

	view := viewer.Submissions()
	if len(view) != 2 {
		t.Fatalf("view = %d entries, want 2", len(view))
	}
	if view[0].ID != "b" || view[1].ID != "a" {
		t.Fatalf("redundant insert changed ordering: %+v", view)
	}
	if view[1].Name != "One Revised" {
		t.Fatalf("redundant insert did not replace fields: %+v", view[1])
	}
}
