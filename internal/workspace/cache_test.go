package workspace

import (
	"testing"

	"marginalia/internal/domain"
)

func seedProject() domain.Project {
	return domain.Project{
		ID:          "proj-1",
		OwnerID:     "user-1",
		Name:        "Interview Study",
		SyncVersion: 4,
		CodedSegments: []domain.Annotation{
			{ID: "seg-1", ProjectID: "proj-1", FileID: "file-1", Kind: domain.KindSegment, StartIndex: 0, EndIndex: 5, CodeID: "code-1"},
			{ID: "seg-2", ProjectID: "proj-1", FileID: "file-1", Kind: domain.KindSegment, StartIndex: 10, EndIndex: 20, CodeID: "code-2"},
			{ID: "seg-3", ProjectID: "proj-1", FileID: "file-2", Kind: domain.KindSegment, StartIndex: 3, EndIndex: 9, CodeID: "code-1"},
		},
		InlineHighlights: []domain.Annotation{
			{ID: "hl-1", ProjectID: "proj-1", FileID: "file-1", Kind: domain.KindHighlight, StartIndex: 30, EndIndex: 40, Color: "#FFFF00"},
		},
		Memos: []domain.Annotation{
			{ID: "memo-1", ProjectID: "proj-1", FileID: "file-1", Kind: domain.KindMemo, StartIndex: 50, EndIndex: 60, Body: "check this"},
		},
		CodeDefinitions: []domain.CodeDefinition{
			{ID: "code-1", ProjectID: "proj-1", Name: "Important", Color: "#FF0000"},
			{ID: "code-2", ProjectID: "proj-1", Name: "Follow up", Color: "#00FF00"},
		},
		ImportedFiles: []domain.Document{
			{ID: "file-1", ProjectID: "proj-1", Name: "interview-1.txt"},
			{ID: "file-2", ProjectID: "proj-1", Name: "interview-2.txt"},
		},
	}
}

func newLoadedCache() *ProjectCache {
	c := NewProjectCache()
	c.Load(seedProject())
	return c
}

func TestSyncStateAdd(t *testing.T) {
	c := newLoadedCache()

	added := domain.Annotation{ID: "seg-9", FileID: "file-1", Kind: domain.KindSegment, CodeID: "code-1"}
	if err := c.SyncState(ColSegments, ActionAdd, added); err != nil {
		t.Fatalf("SyncState(add) error = %v", err)
	}

	if _, ok := c.Find(ColSegments, "seg-9"); !ok {
		t.Error("added segment not found in cache")
	}
	if got := c.SyncVersion(); got != 5 {
		t.Errorf("SyncVersion() = %d, want 5", got)
	}
}

func TestSyncStateAddIsIdempotent(t *testing.T) {
	c := newLoadedCache()
	existing := domain.Annotation{ID: "seg-1", FileID: "file-1", Kind: domain.KindSegment}

	if err := c.SyncState(ColSegments, ActionAdd, existing); err != nil {
		t.Fatalf("SyncState(add) error = %v", err)
	}

	snap := c.Snapshot()
	if len(snap.CodedSegments) != 3 {
		t.Errorf("duplicate add grew the collection to %d", len(snap.CodedSegments))
	}
	if got := c.SyncVersion(); got != 4 {
		t.Errorf("no-op add bumped SyncVersion to %d", got)
	}
}

func TestSyncStateNoopsKeepVersion(t *testing.T) {
	c := newLoadedCache()

	tests := []struct {
		name    string
		col     Collection
		action  Action
		payload any
	}{
		{name: "update absent", col: ColSegments, action: ActionUpdate, payload: domain.Annotation{ID: "ghost"}},
		{name: "delete absent", col: ColSegments, action: ActionDelete, payload: "ghost"},
		{name: "bulk delete absent", col: ColSegments, action: ActionDeleteBulk, payload: []string{"ghost-1", "ghost-2"}},
		{name: "delete absent code", col: ColCodes, action: ActionDelete, payload: "ghost"},
		{name: "delete absent file", col: ColFiles, action: ActionDelete, payload: "ghost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.SyncState(tt.col, tt.action, tt.payload); err != nil {
				t.Fatalf("SyncState() error = %v", err)
			}
			if got := c.SyncVersion(); got != 4 {
				t.Errorf("SyncVersion() = %d, want 4", got)
			}
		})
	}
}

func TestSyncStateUpdateAndDelete(t *testing.T) {
	c := newLoadedCache()

	updated := domain.Annotation{ID: "seg-1", FileID: "file-1", Kind: domain.KindSegment, CodeID: "code-2"}
	if err := c.SyncState(ColSegments, ActionUpdate, updated); err != nil {
		t.Fatalf("SyncState(update) error = %v", err)
	}
	got, _ := c.Find(ColSegments, "seg-1")
	if got.CodeID != "code-2" {
		t.Errorf("update did not land, CodeID = %s", got.CodeID)
	}

	if err := c.SyncState(ColSegments, ActionDeleteBulk, []string{"seg-1", "seg-3"}); err != nil {
		t.Fatalf("SyncState(delete-bulk) error = %v", err)
	}
	if _, ok := c.Find(ColSegments, "seg-1"); ok {
		t.Error("seg-1 survived bulk delete")
	}
	if _, ok := c.Find(ColSegments, "seg-3"); ok {
		t.Error("seg-3 survived bulk delete")
	}
	if got := c.SyncVersion(); got != 6 {
		t.Errorf("SyncVersion() = %d, want 6 after two mutations", got)
	}
}

func TestSyncStateRejectsWrongPayload(t *testing.T) {
	c := newLoadedCache()

	if err := c.SyncState(ColSegments, ActionAdd, "not-an-annotation"); err == nil {
		t.Error("expected payload type error for annotation add")
	}
	if err := c.SyncState(ColCodes, ActionAdd, 42); err == nil {
		t.Error("expected payload type error for code add")
	}
	if err := c.SyncState(Collection("bogus"), ActionAdd, nil); err == nil {
		t.Error("expected unknown collection error")
	}
	if got := c.SyncVersion(); got != 4 {
		t.Errorf("rejected mutations bumped SyncVersion to %d", got)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	c := newLoadedCache()
	snap := c.Snapshot()

	c.SyncState(ColSegments, ActionDelete, "seg-1")

	if len(snap.CodedSegments) != 3 {
		t.Errorf("earlier snapshot observed later mutation, len = %d", len(snap.CodedSegments))
	}

	// Mutating the snapshot must not leak back either.
	snap.CodedSegments[0].CodeID = "tampered"
	if got, _ := c.Find(ColSegments, "seg-2"); got.CodeID == "tampered" {
		t.Error("snapshot mutation leaked into the cache")
	}
}

func TestObserveRemoteVersion(t *testing.T) {
	c := newLoadedCache()
	c.ObserveRemoteVersion(12)
	if got := c.SyncVersion(); got != 12 {
		t.Errorf("SyncVersion() = %d, want 12", got)
	}
}

func TestSegmentsByCode(t *testing.T) {
	c := newLoadedCache()

	grouped := c.SegmentsByCode("file-1")
	if len(grouped) != 2 {
		t.Fatalf("got %d groups, want 2", len(grouped))
	}
	if len(grouped["code-1"]) != 1 || grouped["code-1"][0].ID != "seg-1" {
		t.Errorf("code-1 group = %+v", grouped["code-1"])
	}
	if len(grouped["code-2"]) != 1 || grouped["code-2"][0].ID != "seg-2" {
		t.Errorf("code-2 group = %+v", grouped["code-2"])
	}

	// seg-3 lives in file-2, must not appear in file-1's grouping.
	for _, group := range grouped {
		for _, seg := range group {
			if seg.ID == "seg-3" {
				t.Error("segment from another file leaked into grouping")
			}
		}
	}
}

func TestSegmentsByCodeSortedByOffset(t *testing.T) {
	c := newLoadedCache()
	c.SyncState(ColSegments, ActionAdd, domain.Annotation{
		ID: "seg-early", FileID: "file-1", Kind: domain.KindSegment, StartIndex: 2, EndIndex: 4, CodeID: "code-2",
	})

	grouped := c.SegmentsByCode("file-1")
	group := grouped["code-2"]
	if len(group) != 2 {
		t.Fatalf("code-2 group len = %d, want 2", len(group))
	}
	if group[0].ID != "seg-early" || group[1].ID != "seg-2" {
		t.Errorf("group not sorted by offset: %s, %s", group[0].ID, group[1].ID)
	}
}

func TestCodeUsageCounts(t *testing.T) {
	c := newLoadedCache()

	counts := c.CodeUsageCounts()
	if counts["code-1"] != 2 {
		t.Errorf("code-1 count = %d, want 2", counts["code-1"])
	}
	if counts["code-2"] != 1 {
		t.Errorf("code-2 count = %d, want 1", counts["code-2"])
	}
}

func TestFileScopedViews(t *testing.T) {
	c := newLoadedCache()

	if memos := c.MemosForFile("file-1"); len(memos) != 1 || memos[0].ID != "memo-1" {
		t.Errorf("MemosForFile(file-1) = %+v", memos)
	}
	if memos := c.MemosForFile("file-2"); len(memos) != 0 {
		t.Errorf("MemosForFile(file-2) should be empty, got %d", len(memos))
	}
	if hls := c.HighlightsForFile("file-1"); len(hls) != 1 || hls[0].ID != "hl-1" {
		t.Errorf("HighlightsForFile(file-1) = %+v", hls)
	}
}

func TestSegmentIDsForCode(t *testing.T) {
	c := newLoadedCache()

	ids := c.SegmentIDsForCode("code-1")
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}
	want := map[string]bool{"seg-1": true, "seg-3": true}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected id %s", id)
		}
	}
}
