package workspace

import (
	"context"
	"errors"
	"strings"
	"testing"

	"marginalia/internal/domain"
	"marginalia/internal/history"
)

type fixture struct {
	w    *Workspace
	segs *mockAnnotationStore
	hls  *mockAnnotationStore
	mems *mockAnnotationStore
	code *mockCodeStore
	proj *mockProjectStore
}

func newFixture(t *testing.T, sel *Selection) *fixture {
	t.Helper()

	project := seedProject()
	segs := newMockAnnotationStore("seg-new-", project.SyncVersion, project.CodedSegments...)
	hls := newMockAnnotationStore("hl-new-", project.SyncVersion, project.InlineHighlights...)
	mems := newMockAnnotationStore("memo-new-", project.SyncVersion, project.Memos...)
	code := newMockCodeStore(project.SyncVersion, project.CodeDefinitions...)
	proj := &mockProjectStore{project: project, meta: domain.ProjectMeta{ID: project.ID, SyncVersion: project.SyncVersion}}

	w, err := Open(context.Background(), project.ID, Gateways{
		Segments:   segs,
		Highlights: hls,
		Memos:      mems,
		Codes:      code,
		Projects:   proj,
	}, &fixedSelection{sel: sel})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	w.OpenFile("file-1")
	return &fixture{w: w, segs: segs, hls: hls, mems: mems, code: code, proj: proj}
}

func TestAssignCode(t *testing.T) {
	f := newFixture(t, &Selection{Text: "test content", StartIndex: 8, EndIndex: 20})

	res, err := f.w.AssignCodeToSelection(context.Background(), "file-1", "code-1")
	if err != nil {
		t.Fatalf("AssignCodeToSelection() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}

	confirmedID := res.Context.ID
	if confirmedID != "seg-new-1" {
		t.Errorf("confirmed id = %s, want seg-new-1", confirmedID)
	}

	seg, ok := f.w.Cache.Find(ColSegments, confirmedID)
	if !ok {
		t.Fatal("confirmed segment not in cache")
	}
	if seg.StartIndex != 8 || seg.EndIndex != 20 || seg.Text != "test content" || seg.CodeID != "code-1" {
		t.Errorf("segment = %+v", seg)
	}
	if seg.Kind != domain.KindSegment {
		t.Errorf("kind = %s, want segment", seg.Kind)
	}

	// No placeholder may survive reconciliation.
	for _, cur := range f.w.Cache.Snapshot().CodedSegments {
		if domain.IsPlaceholderID(cur.ID) {
			t.Errorf("placeholder %s left in cache", cur.ID)
		}
	}

	// Local counter ends aligned with the store's version after the write.
	if got := f.w.Cache.SyncVersion(); got != 5 {
		t.Errorf("SyncVersion() = %d, want 5", got)
	}

	if !f.w.History.CanUndo() {
		t.Fatal("create should be undoable")
	}
	undoRes, err := f.w.History.Undo(context.Background())
	if err != nil || !undoRes.Success {
		t.Fatalf("Undo() = (%+v, %v)", undoRes, err)
	}
	if _, ok := f.w.Cache.Find(ColSegments, confirmedID); ok {
		t.Error("segment still in cache after undo")
	}
	if deletes := f.segs.deletedIDs(); len(deletes) != 1 || deletes[0] != confirmedID {
		t.Errorf("store deletes = %v, want [%s]", deletes, confirmedID)
	}
}

func TestAssignCodeRequiresSelection(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.w.AssignCodeToSelection(context.Background(), "file-1", "code-1")
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("error = %v, want ErrNoSelection", err)
	}
}

func TestAssignCodeUnknownCode(t *testing.T) {
	f := newFixture(t, &Selection{Text: "x", StartIndex: 0, EndIndex: 1})

	_, err := f.w.AssignCodeToSelection(context.Background(), "file-1", "code-ghost")
	if !errors.Is(err, ErrUnknownCode) {
		t.Errorf("error = %v, want ErrUnknownCode", err)
	}
}

func TestAssignCodeRemoteFailureReverts(t *testing.T) {
	f := newFixture(t, &Selection{Text: "x", StartIndex: 0, EndIndex: 1})
	f.segs.failCreate = true

	before := f.w.Cache.SyncVersion()
	res, err := f.w.AssignCodeToSelection(context.Background(), "file-1", "code-1")
	if err != nil {
		t.Fatalf("AssignCodeToSelection() error = %v", err)
	}
	if res.Success {
		t.Fatal("expected failed result")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "create rejected") {
		t.Errorf("Result.Err = %v", res.Err)
	}

	if len(f.w.Cache.Snapshot().CodedSegments) != 3 {
		t.Error("failed create left a segment behind")
	}
	if got := f.w.Cache.SyncVersion(); got != before {
		t.Errorf("SyncVersion() = %d, want %d restored", got, before)
	}
	if f.w.History.CanUndo() {
		t.Error("failed create must not be undoable")
	}
}

func TestDeletePlaceholderCancelsInFlightCreate(t *testing.T) {
	f := newFixture(t, &Selection{Text: "pending", StartIndex: 100, EndIndex: 107})
	f.segs.createEntered = make(chan struct{})
	f.segs.createRelease = make(chan struct{})

	type outcome struct {
		res history.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.w.AssignCodeToSelection(context.Background(), "file-1", "code-1")
		done <- outcome{res, err}
	}()

	<-f.segs.createEntered

	// The optimistic placeholder is visible while the create is in flight.
	var placeholderID string
	for _, cur := range f.w.Cache.Snapshot().CodedSegments {
		if domain.IsPlaceholderID(cur.ID) {
			placeholderID = cur.ID
		}
	}
	if placeholderID == "" {
		t.Fatal("no placeholder in cache during in-flight create")
	}

	// Undo/redo are locked while the create is pending...
	if _, err := f.w.History.Undo(context.Background()); !errors.Is(err, history.ErrBusy) {
		t.Errorf("Undo() during flight error = %v, want ErrBusy", err)
	}

	// ...but deleting the placeholder routes around the engine.
	delRes, err := f.w.Segments.Delete(context.Background(), placeholderID)
	if err != nil {
		t.Fatalf("Delete(placeholder) error = %v", err)
	}
	if !delRes.Success || !delRes.Discard {
		t.Fatalf("Delete(placeholder) result = %+v, want discarded success", delRes)
	}
	if _, ok := f.w.Cache.Find(ColSegments, placeholderID); ok {
		t.Error("placeholder still in cache after cancellation")
	}

	close(f.segs.createRelease)
	out := <-done

	if out.err != nil {
		t.Fatalf("AssignCodeToSelection() error = %v", out.err)
	}
	if !out.res.Success || !out.res.Discard {
		t.Errorf("cancelled create result = %+v, want discarded success", out.res)
	}

	// The store briefly held the orphan; the continuation must have removed it.
	if deletes := f.segs.deletedIDs(); len(deletes) != 1 || deletes[0] != "seg-new-1" {
		t.Errorf("compensating deletes = %v, want [seg-new-1]", deletes)
	}
	if _, ok := f.w.Cache.Find(ColSegments, "seg-new-1"); ok {
		t.Error("cancelled create's confirmed entity leaked into the cache")
	}
	if f.w.History.CanUndo() {
		t.Error("cancelled create must leave no history entry")
	}
}

func TestDeleteAndUndoRecreatesUnderNewID(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.w.Segments.Delete(context.Background(), "seg-1")
	if err != nil || !res.Success {
		t.Fatalf("Delete() = (%+v, %v)", res, err)
	}
	if _, ok := f.w.Cache.Find(ColSegments, "seg-1"); ok {
		t.Fatal("seg-1 still in cache")
	}

	undoRes, err := f.w.History.Undo(context.Background())
	if err != nil || !undoRes.Success {
		t.Fatalf("Undo() = (%+v, %v)", undoRes, err)
	}

	// Undo of a delete recreates the annotation under a fresh confirmed id.
	newID := undoRes.Context.ID
	if newID == "" || newID == "seg-1" {
		t.Fatalf("recreated id = %q, want a new confirmed id", newID)
	}
	restored, ok := f.w.Cache.Find(ColSegments, newID)
	if !ok {
		t.Fatal("recreated segment not in cache")
	}
	if restored.CodeID != "code-1" || restored.StartIndex != 0 || restored.EndIndex != 5 {
		t.Errorf("recreated segment = %+v", restored)
	}

	// Redo targets the recreated id, not the original.
	redoRes, err := f.w.History.Redo(context.Background())
	if err != nil || !redoRes.Success {
		t.Fatalf("Redo() = (%+v, %v)", redoRes, err)
	}
	deletes := f.segs.deletedIDs()
	if len(deletes) != 2 || deletes[0] != "seg-1" || deletes[1] != newID {
		t.Errorf("store deletes = %v, want [seg-1 %s]", deletes, newID)
	}
}

func TestDeleteUnknownSegment(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.w.Segments.Delete(context.Background(), "seg-ghost")
	if !errors.Is(err, ErrUnknownAnnotation) {
		t.Errorf("error = %v, want ErrUnknownAnnotation", err)
	}
}

func TestDeleteRemoteFailureReverts(t *testing.T) {
	f := newFixture(t, nil)
	f.segs.failDelete = true

	before := f.w.Cache.SyncVersion()
	res, err := f.w.Segments.Delete(context.Background(), "seg-1")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if res.Success {
		t.Fatal("expected failed result")
	}
	if _, ok := f.w.Cache.Find(ColSegments, "seg-1"); !ok {
		t.Error("failed delete did not restore the segment")
	}
	if got := f.w.Cache.SyncVersion(); got != before {
		t.Errorf("SyncVersion() = %d, want %d restored", got, before)
	}
}

func TestReassign(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.w.Segments.Reassign(context.Background(), "seg-1", "code-2")
	if err != nil || !res.Success {
		t.Fatalf("Reassign() = (%+v, %v)", res, err)
	}
	seg, _ := f.w.Cache.Find(ColSegments, "seg-1")
	if seg.CodeID != "code-2" {
		t.Errorf("CodeID = %s, want code-2", seg.CodeID)
	}

	undoRes, err := f.w.History.Undo(context.Background())
	if err != nil || !undoRes.Success {
		t.Fatalf("Undo() = (%+v, %v)", undoRes, err)
	}
	seg, _ = f.w.Cache.Find(ColSegments, "seg-1")
	if seg.CodeID != "code-1" {
		t.Errorf("CodeID after undo = %s, want code-1", seg.CodeID)
	}
}

func TestReassignPlaceholderRejected(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.w.Segments.Reassign(context.Background(), domain.PlaceholderPrefix+"x", "code-2")
	if !errors.Is(err, ErrPendingAnnotation) {
		t.Errorf("error = %v, want ErrPendingAnnotation", err)
	}
}

func TestHighlightLifecycle(t *testing.T) {
	f := newFixture(t, &Selection{Text: "glow", StartIndex: 70, EndIndex: 74})

	res, err := f.w.HighlightSelection(context.Background(), "file-1", "#00FFFF")
	if err != nil || !res.Success {
		t.Fatalf("HighlightSelection() = (%+v, %v)", res, err)
	}
	hl, ok := f.w.Cache.Find(ColHighlights, res.Context.ID)
	if !ok || hl.Color != "#00FFFF" || hl.Kind != domain.KindHighlight {
		t.Fatalf("highlight = %+v, ok = %v", hl, ok)
	}

	recolor, err := f.w.Highlights.Recolor(context.Background(), hl.ID, "#123456")
	if err != nil || !recolor.Success {
		t.Fatalf("Recolor() = (%+v, %v)", recolor, err)
	}
	hl, _ = f.w.Cache.Find(ColHighlights, hl.ID)
	if hl.Color != "#123456" {
		t.Errorf("color = %s, want #123456", hl.Color)
	}

	f.w.History.Undo(context.Background())
	hl, _ = f.w.Cache.Find(ColHighlights, hl.ID)
	if hl.Color != "#00FFFF" {
		t.Errorf("color after undo = %s, want #00FFFF", hl.Color)
	}
}

func TestMemoLifecycle(t *testing.T) {
	f := newFixture(t, &Selection{Text: "note here", StartIndex: 5, EndIndex: 14})

	res, err := f.w.AttachMemoToSelection(context.Background(), "file-1", "revisit later")
	if err != nil || !res.Success {
		t.Fatalf("AttachMemoToSelection() = (%+v, %v)", res, err)
	}
	memo, ok := f.w.Cache.Find(ColMemos, res.Context.ID)
	if !ok || memo.Body != "revisit later" || memo.Kind != domain.KindMemo {
		t.Fatalf("memo = %+v, ok = %v", memo, ok)
	}

	edit, err := f.w.Memos.EditBody(context.Background(), memo.ID, "resolved")
	if err != nil || !edit.Success {
		t.Fatalf("EditBody() = (%+v, %v)", edit, err)
	}
	memo, _ = f.w.Cache.Find(ColMemos, memo.ID)
	if memo.Body != "resolved" {
		t.Errorf("body = %s, want resolved", memo.Body)
	}

	f.w.History.Undo(context.Background())
	memo, _ = f.w.Cache.Find(ColMemos, memo.ID)
	if memo.Body != "revisit later" {
		t.Errorf("body after undo = %s", memo.Body)
	}

	// Each kind keeps its own store; the memo write never touched segments.
	if len(f.segs.deletedIDs()) != 0 {
		t.Error("memo operations leaked into the segment store")
	}
}
