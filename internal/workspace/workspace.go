package workspace

import (
	"context"
	"fmt"
	"sync"

	"marginalia/internal/domain"
	"marginalia/internal/gateway"
	"marginalia/internal/history"
)

// Gateways bundles the persistence contracts a workspace consumes. In
// production all of them come from one gateway.Client; tests swap in mocks.
type Gateways struct {
	Segments   gateway.AnnotationGateway
	Highlights gateway.AnnotationGateway
	Memos      gateway.AnnotationGateway
	Codes      gateway.CodeGateway
	Projects   gateway.ProjectGateway
}

// Workspace is the per-project context object: one cache, one history
// engine, one coordinator per annotation kind, the code vocabulary and the
// staleness watcher. It is constructed once per opened project and
// discarded on navigation away.
type Workspace struct {
	ProjectID string

	Cache      *ProjectCache
	History    *history.Engine
	Segments   *SegmentManager
	Highlights *HighlightManager
	Memos      *MemoManager
	Codes      *CodeSystem
	Watcher    *SyncWatcher

	selection SelectionProvider
}

// Open fetches the project aggregate and wires the subsystems around it.
func Open(ctx context.Context, projectID string, gw Gateways, selection SelectionProvider) (*Workspace, error) {
	project, err := gw.Projects.Fetch(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("workspace: open project %s: %w", projectID, err)
	}

	cache := NewProjectCache()
	cache.Load(*project)

	engine := history.NewEngine()
	pending := newCancelSet()

	w := &Workspace{
		ProjectID: projectID,
		Cache:     cache,
		History:   engine,
		selection: selection,
	}
	w.Segments = &SegmentManager{projectID: projectID, cache: cache, engine: engine, gw: gw.Segments, pending: pending}
	w.Highlights = &HighlightManager{projectID: projectID, cache: cache, engine: engine, gw: gw.Highlights, pending: pending}
	w.Memos = &MemoManager{projectID: projectID, cache: cache, engine: engine, gw: gw.Memos, pending: pending}
	w.Codes = &CodeSystem{projectID: projectID, cache: cache, engine: engine, gw: gw.Codes, segments: w.Segments}
	w.Watcher = NewSyncWatcher(projectID, gw.Projects, cache)
	return w, nil
}

// OpenFile switches the undo/redo scope to the given document.
func (w *Workspace) OpenFile(fileID string) {
	w.History.SetScope(fileID)
}

// AssignCodeToSelection codes the current selection in the given file.
func (w *Workspace) AssignCodeToSelection(ctx context.Context, fileID, codeID string) (history.Result, error) {
	sel := w.currentSelection()
	if sel == nil {
		return history.Result{}, ErrNoSelection
	}
	return w.Segments.AssignCode(ctx, fileID, codeID, *sel)
}

// HighlightSelection adds an inline highlight over the current selection.
func (w *Workspace) HighlightSelection(ctx context.Context, fileID, color string) (history.Result, error) {
	sel := w.currentSelection()
	if sel == nil {
		return history.Result{}, ErrNoSelection
	}
	return w.Highlights.Add(ctx, fileID, color, *sel)
}

// AttachMemoToSelection attaches a memo to the current selection.
func (w *Workspace) AttachMemoToSelection(ctx context.Context, fileID, body string) (history.Result, error) {
	sel := w.currentSelection()
	if sel == nil {
		return history.Result{}, ErrNoSelection
	}
	return w.Memos.Add(ctx, fileID, body, *sel)
}

func (w *Workspace) currentSelection() *Selection {
	if w.selection == nil {
		return nil
	}
	return w.selection.Current()
}

// cancelSet tracks placeholder ids whose annotations were deleted while the
// create that made them was still in flight. Its mutex also orders the
// cancel decision against the create's reconciliation step, so the two can
// never both act on the same placeholder.
type cancelSet struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newCancelSet() *cancelSet {
	return &cancelSet{ids: make(map[string]bool)}
}

// cancel removes a still-pending placeholder from the cache and records the
// cancellation. It reports false if the placeholder is no longer in the
// cache (the create already reconciled, or it never existed).
func (s *cancelSet) cancel(cache *ProjectCache, col Collection, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := cache.Find(col, id); !ok {
		return false
	}
	s.ids[id] = true
	cache.SyncState(col, ActionDelete, id)
	return true
}

// reconcile is called by a create's continuation. If the placeholder was
// cancelled mid-flight it consumes the mark and reports true (the caller
// must compensate remotely); otherwise it runs swap, which replaces the
// placeholder with the confirmed entity, and reports false.
func (s *cancelSet) reconcile(id string, swap func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[id] {
		delete(s.ids, id)
		return true
	}
	swap()
	return false
}

// forget drops a mark that can no longer be acted on (failed create).
func (s *cancelSet) forget(id string) {
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

func annotationFromRequest(req domain.CreateAnnotationRequest, id string) domain.Annotation {
	return domain.Annotation{
		ID:         id,
		ProjectID:  req.ProjectID,
		FileID:     req.FileID,
		Kind:       req.Kind,
		StartIndex: req.StartIndex,
		EndIndex:   req.EndIndex,
		Text:       req.Text,
		CodeID:     req.CodeID,
		Color:      req.Color,
		Body:       req.Body,
	}
}

func requestFromAnnotation(a domain.Annotation) domain.CreateAnnotationRequest {
	return domain.CreateAnnotationRequest{
		ProjectID:  a.ProjectID,
		FileID:     a.FileID,
		Kind:       a.Kind,
		StartIndex: a.StartIndex,
		EndIndex:   a.EndIndex,
		Text:       a.Text,
		CodeID:     a.CodeID,
		Color:      a.Color,
		Body:       a.Body,
	}
}
