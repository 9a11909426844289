package workspace

import (
	"context"
	"time"

	"marginalia/internal/domain"
	"marginalia/internal/gateway"
	"marginalia/internal/history"
)

// SegmentManager coordinates coded-segment mutations: every write lands in
// the cache before the remote round trip, gets reconciled against the
// server-assigned id on success, and is reverted on failure.
type SegmentManager struct {
	projectID string
	cache     *ProjectCache
	engine    *history.Engine
	gw        gateway.AnnotationGateway
	pending   *cancelSet
}

// AssignCode creates a coded segment over the given span. Undoing the
// command deletes the segment under its confirmed id.
func (m *SegmentManager) AssignCode(ctx context.Context, fileID, codeID string, sel Selection) (history.Result, error) {
	if _, ok := m.cache.FindCode(codeID); !ok {
		return history.Result{}, ErrUnknownCode
	}
	req := domain.CreateAnnotationRequest{
		ProjectID:  m.projectID,
		FileID:     fileID,
		Kind:       domain.KindSegment,
		StartIndex: sel.StartIndex,
		EndIndex:   sel.EndIndex,
		Text:       sel.Text,
		CodeID:     codeID,
	}
	cmd := history.Command{
		Forward:  m.createStep(req),
		Backward: m.deleteStep(""),
	}
	return m.engine.Execute(ctx, cmd)
}

// Reassign moves a confirmed segment onto another code.
func (m *SegmentManager) Reassign(ctx context.Context, id, codeID string) (history.Result, error) {
	if domain.IsPlaceholderID(id) {
		return history.Result{}, ErrPendingAnnotation
	}
	existing, ok := m.cache.Find(ColSegments, id)
	if !ok {
		return history.Result{}, ErrUnknownAnnotation
	}
	if _, ok := m.cache.FindCode(codeID); !ok {
		return history.Result{}, ErrUnknownCode
	}
	previous := existing.CodeID
	cmd := history.Command{
		Forward:  m.updateStep(id, domain.AnnotationPatch{CodeID: &codeID}),
		Backward: m.updateStep(id, domain.AnnotationPatch{CodeID: &previous}),
	}
	return m.engine.Execute(ctx, cmd)
}

// Delete removes a segment. Deleting a placeholder cancels the in-flight
// create instead of calling the store: the create's continuation issues the
// compensating remote delete once the real id exists. Cancellations are not
// undoable.
func (m *SegmentManager) Delete(ctx context.Context, id string) (history.Result, error) {
	if domain.IsPlaceholderID(id) {
		m.pending.cancel(m.cache, ColSegments, id)
		return history.Result{Success: true, Discard: true}, nil
	}
	existing, ok := m.cache.Find(ColSegments, id)
	if !ok {
		return history.Result{}, ErrUnknownAnnotation
	}
	cmd := history.Command{
		Forward:  m.deleteStep(id),
		Backward: m.createStep(requestFromAnnotation(existing)),
	}
	return m.engine.Execute(ctx, cmd)
}

func (m *SegmentManager) createStep(req domain.CreateAnnotationRequest) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		placeholder := annotationFromRequest(req, domain.NewPlaceholderID())
		placeholder.CreatedAt = time.Now()
		placeholder.UpdatedAt = placeholder.CreatedAt

		before := m.cache.SyncVersion()
		if err := m.cache.SyncState(ColSegments, ActionAdd, placeholder); err != nil {
			return history.Result{Err: err}
		}

		confirmed, err := m.gw.Create(ctx, req)
		if err != nil {
			m.pending.forget(placeholder.ID)
			m.cache.SyncState(ColSegments, ActionDelete, placeholder.ID)
			m.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}

		cancelled := m.pending.reconcile(placeholder.ID, func() {
			m.cache.SyncState(ColSegments, ActionDelete, placeholder.ID)
			m.cache.SyncState(ColSegments, ActionAdd, confirmed.Annotation)
			m.cache.ObserveRemoteVersion(confirmed.SyncVersion)
		})
		if cancelled {
			// Deleted while the create was in flight. The cancellation
			// already removed the placeholder; clean up the orphan the
			// store just made.
			if v, derr := m.gw.Delete(ctx, confirmed.Annotation.ID); derr == nil {
				m.cache.ObserveRemoteVersion(v)
			}
			return history.Result{Success: true, Discard: true}
		}
		return history.Result{Success: true, Context: history.Context{ID: confirmed.Annotation.ID}}
	})
}

func (m *SegmentManager) deleteStep(fallbackID string) history.Step {
	return history.StepFunc(func(ctx context.Context, prev history.Context) history.Result {
		id := prev.ID
		if id == "" {
			id = fallbackID
		}
		existing, ok := m.cache.Find(ColSegments, id)
		if !ok {
			return history.Result{Err: ErrUnknownAnnotation}
		}

		before := m.cache.SyncVersion()
		m.cache.SyncState(ColSegments, ActionDelete, id)

		v, err := m.gw.Delete(ctx, id)
		if err != nil {
			m.cache.SyncState(ColSegments, ActionAdd, existing)
			m.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}
		m.cache.ObserveRemoteVersion(v)
		return history.Result{Success: true, Context: history.Context{ID: id}}
	})
}

func (m *SegmentManager) updateStep(id string, patch domain.AnnotationPatch) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		existing, ok := m.cache.Find(ColSegments, id)
		if !ok {
			return history.Result{Err: ErrUnknownAnnotation}
		}

		updated := patch.Apply(existing)
		updated.UpdatedAt = time.Now()

		before := m.cache.SyncVersion()
		m.cache.SyncState(ColSegments, ActionUpdate, updated)

		confirmed, err := m.gw.Update(ctx, id, patch)
		if err != nil {
			m.cache.SyncState(ColSegments, ActionUpdate, existing)
			m.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}
		m.cache.SyncState(ColSegments, ActionUpdate, confirmed.Annotation)
		m.cache.ObserveRemoteVersion(confirmed.SyncVersion)
		return history.Result{Success: true, Context: history.Context{ID: id}}
	})
}
