package workspace

import (
	"context"
	"time"

	"marginalia/internal/domain"
	"marginalia/internal/gateway"
	"marginalia/internal/history"
)

// HighlightManager coordinates inline-highlight mutations with the same
// optimistic shape as SegmentManager.
type HighlightManager struct {
	projectID string
	cache     *ProjectCache
	engine    *history.Engine
	gw        gateway.AnnotationGateway
	pending   *cancelSet
}

// Add creates a highlight over the given span.
func (m *HighlightManager) Add(ctx context.Context, fileID, color string, sel Selection) (history.Result, error) {
	req := domain.CreateAnnotationRequest{
		ProjectID:  m.projectID,
		FileID:     fileID,
		Kind:       domain.KindHighlight,
		StartIndex: sel.StartIndex,
		EndIndex:   sel.EndIndex,
		Text:       sel.Text,
		Color:      color,
	}
	cmd := history.Command{
		Forward:  m.createStep(req),
		Backward: m.deleteStep(""),
	}
	return m.engine.Execute(ctx, cmd)
}

// Recolor changes a confirmed highlight's color.
func (m *HighlightManager) Recolor(ctx context.Context, id, color string) (history.Result, error) {
	if domain.IsPlaceholderID(id) {
		return history.Result{}, ErrPendingAnnotation
	}
	existing, ok := m.cache.Find(ColHighlights, id)
	if !ok {
		return history.Result{}, ErrUnknownAnnotation
	}
	previous := existing.Color
	cmd := history.Command{
		Forward:  m.updateStep(id, domain.AnnotationPatch{Color: &color}),
		Backward: m.updateStep(id, domain.AnnotationPatch{Color: &previous}),
	}
	return m.engine.Execute(ctx, cmd)
}

// Delete removes a highlight; placeholder deletes become cancellations.
func (m *HighlightManager) Delete(ctx context.Context, id string) (history.Result, error) {
	if domain.IsPlaceholderID(id) {
		m.pending.cancel(m.cache, ColHighlights, id)
		return history.Result{Success: true, Discard: true}, nil
	}
	existing, ok := m.cache.Find(ColHighlights, id)
	if !ok {
		return history.Result{}, ErrUnknownAnnotation
	}
	cmd := history.Command{
		Forward:  m.deleteStep(id),
		Backward: m.createStep(requestFromAnnotation(existing)),
	}
	return m.engine.Execute(ctx, cmd)
}

func (m *HighlightManager) createStep(req domain.CreateAnnotationRequest) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		placeholder := annotationFromRequest(req, domain.NewPlaceholderID())
		placeholder.CreatedAt = time.Now()
		placeholder.UpdatedAt = placeholder.CreatedAt

		before := m.cache.SyncVersion()
		if err := m.cache.SyncState(ColHighlights, ActionAdd, placeholder); err != nil {
			return history.Result{Err: err}
		}

		confirmed, err := m.gw.Create(ctx, req)
		if err != nil {
			m.pending.forget(placeholder.ID)
			m.cache.SyncState(ColHighlights, ActionDelete, placeholder.ID)
			m.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}

		cancelled := m.pending.reconcile(placeholder.ID, func() {
			m.cache.SyncState(ColHighlights, ActionDelete, placeholder.ID)
			m.cache.SyncState(ColHighlights, ActionAdd, confirmed.Annotation)
			m.cache.ObserveRemoteVersion(confirmed.SyncVersion)
		})
		if cancelled {
			if v, derr := m.gw.Delete(ctx, confirmed.Annotation.ID); derr == nil {
				m.cache.ObserveRemoteVersion(v)
			}
			return history.Result{Success: true, Discard: true}
		}
		return history.Result{Success: true, Context: history.Context{ID: confirmed.Annotation.ID}}
	})
}

func (m *HighlightManager) deleteStep(fallbackID string) history.Step {
	return history.StepFunc(func(ctx context.Context, prev history.Context) history.Result {
		id := prev.ID
		if id == "" {
			id = fallbackID
		}
		existing, ok := m.cache.Find(ColHighlights, id)
		if !ok {
			return history.Result{Err: ErrUnknownAnnotation}
		}

		before := m.cache.SyncVersion()
		m.cache.SyncState(ColHighlights, ActionDelete, id)

		v, err := m.gw.Delete(ctx, id)
		if err != nil {
			m.cache.SyncState(ColHighlights, ActionAdd, existing)
			m.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}
		m.cache.ObserveRemoteVersion(v)
		return history.Result{Success: true, Context: history.Context{ID: id}}
	})
}

func (m *HighlightManager) updateStep(id string, patch domain.AnnotationPatch) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		existing, ok := m.cache.Find(ColHighlights, id)
		if !ok {
			return history.Result{Err: ErrUnknownAnnotation}
		}

		updated := patch.Apply(existing)
		updated.UpdatedAt = time.Now()

		before := m.cache.SyncVersion()
		m.cache.SyncState(ColHighlights, ActionUpdate, updated)

		confirmed, err := m.gw.Update(ctx, id, patch)
		if err != nil {
			m.cache.SyncState(ColHighlights, ActionUpdate, existing)
			m.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}
		m.cache.SyncState(ColHighlights, ActionUpdate, confirmed.Annotation)
		m.cache.ObserveRemoteVersion(confirmed.SyncVersion)
		return history.Result{Success: true, Context: history.Context{ID: id}}
	})
}
