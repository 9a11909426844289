package workspace

import (
	"context"
	"time"

	"marginalia/internal/domain"
	"marginalia/internal/gateway"
	"marginalia/internal/history"
)

// CodeSystem owns the code vocabulary: definition CRUD plus the merge and
// split policies. Color and name uniqueness are enforced here, not by the
// cache. Cascading operations reach the segment gateway through the
// SegmentManager's wiring.
type CodeSystem struct {
	projectID string
	cache     *ProjectCache
	engine    *history.Engine
	gw        gateway.CodeGateway
	segments  *SegmentManager
}

// Create adds a new code definition to the vocabulary.
func (s *CodeSystem) Create(ctx context.Context, name, color, description string) (history.Result, error) {
	if err := s.ensureUnique(name, color, ""); err != nil {
		return history.Result{}, err
	}
	req := domain.CreateCodeRequest{
		ProjectID:   s.projectID,
		Name:        name,
		Color:       color,
		Description: description,
	}
	cmd := history.Command{
		Forward:  s.createStep(req),
		Backward: s.deleteStep(""),
	}
	return s.engine.Execute(ctx, cmd)
}

// Rename changes a definition's name.
func (s *CodeSystem) Rename(ctx context.Context, id, name string) (history.Result, error) {
	existing, ok := s.cache.FindCode(id)
	if !ok {
		return history.Result{}, ErrUnknownCode
	}
	if domain.IsPlaceholderID(id) {
		return history.Result{}, ErrPendingCode
	}
	if err := s.ensureUnique(name, "", id); err != nil {
		return history.Result{}, err
	}
	previous := existing.Name
	cmd := history.Command{
		Forward:  s.updateStep(id, domain.CodePatch{Name: &name}),
		Backward: s.updateStep(id, domain.CodePatch{Name: &previous}),
	}
	return s.engine.Execute(ctx, cmd)
}

// Recolor changes a definition's color, keeping colors unique.
func (s *CodeSystem) Recolor(ctx context.Context, id, color string) (history.Result, error) {
	existing, ok := s.cache.FindCode(id)
	if !ok {
		return history.Result{}, ErrUnknownCode
	}
	if domain.IsPlaceholderID(id) {
		return history.Result{}, ErrPendingCode
	}
	if err := s.ensureUnique("", color, id); err != nil {
		return history.Result{}, err
	}
	previous := existing.Color
	cmd := history.Command{
		Forward:  s.updateStep(id, domain.CodePatch{Color: &color}),
		Backward: s.updateStep(id, domain.CodePatch{Color: &previous}),
	}
	return s.engine.Execute(ctx, cmd)
}

// Delete removes a definition and every segment coded with it. Undo
// restores the definition and re-creates the segments (both under new
// confirmed ids).
func (s *CodeSystem) Delete(ctx context.Context, id string) (history.Result, error) {
	existing, ok := s.cache.FindCode(id)
	if !ok {
		return history.Result{}, ErrUnknownCode
	}
	if domain.IsPlaceholderID(id) {
		return history.Result{}, ErrPendingCode
	}
	var segments []domain.Annotation
	for _, segID := range s.cache.SegmentIDsForCode(id) {
		if seg, ok := s.cache.Find(ColSegments, segID); ok {
			segments = append(segments, seg)
		}
	}
	cmd := history.Command{
		Forward:  s.deleteStep(id),
		Backward: s.restoreStep(existing, segments),
	}
	return s.engine.Execute(ctx, cmd)
}

// Merge reassigns every segment coded with src onto dst and removes src
// from the vocabulary. Undo re-creates src and moves the segments back.
func (s *CodeSystem) Merge(ctx context.Context, srcID, dstID string) (history.Result, error) {
	src, ok := s.cache.FindCode(srcID)
	if !ok {
		return history.Result{}, ErrUnknownCode
	}
	if _, ok := s.cache.FindCode(dstID); !ok {
		return history.Result{}, ErrUnknownCode
	}
	if domain.IsPlaceholderID(srcID) || domain.IsPlaceholderID(dstID) {
		return history.Result{}, ErrPendingCode
	}
	segIDs := s.cache.SegmentIDsForCode(srcID)
	cmd := history.Command{
		Forward:  s.mergeStep(srcID, dstID),
		Backward: s.unmergeStep(src, dstID, segIDs),
	}
	return s.engine.Execute(ctx, cmd)
}

// Split carves a new code out of an existing one: the named segments move
// onto a freshly created definition. Undo moves them back and drops it.
func (s *CodeSystem) Split(ctx context.Context, srcID, name, color, description string, segmentIDs []string) (history.Result, error) {
	if _, ok := s.cache.FindCode(srcID); !ok {
		return history.Result{}, ErrUnknownCode
	}
	if len(segmentIDs) == 0 {
		return history.Result{}, ErrEmptySplit
	}
	if err := s.ensureUnique(name, color, ""); err != nil {
		return history.Result{}, err
	}
	for _, segID := range segmentIDs {
		if domain.IsPlaceholderID(segID) {
			return history.Result{}, ErrPendingAnnotation
		}
		seg, ok := s.cache.Find(ColSegments, segID)
		if !ok {
			return history.Result{}, ErrUnknownAnnotation
		}
		if seg.CodeID != srcID {
			return history.Result{}, ErrUnknownAnnotation
		}
	}
	req := domain.CreateCodeRequest{
		ProjectID:   s.projectID,
		Name:        name,
		Color:       color,
		Description: description,
	}
	cmd := history.Command{
		Forward:  s.splitStep(req, segmentIDs),
		Backward: s.unsplitStep(srcID),
	}
	return s.engine.Execute(ctx, cmd)
}

func (s *CodeSystem) ensureUnique(name, color, exceptID string) error {
	snap := s.cache.Snapshot()
	for _, code := range snap.CodeDefinitions {
		if code.ID == exceptID {
			continue
		}
		if name != "" && code.Name == name {
			return ErrDuplicateName
		}
		if color != "" && code.Color == color {
			return ErrDuplicateColor
		}
	}
	return nil
}

func (s *CodeSystem) createStep(req domain.CreateCodeRequest) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		placeholder := domain.CodeDefinition{
			ID:          domain.NewPlaceholderID(),
			ProjectID:   req.ProjectID,
			Name:        req.Name,
			Color:       req.Color,
			Description: req.Description,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}

		before := s.cache.SyncVersion()
		if err := s.cache.SyncState(ColCodes, ActionAdd, placeholder); err != nil {
			return history.Result{Err: err}
		}

		confirmed, err := s.gw.Create(ctx, req)
		if err != nil {
			s.cache.SyncState(ColCodes, ActionDelete, placeholder.ID)
			s.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}

		s.cache.SyncState(ColCodes, ActionDelete, placeholder.ID)
		s.cache.SyncState(ColCodes, ActionAdd, confirmed.Code)
		s.cache.ObserveRemoteVersion(confirmed.SyncVersion)
		return history.Result{Success: true, Context: history.Context{ID: confirmed.Code.ID}}
	})
}

func (s *CodeSystem) updateStep(id string, patch domain.CodePatch) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		existing, ok := s.cache.FindCode(id)
		if !ok {
			return history.Result{Err: ErrUnknownCode}
		}

		updated := patch.Apply(existing)
		updated.UpdatedAt = time.Now()

		before := s.cache.SyncVersion()
		s.cache.SyncState(ColCodes, ActionUpdate, updated)

		confirmed, err := s.gw.Update(ctx, id, patch)
		if err != nil {
			s.cache.SyncState(ColCodes, ActionUpdate, existing)
			s.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}
		s.cache.SyncState(ColCodes, ActionUpdate, confirmed.Code)
		s.cache.ObserveRemoteVersion(confirmed.SyncVersion)
		return history.Result{Success: true, Context: history.Context{ID: id}}
	})
}

// deleteStep removes a definition and bulk-deletes its segments. The
// segment ids are derived from the cache at run time so redo after an undo
// targets the re-created ids.
func (s *CodeSystem) deleteStep(fallbackID string) history.Step {
	return history.StepFunc(func(ctx context.Context, prev history.Context) history.Result {
		id := prev.ID
		if id == "" {
			id = fallbackID
		}
		code, ok := s.cache.FindCode(id)
		if !ok {
			return history.Result{Err: ErrUnknownCode}
		}

		segIDs := s.cache.SegmentIDsForCode(id)
		var segments []domain.Annotation
		for _, segID := range segIDs {
			if seg, ok := s.cache.Find(ColSegments, segID); ok {
				segments = append(segments, seg)
			}
		}

		before := s.cache.SyncVersion()
		s.cache.SyncState(ColSegments, ActionDeleteBulk, segIDs)
		s.cache.SyncState(ColCodes, ActionDelete, id)

		revert := func() {
			for _, seg := range segments {
				s.cache.SyncState(ColSegments, ActionAdd, seg)
			}
			s.cache.SyncState(ColCodes, ActionAdd, code)
			s.cache.ObserveRemoteVersion(before)
		}

		if len(segIDs) > 0 {
			if _, err := s.segments.gw.DeleteBulk(ctx, segIDs); err != nil {
				revert()
				return history.Result{Err: err}
			}
		}
		v, err := s.gw.Delete(ctx, id)
		if err != nil {
			revert()
			return history.Result{Err: err}
		}
		s.cache.ObserveRemoteVersion(v)
		return history.Result{Success: true, Context: history.Context{ID: id}}
	})
}

// restoreStep re-creates a deleted definition and its segments. Everything
// comes back under new confirmed ids; the new definition id is threaded to
// redo through the result context.
func (s *CodeSystem) restoreStep(code domain.CodeDefinition, segments []domain.Annotation) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		createCode := s.createStep(domain.CreateCodeRequest{
			ProjectID:   code.ProjectID,
			Name:        code.Name,
			Color:       code.Color,
			Description: code.Description,
		})
		res := createCode.Execute(ctx, history.Context{})
		if !res.Success {
			return res
		}
		newCodeID := res.Context.ID

		restored := make([]string, 0, len(segments))
		for _, seg := range segments {
			req := requestFromAnnotation(seg)
			req.CodeID = newCodeID
			confirmed, err := s.segments.gw.Create(ctx, req)
			if err != nil {
				// Roll the partial restore back so the stacks stay honest.
				if len(restored) > 0 {
					s.segments.gw.DeleteBulk(ctx, restored)
					s.cache.SyncState(ColSegments, ActionDeleteBulk, restored)
				}
				if v, derr := s.gw.Delete(ctx, newCodeID); derr == nil {
					s.cache.ObserveRemoteVersion(v)
				}
				s.cache.SyncState(ColCodes, ActionDelete, newCodeID)
				return history.Result{Err: err}
			}
			s.cache.SyncState(ColSegments, ActionAdd, confirmed.Annotation)
			s.cache.ObserveRemoteVersion(confirmed.SyncVersion)
			restored = append(restored, confirmed.Annotation.ID)
		}
		return history.Result{Success: true, Context: history.Context{ID: newCodeID}}
	})
}

func (s *CodeSystem) mergeStep(fallbackSrcID, dstID string) history.Step {
	return history.StepFunc(func(ctx context.Context, prev history.Context) history.Result {
		srcID := prev.ID
		if srcID == "" {
			srcID = fallbackSrcID
		}
		src, ok := s.cache.FindCode(srcID)
		if !ok {
			return history.Result{Err: ErrUnknownCode}
		}

		segIDs := s.cache.SegmentIDsForCode(srcID)
		var moved []domain.Annotation
		before := s.cache.SyncVersion()
		for _, segID := range segIDs {
			seg, ok := s.cache.Find(ColSegments, segID)
			if !ok {
				continue
			}
			moved = append(moved, seg)
			updated := seg
			updated.CodeID = dstID
			updated.UpdatedAt = time.Now()
			s.cache.SyncState(ColSegments, ActionUpdate, updated)
		}
		s.cache.SyncState(ColCodes, ActionDelete, srcID)

		revert := func(remotelyMoved []string) {
			// Point any segments the store already accepted back at src.
			for _, segID := range remotelyMoved {
				s.segments.gw.Update(ctx, segID, domain.AnnotationPatch{CodeID: &srcID})
			}
			for _, seg := range moved {
				s.cache.SyncState(ColSegments, ActionUpdate, seg)
			}
			s.cache.SyncState(ColCodes, ActionAdd, src)
			s.cache.ObserveRemoteVersion(before)
		}

		var remotelyMoved []string
		for _, seg := range moved {
			if _, err := s.segments.gw.Update(ctx, seg.ID, domain.AnnotationPatch{CodeID: &dstID}); err != nil {
				revert(remotelyMoved)
				return history.Result{Err: err}
			}
			remotelyMoved = append(remotelyMoved, seg.ID)
		}
		v, err := s.gw.Delete(ctx, srcID)
		if err != nil {
			revert(remotelyMoved)
			return history.Result{Err: err}
		}
		s.cache.ObserveRemoteVersion(v)
		return history.Result{Success: true, Context: history.Context{ID: srcID}}
	})
}

// unmergeStep re-creates the merged-away definition and moves the captured
// segments back onto it. The new definition id feeds redo's mergeStep.
func (s *CodeSystem) unmergeStep(src domain.CodeDefinition, dstID string, segIDs []string) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		createCode := s.createStep(domain.CreateCodeRequest{
			ProjectID:   src.ProjectID,
			Name:        src.Name,
			Color:       src.Color,
			Description: src.Description,
		})
		res := createCode.Execute(ctx, history.Context{})
		if !res.Success {
			return res
		}
		newSrcID := res.Context.ID

		if res := s.reassign(ctx, segIDs, dstID, newSrcID); !res.Success {
			if v, derr := s.gw.Delete(ctx, newSrcID); derr == nil {
				s.cache.ObserveRemoteVersion(v)
			}
			s.cache.SyncState(ColCodes, ActionDelete, newSrcID)
			return res
		}
		return history.Result{Success: true, Context: history.Context{ID: newSrcID}}
	})
}

func (s *CodeSystem) splitStep(req domain.CreateCodeRequest, segmentIDs []string) history.Step {
	return history.StepFunc(func(ctx context.Context, _ history.Context) history.Result {
		var srcID string
		if seg, ok := s.cache.Find(ColSegments, segmentIDs[0]); ok {
			srcID = seg.CodeID
		}

		res := s.createStep(req).Execute(ctx, history.Context{})
		if !res.Success {
			return res
		}
		newCodeID := res.Context.ID

		if res := s.reassign(ctx, segmentIDs, srcID, newCodeID); !res.Success {
			if v, derr := s.gw.Delete(ctx, newCodeID); derr == nil {
				s.cache.ObserveRemoteVersion(v)
			}
			s.cache.SyncState(ColCodes, ActionDelete, newCodeID)
			return res
		}
		return history.Result{Success: true, Context: history.Context{ID: newCodeID}}
	})
}

// unsplitStep moves every segment on the split-off definition back to the
// original code and removes the definition.
func (s *CodeSystem) unsplitStep(srcID string) history.Step {
	return history.StepFunc(func(ctx context.Context, prev history.Context) history.Result {
		splitID := prev.ID
		if _, ok := s.cache.FindCode(splitID); !ok {
			return history.Result{Err: ErrUnknownCode}
		}
		segIDs := s.cache.SegmentIDsForCode(splitID)

		if res := s.reassign(ctx, segIDs, splitID, srcID); !res.Success {
			return res
		}

		before := s.cache.SyncVersion()
		code, _ := s.cache.FindCode(splitID)
		s.cache.SyncState(ColCodes, ActionDelete, splitID)
		v, err := s.gw.Delete(ctx, splitID)
		if err != nil {
			s.cache.SyncState(ColCodes, ActionAdd, code)
			s.cache.ObserveRemoteVersion(before)
			// The reassignments stand; the next staleness refetch and the
			// redo entry both target ids, not the definition, so this is
			// recoverable by the caller retrying.
			return history.Result{Err: err}
		}
		s.cache.ObserveRemoteVersion(v)
		return history.Result{Success: true}
	})
}

// reassign points the given segments from one code to another, optimistic
// first, reverting on remote failure.
func (s *CodeSystem) reassign(ctx context.Context, segIDs []string, fromID, toID string) history.Result {
	var moved []domain.Annotation
	before := s.cache.SyncVersion()
	for _, segID := range segIDs {
		seg, ok := s.cache.Find(ColSegments, segID)
		if !ok {
			continue
		}
		moved = append(moved, seg)
		updated := seg
		updated.CodeID = toID
		updated.UpdatedAt = time.Now()
		s.cache.SyncState(ColSegments, ActionUpdate, updated)
	}

	var remotelyMoved []string
	for _, seg := range moved {
		if _, err := s.segments.gw.Update(ctx, seg.ID, domain.AnnotationPatch{CodeID: &toID}); err != nil {
			for _, doneID := range remotelyMoved {
				s.segments.gw.Update(ctx, doneID, domain.AnnotationPatch{CodeID: &fromID})
			}
			for _, prev := range moved {
				s.cache.SyncState(ColSegments, ActionUpdate, prev)
			}
			s.cache.ObserveRemoteVersion(before)
			return history.Result{Err: err}
		}
		remotelyMoved = append(remotelyMoved, seg.ID)
	}
	return history.Result{Success: true}
}
