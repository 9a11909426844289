package workspace

import (
	"fmt"
	"sync"

	"marginalia/internal/domain"
)

type Collection string

const (
	ColSegments   Collection = "codedSegments"
	ColHighlights Collection = "inlineHighlights"
	ColMemos      Collection = "memos"
	ColCodes      Collection = "codeDefinitions"
	ColFiles      Collection = "importedFiles"
)

type Action string

const (
	ActionAdd        Action = "add"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionDeleteBulk Action = "delete-bulk"
)

// ProjectCache holds the in-memory snapshot of the current project. It is
// the single point every rendered view reads from; derived views are pure
// projections over Snapshot, never mutated directly.
//
// Mutations replace slices instead of editing cells in place, so a snapshot
// handed out earlier never observes a torn write. Every state-changing
// SyncState call increments the project's sync version so the staleness
// probe does not false-positive against the client's own writes;
// ObserveRemoteVersion overwrites the counter with the store's
// authoritative value whenever a remote call reports one.
type ProjectCache struct {
	mu      sync.RWMutex
	project domain.Project
	loaded  bool
}

func NewProjectCache() *ProjectCache {
	return &ProjectCache{}
}

// Load replaces the whole aggregate (initial load or staleness refetch).
func (c *ProjectCache) Load(p domain.Project) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.project = cloneProject(p)
	c.loaded = true
}

func (c *ProjectCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *ProjectCache) Snapshot() domain.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneProject(c.project)
}

func (c *ProjectCache) SyncVersion() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.project.SyncVersion
}

func (c *ProjectCache) ObserveRemoteVersion(v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.project.SyncVersion = v
}

// SyncState applies one mutation to a named collection. Add is idempotent
// on id; update and the deletes are no-ops for absent ids. A no-op leaves
// the sync version untouched.
func (c *ProjectCache) SyncState(col Collection, action Action, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed, err := c.apply(col, action, payload)
	if err != nil {
		return err
	}
	if changed {
		c.project.SyncVersion++
	}
	return nil
}

func (c *ProjectCache) apply(col Collection, action Action, payload any) (bool, error) {
	switch col {
	case ColSegments, ColHighlights, ColMemos:
		list := c.annotations(col)
		switch action {
		case ActionAdd, ActionUpdate:
			a, ok := payload.(domain.Annotation)
			if !ok {
				return false, fmt.Errorf("cache: %s %s wants a domain.Annotation, got %T", col, action, payload)
			}
			if action == ActionAdd {
				return addAnnotation(list, a), nil
			}
			return updateAnnotation(list, a), nil
		case ActionDelete:
			id, ok := payload.(string)
			if !ok {
				return false, fmt.Errorf("cache: %s delete wants an id string, got %T", col, payload)
			}
			return deleteAnnotations(list, map[string]bool{id: true}), nil
		case ActionDeleteBulk:
			ids, ok := payload.([]string)
			if !ok {
				return false, fmt.Errorf("cache: %s delete-bulk wants []string, got %T", col, payload)
			}
			set := make(map[string]bool, len(ids))
			for _, id := range ids {
				set[id] = true
			}
			return deleteAnnotations(list, set), nil
		}
		return false, fmt.Errorf("cache: unknown action %q", action)

	case ColCodes:
		return c.applyCodes(action, payload)

	case ColFiles:
		return c.applyFiles(action, payload)
	}
	return false, fmt.Errorf("cache: unknown collection %q", col)
}

func (c *ProjectCache) annotations(col Collection) *[]domain.Annotation {
	switch col {
	case ColHighlights:
		return &c.project.InlineHighlights
	case ColMemos:
		return &c.project.Memos
	default:
		return &c.project.CodedSegments
	}
}

func addAnnotation(list *[]domain.Annotation, a domain.Annotation) bool {
	for _, cur := range *list {
		if cur.ID == a.ID {
			return false
		}
	}
	next := make([]domain.Annotation, len(*list), len(*list)+1)
	copy(next, *list)
	*list = append(next, a)
	return true
}

func updateAnnotation(list *[]domain.Annotation, a domain.Annotation) bool {
	for i, cur := range *list {
		if cur.ID == a.ID {
			next := make([]domain.Annotation, len(*list))
			copy(next, *list)
			next[i] = a
			*list = next
			return true
		}
	}
	return false
}

func deleteAnnotations(list *[]domain.Annotation, ids map[string]bool) bool {
	next := make([]domain.Annotation, 0, len(*list))
	for _, cur := range *list {
		if !ids[cur.ID] {
			next = append(next, cur)
		}
	}
	if len(next) == len(*list) {
		return false
	}
	*list = next
	return true
}

func (c *ProjectCache) applyCodes(action Action, payload any) (bool, error) {
	list := &c.project.CodeDefinitions
	switch action {
	case ActionAdd, ActionUpdate:
		code, ok := payload.(domain.CodeDefinition)
		if !ok {
			return false, fmt.Errorf("cache: codes %s wants a domain.CodeDefinition, got %T", action, payload)
		}
		if action == ActionAdd {
			for _, cur := range *list {
				if cur.ID == code.ID {
					return false, nil
				}
			}
			next := make([]domain.CodeDefinition, len(*list), len(*list)+1)
			copy(next, *list)
			*list = append(next, code)
			return true, nil
		}
		for i, cur := range *list {
			if cur.ID == code.ID {
				next := make([]domain.CodeDefinition, len(*list))
				copy(next, *list)
				next[i] = code
				*list = next
				return true, nil
			}
		}
		return false, nil
	case ActionDelete, ActionDeleteBulk:
		set, err := idSet(action, payload, "codes")
		if err != nil {
			return false, err
		}
		next := make([]domain.CodeDefinition, 0, len(*list))
		for _, cur := range *list {
			if !set[cur.ID] {
				next = append(next, cur)
			}
		}
		if len(next) == len(*list) {
			return false, nil
		}
		*list = next
		return true, nil
	}
	return false, fmt.Errorf("cache: unknown action %q", action)
}

func (c *ProjectCache) applyFiles(action Action, payload any) (bool, error) {
	list := &c.project.ImportedFiles
	switch action {
	case ActionAdd, ActionUpdate:
		doc, ok := payload.(domain.Document)
		if !ok {
			return false, fmt.Errorf("cache: files %s wants a domain.Document, got %T", action, payload)
		}
		if action == ActionAdd {
			for _, cur := range *list {
				if cur.ID == doc.ID {
					return false, nil
				}
			}
			next := make([]domain.Document, len(*list), len(*list)+1)
			copy(next, *list)
			*list = append(next, doc)
			return true, nil
		}
		for i, cur := range *list {
			if cur.ID == doc.ID {
				next := make([]domain.Document, len(*list))
				copy(next, *list)
				next[i] = doc
				*list = next
				return true, nil
			}
		}
		return false, nil
	case ActionDelete, ActionDeleteBulk:
		set, err := idSet(action, payload, "files")
		if err != nil {
			return false, err
		}
		next := make([]domain.Document, 0, len(*list))
		for _, cur := range *list {
			if !set[cur.ID] {
				next = append(next, cur)
			}
		}
		if len(next) == len(*list) {
			return false, nil
		}
		*list = next
		return true, nil
	}
	return false, fmt.Errorf("cache: unknown action %q", action)
}

func idSet(action Action, payload any, col string) (map[string]bool, error) {
	switch action {
	case ActionDelete:
		id, ok := payload.(string)
		if !ok {
			return nil, fmt.Errorf("cache: %s delete wants an id string, got %T", col, payload)
		}
		return map[string]bool{id: true}, nil
	default:
		ids, ok := payload.([]string)
		if !ok {
			return nil, fmt.Errorf("cache: %s delete-bulk wants []string, got %T", col, payload)
		}
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		return set, nil
	}
}

// Find returns the annotation with the given id from one collection.
func (c *ProjectCache) Find(col Collection, id string) (domain.Annotation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range *c.annotations(col) {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Annotation{}, false
}

func (c *ProjectCache) FindCode(id string) (domain.CodeDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, code := range c.project.CodeDefinitions {
		if code.ID == id {
			return code, true
		}
	}
	return domain.CodeDefinition{}, false
}

func cloneProject(p domain.Project) domain.Project {
	cp := p
	cp.CodedSegments = append([]domain.Annotation(nil), p.CodedSegments...)
	cp.InlineHighlights = append([]domain.Annotation(nil), p.InlineHighlights...)
	cp.Memos = append([]domain.Annotation(nil), p.Memos...)
	cp.CodeDefinitions = append([]domain.CodeDefinition(nil), p.CodeDefinitions...)
	cp.ImportedFiles = append([]domain.Document(nil), p.ImportedFiles...)
	return cp
}
