package workspace

import (
	"sort"

	"marginalia/internal/domain"
)

// Derived views are recomputed from a snapshot on every call. Nothing here
// mutates the cache.

// SegmentsByCode groups a file's coded segments by code id, each group
// sorted by start offset.
func (c *ProjectCache) SegmentsByCode(fileID string) map[string][]domain.Annotation {
	snap := c.Snapshot()
	grouped := make(map[string][]domain.Annotation)
	for _, seg := range snap.CodedSegments {
		if seg.FileID != fileID {
			continue
		}
		grouped[seg.CodeID] = append(grouped[seg.CodeID], seg)
	}
	for _, group := range grouped {
		sortByOffset(group)
	}
	return grouped
}

// MemosForFile returns a file's memos sorted by start offset.
func (c *ProjectCache) MemosForFile(fileID string) []domain.Annotation {
	return c.annotationsForFile(ColMemos, fileID)
}

// HighlightsForFile returns a file's inline highlights sorted by start offset.
func (c *ProjectCache) HighlightsForFile(fileID string) []domain.Annotation {
	return c.annotationsForFile(ColHighlights, fileID)
}

func (c *ProjectCache) annotationsForFile(col Collection, fileID string) []domain.Annotation {
	snap := c.Snapshot()
	var src []domain.Annotation
	switch col {
	case ColHighlights:
		src = snap.InlineHighlights
	case ColMemos:
		src = snap.Memos
	default:
		src = snap.CodedSegments
	}
	var out []domain.Annotation
	for _, a := range src {
		if a.FileID == fileID {
			out = append(out, a)
		}
	}
	sortByOffset(out)
	return out
}

// CodeUsageCounts counts coded segments per code id across the whole
// project, for the global vocabulary panel.
func (c *ProjectCache) CodeUsageCounts() map[string]int {
	snap := c.Snapshot()
	counts := make(map[string]int, len(snap.CodeDefinitions))
	for _, code := range snap.CodeDefinitions {
		counts[code.ID] = 0
	}
	for _, seg := range snap.CodedSegments {
		counts[seg.CodeID]++
	}
	return counts
}

// SegmentIDsForCode lists the ids of every segment carrying the given code.
func (c *ProjectCache) SegmentIDsForCode(codeID string) []string {
	snap := c.Snapshot()
	var ids []string
	for _, seg := range snap.CodedSegments {
		if seg.CodeID == codeID {
			ids = append(ids, seg.ID)
		}
	}
	return ids
}

func sortByOffset(list []domain.Annotation) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].StartIndex != list[j].StartIndex {
			return list[i].StartIndex < list[j].StartIndex
		}
		return list[i].EndIndex < list[j].EndIndex
	})
}
