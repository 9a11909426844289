package domain

import "time"

// Project is the aggregate the client holds for one editing session. The
// remote store bumps SyncVersion on every write; the client compares its
// last-seen value against the remote's to detect drift.
type Project struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	SyncVersion int64  `json:"sync_version"`

	CodedSegments    []Annotation     `json:"coded_segments"`
	InlineHighlights []Annotation     `json:"inline_highlights"`
	Memos            []Annotation     `json:"memos"`
	CodeDefinitions  []CodeDefinition `json:"code_definitions"`
	ImportedFiles    []Document       `json:"imported_files"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectMeta is the lightweight staleness probe payload.
type ProjectMeta struct {
	ID          string `json:"id"`
	SyncVersion int64  `json:"sync_version"`
}

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type ProjectPatch struct {
	Name *string `json:"name"`
}
