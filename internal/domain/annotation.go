package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AnnotationKind string

const (
	KindSegment   AnnotationKind = "segment"
	KindHighlight AnnotationKind = "highlight"
	KindMemo      AnnotationKind = "memo"
)

// PlaceholderPrefix marks client-generated ids that the remote store has not
// confirmed yet. A placeholder never leaves the client.
const PlaceholderPrefix = "tmp-"

func NewPlaceholderID() string {
	return PlaceholderPrefix + uuid.New().String()
}

func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

type Annotation struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	FileID     string         `json:"file_id"`
	Kind       AnnotationKind `json:"kind"`
	StartIndex int            `json:"start_index"`
	EndIndex   int            `json:"end_index"`
	Text       string         `json:"text"`

	// Kind-specific fields. CodeID is set on coded segments, Color on
	// inline highlights, Body on memos.
	CodeID string `json:"code_id,omitempty"`
	Color  string `json:"color,omitempty"`
	Body   string `json:"body,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateAnnotationRequest struct {
	ProjectID  string         `json:"project_id" validate:"required"`
	FileID     string         `json:"file_id" validate:"required"`
	Kind       AnnotationKind `json:"kind" validate:"required,oneof=segment highlight memo"`
	StartIndex int            `json:"start_index" validate:"gte=0"`
	EndIndex   int            `json:"end_index" validate:"gtfield=StartIndex"`
	Text       string         `json:"text"`
	CodeID     string         `json:"code_id"`
	Color      string         `json:"color"`
	Body       string         `json:"body"`
}

type AnnotationPatch struct {
	StartIndex *int    `json:"start_index"`
	EndIndex   *int    `json:"end_index"`
	Text       *string `json:"text"`
	CodeID     *string `json:"code_id"`
	Color      *string `json:"color"`
	Body       *string `json:"body"`
}

// Apply returns a copy of a with every non-nil patch field replaced.
func (p *AnnotationPatch) Apply(a Annotation) Annotation {
	if p.StartIndex != nil {
		a.StartIndex = *p.StartIndex
	}
	if p.EndIndex != nil {
		a.EndIndex = *p.EndIndex
	}
	if p.Text != nil {
		a.Text = *p.Text
	}
	if p.CodeID != nil {
		a.CodeID = *p.CodeID
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.Body != nil {
		a.Body = *p.Body
	}
	return a
}
