package domain

import "time"

// Document is an imported text file that annotations attach to. The content
// itself is opaque to the workspace core; only offsets into it matter.
type Document struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateDocumentRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	Name      string `json:"name" validate:"required,min=1,max=255"`
	Content   string `json:"content"`
}

type DocumentPatch struct {
	Name *string `json:"name"`
}
