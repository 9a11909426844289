package gateway

import (
	"context"

	"marginalia/internal/domain"
)

// ConfirmedAnnotation is what the store hands back for an annotation write:
// the entity with its server-assigned id, and the project's sync version
// after the write.
type ConfirmedAnnotation struct {
	Annotation  domain.Annotation `json:"annotation"`
	SyncVersion int64             `json:"sync_version"`
}

type ConfirmedCode struct {
	Code        domain.CodeDefinition `json:"code"`
	SyncVersion int64                 `json:"sync_version"`
}

// AnnotationGateway is the persistence contract for one annotation kind.
// All errors are remote failures; the workspace never parses them beyond
// surfacing.
type AnnotationGateway interface {
	Create(ctx context.Context, req domain.CreateAnnotationRequest) (*ConfirmedAnnotation, error)
	Update(ctx context.Context, id string, patch domain.AnnotationPatch) (*ConfirmedAnnotation, error)
	Delete(ctx context.Context, id string) (int64, error)
	DeleteBulk(ctx context.Context, ids []string) (int64, error)
}

type CodeGateway interface {
	Create(ctx context.Context, req domain.CreateCodeRequest) (*ConfirmedCode, error)
	Update(ctx context.Context, id string, patch domain.CodePatch) (*ConfirmedCode, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type ProjectGateway interface {
	Fetch(ctx context.Context, projectID string) (*domain.Project, error)
	FetchMeta(ctx context.Context, projectID string) (*domain.ProjectMeta, error)
}
