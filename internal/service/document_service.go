package service

import (
	"fmt"
	"time"

	"marginalia/internal/domain"
	"marginalia/internal/repository"

	"github.com/google/uuid"
)

type DocumentService struct {
	repo           repository.DocumentRepository
	annotationRepo repository.AnnotationRepository
	projectRepo    repository.ProjectRepository
	broadcaster    ProjectBroadcaster
}

func NewDocumentService(
	repo repository.DocumentRepository,
	annotationRepo repository.AnnotationRepository,
	projectRepo repository.ProjectRepository,
	broadcaster ProjectBroadcaster,
) *DocumentService {
	return &DocumentService{
		repo:           repo,
		annotationRepo: annotationRepo,
		projectRepo:    projectRepo,
		broadcaster:    broadcaster,
	}
}

func (s *DocumentService) Create(userID string, req *domain.CreateDocumentRequest) (*domain.Document, int64, error) {
	if err := s.checkOwner(userID, req.ProjectID); err != nil {
		return nil, 0, err
	}

	now := time.Now()
	doc := &domain.Document{
		ID:        uuid.New().String(),
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(doc); err != nil {
		return nil, 0, err
	}

	version, err := s.projectRepo.BumpVersion(req.ProjectID)
	if err != nil {
		return nil, 0, fmt.Errorf("document created but version bump failed: %w", err)
	}

	s.broadcast(userID, req.ProjectID, version)
	return doc, version, nil
}

func (s *DocumentService) Rename(userID, id string, patch *domain.DocumentPatch) (*domain.Document, int64, error) {
	doc, err := s.repo.FindByID(id)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	if err := s.checkOwner(userID, doc.ProjectID); err != nil {
		return nil, 0, err
	}

	if patch.Name != nil {
		doc.Name = *patch.Name
	}
	doc.UpdatedAt = time.Now()

	if err := s.repo.Update(doc); err != nil {
		return nil, 0, err
	}

	version, err := s.projectRepo.BumpVersion(doc.ProjectID)
	if err != nil {
		return nil, 0, fmt.Errorf("document renamed but version bump failed: %w", err)
	}

	s.broadcast(userID, doc.ProjectID, version)
	return doc, version, nil
}

// Delete removes a document and every annotation anchored in it.
func (s *DocumentService) Delete(userID, id string) (int64, error) {
	doc, err := s.repo.FindByID(id)
	if err != nil {
		return 0, ErrNotFound
	}
	if err := s.checkOwner(userID, doc.ProjectID); err != nil {
		return 0, err
	}

	annotations, err := s.annotationRepo.ListByProject(doc.ProjectID)
	if err != nil {
		return 0, err
	}
	for _, a := range annotations {
		if a.FileID != id {
			continue
		}
		if err := s.annotationRepo.Delete(a.ID); err != nil {
			return 0, err
		}
	}

	if err := s.repo.Delete(id); err != nil {
		return 0, err
	}

	version, err := s.projectRepo.BumpVersion(doc.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("document deleted but version bump failed: %w", err)
	}

	s.broadcast(userID, doc.ProjectID, version)
	return version, nil
}

func (s *DocumentService) checkOwner(userID, projectID string) error {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		return ErrNotFound
	}
	if project.OwnerID != userID {
		return ErrNotOwner
	}
	return nil
}

func (s *DocumentService) broadcast(userID, projectID string, version int64) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastProjectUpdate(userID, projectID, version)
	}
}
