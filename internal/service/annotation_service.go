package service

import (
	"fmt"
	"time"

	"marginalia/internal/domain"
	"marginalia/internal/repository"

	"github.com/google/uuid"
)

// ProjectBroadcaster pushes project-version updates to a user's other
// sessions. Nil disables broadcasting.
type ProjectBroadcaster interface {
	BroadcastProjectUpdate(userID, projectID string, syncVersion int64)
}

// AnnotationService serves all three annotation kinds; handlers pin the
// kind before calling in. Every write bumps the owning project's sync
// version and reports the new value back to the caller, so clients can keep
// their staleness counter aligned without an extra probe.
type AnnotationService struct {
	repo        repository.AnnotationRepository
	projectRepo repository.ProjectRepository
	broadcaster ProjectBroadcaster
}

func NewAnnotationService(
	repo repository.AnnotationRepository,
	projectRepo repository.ProjectRepository,
	broadcaster ProjectBroadcaster,
) *AnnotationService {
	return &AnnotationService{
		repo:        repo,
		projectRepo: projectRepo,
		broadcaster: broadcaster,
	}
}

func (s *AnnotationService) Create(userID string, req *domain.CreateAnnotationRequest) (*domain.Annotation, int64, error) {
	if err := s.checkProjectOwner(userID, req.ProjectID); err != nil {
		return nil, 0, err
	}

	now := time.Now()
	a := &domain.Annotation{
		ID:         uuid.New().String(),
		ProjectID:  req.ProjectID,
		FileID:     req.FileID,
		Kind:       req.Kind,
		StartIndex: req.StartIndex,
		EndIndex:   req.EndIndex,
		Text:       req.Text,
		CodeID:     req.CodeID,
		Color:      req.Color,
		Body:       req.Body,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(a); err != nil {
		return nil, 0, err
	}

	version, err := s.projectRepo.BumpVersion(req.ProjectID)
	if err != nil {
		return nil, 0, fmt.Errorf("annotation created but version bump failed: %w", err)
	}

	s.broadcast(userID, req.ProjectID, version)
	return a, version, nil
}

func (s *AnnotationService) Update(userID, id string, patch *domain.AnnotationPatch) (*domain.Annotation, int64, error) {
	a, err := s.repo.FindByID(id)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	if err := s.checkProjectOwner(userID, a.ProjectID); err != nil {
		return nil, 0, err
	}

	updated := patch.Apply(*a)
	updated.UpdatedAt = time.Now()

	if err := s.repo.Update(&updated); err != nil {
		return nil, 0, err
	}

	version, err := s.projectRepo.BumpVersion(a.ProjectID)
	if err != nil {
		return nil, 0, fmt.Errorf("annotation updated but version bump failed: %w", err)
	}

	s.broadcast(userID, a.ProjectID, version)
	return &updated, version, nil
}

func (s *AnnotationService) Delete(userID, id string) (int64, error) {
	a, err := s.repo.FindByID(id)
	if err != nil {
		return 0, ErrNotFound
	}
	if err := s.checkProjectOwner(userID, a.ProjectID); err != nil {
		return 0, err
	}

	if err := s.repo.Delete(id); err != nil {
		return 0, err
	}

	version, err := s.projectRepo.BumpVersion(a.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("annotation deleted but version bump failed: %w", err)
	}

	s.broadcast(userID, a.ProjectID, version)
	return version, nil
}

// DeleteBulk removes a set of annotations belonging to one project and
// bumps the version once for the whole batch.
func (s *AnnotationService) DeleteBulk(userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNotFound
	}

	projectID := ""
	for _, id := range ids {
		a, err := s.repo.FindByID(id)
		if err != nil {
			return 0, ErrNotFound
		}
		if projectID == "" {
			projectID = a.ProjectID
			if err := s.checkProjectOwner(userID, projectID); err != nil {
				return 0, err
			}
		} else if a.ProjectID != projectID {
			return 0, fmt.Errorf("bulk delete spans projects")
		}
	}

	if err := s.repo.DeleteBulk(ids); err != nil {
		return 0, err
	}

	version, err := s.projectRepo.BumpVersion(projectID)
	if err != nil {
		return 0, fmt.Errorf("annotations deleted but version bump failed: %w", err)
	}

	s.broadcast(userID, projectID, version)
	return version, nil
}

func (s *AnnotationService) checkProjectOwner(userID, projectID string) error {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		return ErrNotFound
	}
	if project.OwnerID != userID {
		return ErrNotOwner
	}
	return nil
}

func (s *AnnotationService) broadcast(userID, projectID string, version int64) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastProjectUpdate(userID, projectID, version)
	}
}
