package service

import (
	"fmt"
	"time"

	"marginalia/internal/domain"
	"marginalia/internal/repository"

	"github.com/google/uuid"
)

type CodeService struct {
	repo        repository.CodeRepository
	projectRepo repository.ProjectRepository
	broadcaster ProjectBroadcaster
}

func NewCodeService(
	repo repository.CodeRepository,
	projectRepo repository.ProjectRepository,
	broadcaster ProjectBroadcaster,
) *CodeService {
	return &CodeService{
		repo:        repo,
		projectRepo: projectRepo,
		broadcaster: broadcaster,
	}
}

func (s *CodeService) Create(userID string, req *domain.CreateCodeRequest) (*domain.CodeDefinition, int64, error) {
	project, err := s.projectRepo.FindByID(req.ProjectID)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	if project.OwnerID != userID {
		return nil, 0, ErrNotOwner
	}

	if err := s.ensureUnique(req.ProjectID, req.Name, req.Color, ""); err != nil {
		return nil, 0, err
	}

	now := time.Now()
	code := &domain.CodeDefinition{
		ID:          uuid.New().String(),
		ProjectID:   req.ProjectID,
		Name:        req.Name,
		Color:       req.Color,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(code); err != nil {
		return nil, 0, err
	}

	version, err := s.projectRepo.BumpVersion(req.ProjectID)
	if err != nil {
		return nil, 0, fmt.Errorf("code created but version bump failed: %w", err)
	}

	s.broadcast(userID, req.ProjectID, version)
	return code, version, nil
}

func (s *CodeService) Update(userID, id string, patch *domain.CodePatch) (*domain.CodeDefinition, int64, error) {
	code, err := s.repo.FindByID(id)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	project, err := s.projectRepo.FindByID(code.ProjectID)
	if err != nil {
		return nil, 0, ErrNotFound
	}
	if project.OwnerID != userID {
		return nil, 0, ErrNotOwner
	}

	name, color := "", ""
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Color != nil {
		color = *patch.Color
	}
	if err := s.ensureUnique(code.ProjectID, name, color, id); err != nil {
		return nil, 0, err
	}

	updated := patch.Apply(*code)
	updated.UpdatedAt = time.Now()

	if err := s.repo.Update(&updated); err != nil {
		return nil, 0, err
	}

	version, err := s.projectRepo.BumpVersion(code.ProjectID)
	if err != nil {
		return nil, 0, fmt.Errorf("code updated but version bump failed: %w", err)
	}

	s.broadcast(userID, code.ProjectID, version)
	return &updated, version, nil
}

func (s *CodeService) Delete(userID, id string) (int64, error) {
	code, err := s.repo.FindByID(id)
	if err != nil {
		return 0, ErrNotFound
	}
	project, err := s.projectRepo.FindByID(code.ProjectID)
	if err != nil {
		return 0, ErrNotFound
	}
	if project.OwnerID != userID {
		return 0, ErrNotOwner
	}

	if err := s.repo.Delete(id); err != nil {
		return 0, err
	}

	version, err := s.projectRepo.BumpVersion(code.ProjectID)
	if err != nil {
		return 0, fmt.Errorf("code deleted but version bump failed: %w", err)
	}

	s.broadcast(userID, code.ProjectID, version)
	return version, nil
}

// ensureUnique rejects a name or color already used by another code in the
// project. Empty strings skip the respective check.
func (s *CodeService) ensureUnique(projectID, name, color, exceptID string) error {
	codes, err := s.repo.ListByProject(projectID)
	if err != nil {
		return err
	}
	for _, c := range codes {
		if c.ID == exceptID {
			continue
		}
		if name != "" && c.Name == name {
			return ErrDuplicateName
		}
		if color != "" && c.Color == color {
			return ErrDuplicateColor
		}
	}
	return nil
}

func (s *CodeService) broadcast(userID, projectID string, version int64) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastProjectUpdate(userID, projectID, version)
	}
}
