package service

import (
	"time"

	"marginalia/internal/domain"
	"marginalia/internal/repository"

	"github.com/google/uuid"
)

type ProjectService struct {
	repo           repository.ProjectRepository
	annotationRepo repository.AnnotationRepository
	codeRepo       repository.CodeRepository
	documentRepo   repository.DocumentRepository
}

func NewProjectService(
	repo repository.ProjectRepository,
	annotationRepo repository.AnnotationRepository,
	codeRepo repository.CodeRepository,
	documentRepo repository.DocumentRepository,
) *ProjectService {
	return &ProjectService{
		repo:           repo,
		annotationRepo: annotationRepo,
		codeRepo:       codeRepo,
		documentRepo:   documentRepo,
	}
}

func (s *ProjectService) Create(userID string, req *domain.CreateProjectRequest) (*domain.Project, error) {
	now := time.Now()
	project := &domain.Project{
		ID:          uuid.New().String(),
		OwnerID:     userID,
		Name:        req.Name,
		SyncVersion: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(project); err != nil {
		return nil, err
	}

	return project, nil
}

func (s *ProjectService) List(userID string) ([]*domain.Project, error) {
	return s.repo.ListByOwner(userID)
}

// Get assembles the full aggregate the client caches: header, the three
// annotation collections, the vocabulary and the imported files.
func (s *ProjectService) Get(userID, id string) (*domain.Project, error) {
	project, err := s.find(userID, id)
	if err != nil {
		return nil, err
	}

	annotations, err := s.annotationRepo.ListByProject(id)
	if err != nil {
		return nil, err
	}
	project.CodedSegments = []domain.Annotation{}
	project.InlineHighlights = []domain.Annotation{}
	project.Memos = []domain.Annotation{}
	for _, a := range annotations {
		switch a.Kind {
		case domain.KindSegment:
			project.CodedSegments = append(project.CodedSegments, *a)
		case domain.KindHighlight:
			project.InlineHighlights = append(project.InlineHighlights, *a)
		case domain.KindMemo:
			project.Memos = append(project.Memos, *a)
		}
	}

	codes, err := s.codeRepo.ListByProject(id)
	if err != nil {
		return nil, err
	}
	project.CodeDefinitions = []domain.CodeDefinition{}
	for _, c := range codes {
		project.CodeDefinitions = append(project.CodeDefinitions, *c)
	}

	docs, err := s.documentRepo.ListByProject(id)
	if err != nil {
		return nil, err
	}
	project.ImportedFiles = []domain.Document{}
	for _, d := range docs {
		project.ImportedFiles = append(project.ImportedFiles, *d)
	}

	return project, nil
}

// GetMeta is the staleness probe: the sync version and nothing else.
func (s *ProjectService) GetMeta(userID, id string) (*domain.ProjectMeta, error) {
	project, err := s.find(userID, id)
	if err != nil {
		return nil, err
	}
	return &domain.ProjectMeta{ID: project.ID, SyncVersion: project.SyncVersion}, nil
}

func (s *ProjectService) Update(userID, id string, patch *domain.ProjectPatch) (*domain.Project, error) {
	project, err := s.find(userID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		project.Name = *patch.Name
	}
	project.UpdatedAt = time.Now()

	if err := s.repo.Update(project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes a project and everything hanging off it.
func (s *ProjectService) Delete(userID, id string) error {
	if _, err := s.find(userID, id); err != nil {
		return err
	}

	annotations, err := s.annotationRepo.ListByProject(id)
	if err != nil {
		return err
	}
	for _, a := range annotations {
		if err := s.annotationRepo.Delete(a.ID); err != nil {
			return err
		}
	}

	codes, err := s.codeRepo.ListByProject(id)
	if err != nil {
		return err
	}
	for _, c := range codes {
		if err := s.codeRepo.Delete(c.ID); err != nil {
			return err
		}
	}

	docs, err := s.documentRepo.ListByProject(id)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := s.documentRepo.Delete(d.ID); err != nil {
			return err
		}
	}

	return s.repo.Delete(id)
}

func (s *ProjectService) find(userID, id string) (*domain.Project, error) {
	project, err := s.repo.FindByID(id)
	if err != nil {
		return nil, ErrNotFound
	}
	if project.OwnerID != userID {
		return nil, ErrNotOwner
	}
	return project, nil
}
