package repository

import (
	"context"
	"fmt"

	"marginalia/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type ProjectRepository interface {
	Create(p *domain.Project) error
	FindByID(id string) (*domain.Project, error)
	ListByOwner(ownerID string) ([]*domain.Project, error)
	Update(p *domain.Project) error
	// BumpVersion increments the project's sync version and returns the new
	// value. Every annotation, code and file write goes through it.
	BumpVersion(id string) (int64, error)
	Delete(id string) error
}

type projectRepository struct {
	client *kivik.Client
	dbName string
}

func NewProjectRepository(client *kivik.Client, dbName string) ProjectRepository {
	return &projectRepository{
		client: client,
		dbName: dbName,
	}
}

// projectDoc is the stored shape: the aggregate's collections live in their
// own documents, so only the header fields are persisted here.
type projectDoc struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	SyncVersion int64  `json:"sync_version"`
	CreatedAt   any    `json:"created_at,omitempty"`
	UpdatedAt   any    `json:"updated_at,omitempty"`
}

func (r *projectRepository) Create(p *domain.Project) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("project:%s", p.ID)
	doc := projectDoc{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		SyncVersion: p.SyncVersion,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if _, err := db.Put(context.Background(), docID, doc); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

func (r *projectRepository) FindByID(id string) (*domain.Project, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("project:%s", id)
	row := db.Get(context.Background(), docID)

	var p domain.Project
	if err := row.ScanDoc(&p); err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	return &p, nil
}

func (r *projectRepository) ListByOwner(ownerID string) ([]*domain.Project, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"owner_id":     ownerID,
			"sync_version": map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.ScanDoc(&p); err != nil {
			continue
		}
		projects = append(projects, &p)
	}

	return projects, nil
}

func (r *projectRepository) Update(p *domain.Project) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("project:%s", p.ID)

	var existingDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existingDoc); err != nil {
		return fmt.Errorf("failed to fetch project for update: %w", err)
	}

	existingDoc["name"] = p.Name
	existingDoc["updated_at"] = p.UpdatedAt

	if _, err := db.Put(context.Background(), docID, existingDoc); err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	return nil
}

func (r *projectRepository) BumpVersion(id string) (int64, error) {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("project:%s", id)

	var existingDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existingDoc); err != nil {
		return 0, fmt.Errorf("failed to fetch project for version bump: %w", err)
	}

	var version int64
	if v, ok := existingDoc["sync_version"].(float64); ok {
		version = int64(v)
	}
	version++
	existingDoc["sync_version"] = version

	if _, err := db.Put(context.Background(), docID, existingDoc); err != nil {
		return 0, fmt.Errorf("failed to bump project version: %w", err)
	}

	return version, nil
}

func (r *projectRepository) Delete(id string) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("project:%s", id)

	row := db.Get(context.Background(), docID)
	rev, err := row.Rev()
	if err != nil {
		return fmt.Errorf("failed to fetch project for delete: %w", err)
	}

	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	return nil
}
