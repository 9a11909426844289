package repository

import (
	"context"
	"fmt"

	"marginalia/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type AnnotationRepository interface {
	Create(a *domain.Annotation) error
	FindByID(id string) (*domain.Annotation, error)
	ListByProject(projectID string) ([]*domain.Annotation, error)
	Update(a *domain.Annotation) error
	Delete(id string) error
	DeleteBulk(ids []string) error
}

type annotationRepository struct {
	client *kivik.Client
	dbName string
}

func NewAnnotationRepository(client *kivik.Client, dbName string) AnnotationRepository {
	return &annotationRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *annotationRepository) Create(a *domain.Annotation) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("annotation:%s", a.ID)
	_, err := db.Put(context.Background(), docID, a)
	if err != nil {
		return fmt.Errorf("failed to create annotation: %w", err)
	}

	return nil
}

func (r *annotationRepository) FindByID(id string) (*domain.Annotation, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("annotation:%s", id)
	row := db.Get(context.Background(), docID)

	var a domain.Annotation
	if err := row.ScanDoc(&a); err != nil {
		return nil, fmt.Errorf("failed to find annotation: %w", err)
	}

	return &a, nil
}

func (r *annotationRepository) ListByProject(projectID string) ([]*domain.Annotation, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"project_id": projectID,
			"kind":       map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	var annotations []*domain.Annotation
	for rows.Next() {
		var a domain.Annotation
		if err := rows.ScanDoc(&a); err != nil {
			continue
		}
		annotations = append(annotations, &a)
	}

	return annotations, nil
}

func (r *annotationRepository) Update(a *domain.Annotation) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("annotation:%s", a.ID)

	var existingDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existingDoc); err != nil {
		return fmt.Errorf("failed to fetch annotation for update: %w", err)
	}

	existingDoc["start_index"] = a.StartIndex
	existingDoc["end_index"] = a.EndIndex
	existingDoc["text"] = a.Text
	existingDoc["code_id"] = a.CodeID
	existingDoc["color"] = a.Color
	existingDoc["body"] = a.Body
	existingDoc["updated_at"] = a.UpdatedAt

	_, err := db.Put(context.Background(), docID, existingDoc)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}

	return nil
}

func (r *annotationRepository) Delete(id string) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("annotation:%s", id)

	row := db.Get(context.Background(), docID)
	rev, err := row.Rev()
	if err != nil {
		return fmt.Errorf("failed to fetch annotation for delete: %w", err)
	}

	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}

	return nil
}

func (r *annotationRepository) DeleteBulk(ids []string) error {
	for _, id := range ids {
		if err := r.Delete(id); err != nil {
			return err
		}
	}
	return nil
}
