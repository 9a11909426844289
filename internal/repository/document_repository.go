package repository

import (
	"context"
	"fmt"

	"marginalia/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type DocumentRepository interface {
	Create(d *domain.Document) error
	FindByID(id string) (*domain.Document, error)
	ListByProject(projectID string) ([]*domain.Document, error)
	Update(d *domain.Document) error
	Delete(id string) error
}

type documentRepository struct {
	client *kivik.Client
	dbName string
}

func NewDocumentRepository(client *kivik.Client, dbName string) DocumentRepository {
	return &documentRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *documentRepository) Create(d *domain.Document) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("file:%s", d.ID)
	if _, err := db.Put(context.Background(), docID, d); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

func (r *documentRepository) FindByID(id string) (*domain.Document, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("file:%s", id)
	row := db.Get(context.Background(), docID)

	var d domain.Document
	if err := row.ScanDoc(&d); err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	return &d, nil
}

func (r *documentRepository) ListByProject(projectID string) ([]*domain.Document, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"project_id": projectID,
			"content":    map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.ScanDoc(&d); err != nil {
			continue
		}
		docs = append(docs, &d)
	}

	return docs, nil
}

func (r *documentRepository) Update(d *domain.Document) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("file:%s", d.ID)

	var existingDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existingDoc); err != nil {
		return fmt.Errorf("failed to fetch document for update: %w", err)
	}

	existingDoc["name"] = d.Name
	existingDoc["updated_at"] = d.UpdatedAt

	if _, err := db.Put(context.Background(), docID, existingDoc); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	return nil
}

func (r *documentRepository) Delete(id string) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("file:%s", id)

	row := db.Get(context.Background(), docID)
	rev, err := row.Rev()
	if err != nil {
		return fmt.Errorf("failed to fetch document for delete: %w", err)
	}

	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return nil
}
