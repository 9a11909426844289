package repository

import (
	"context"
	"fmt"

	"marginalia/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type CodeRepository interface {
	Create(c *domain.CodeDefinition) error
	FindByID(id string) (*domain.CodeDefinition, error)
	ListByProject(projectID string) ([]*domain.CodeDefinition, error)
	Update(c *domain.CodeDefinition) error
	Delete(id string) error
}

type codeRepository struct {
	client *kivik.Client
	dbName string
}

func NewCodeRepository(client *kivik.Client, dbName string) CodeRepository {
	return &codeRepository{
		client: client,
		dbName: dbName,
	}
}

func (r *codeRepository) Create(c *domain.CodeDefinition) error {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("code:%s", c.ID)
	if _, err := db.Put(context.Background(), docID, c); err != nil {
		return fmt.Errorf("failed to create code: %w", err)
	}

	return nil
}

func (r *codeRepository) FindByID(id string) (*domain.CodeDefinition, error) {
	db := r.client.DB(r.dbName)

	docID := fmt.Sprintf("code:%s", id)
	row := db.Get(context.Background(), docID)

	var c domain.CodeDefinition
	if err := row.ScanDoc(&c); err != nil {
		return nil, fmt.Errorf("failed to find code: %w", err)
	}

	return &c, nil
}

func (r *codeRepository) ListByProject(projectID string) ([]*domain.CodeDefinition, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"project_id": projectID,
			"color":      map[string]interface{}{"$exists": true},
		},
	}

	rows := db.Find(context.Background(), query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	defer rows.Close()

	var codes []*domain.CodeDefinition
	for rows.Next() {
		var c domain.CodeDefinition
		if err := rows.ScanDoc(&c); err != nil {
			continue
		}
		codes = append(codes, &c)
	}

	return codes, nil
}

func (r *codeRepository) Update(c *domain.CodeDefinition) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("code:%s", c.ID)

	var existingDoc map[string]interface{}
	row := db.Get(context.Background(), docID)
	if err := row.ScanDoc(&existingDoc); err != nil {
		return fmt.Errorf("failed to fetch code for update: %w", err)
	}

	existingDoc["name"] = c.Name
	existingDoc["color"] = c.Color
	existingDoc["description"] = c.Description
	existingDoc["updated_at"] = c.UpdatedAt

	if _, err := db.Put(context.Background(), docID, existingDoc); err != nil {
		return fmt.Errorf("failed to update code: %w", err)
	}

	return nil
}

func (r *codeRepository) Delete(id string) error {
	db := r.client.DB(r.dbName)
	docID := fmt.Sprintf("code:%s", id)

	row := db.Get(context.Background(), docID)
	rev, err := row.Rev()
	if err != nil {
		return fmt.Errorf("failed to fetch code for delete: %w", err)
	}

	if _, err := db.Delete(context.Background(), docID, rev); err != nil {
		return fmt.Errorf("failed to delete code: %w", err)
	}

	return nil
}
