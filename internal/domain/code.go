package domain

import "time"

type CodeDefinition struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateCodeRequest struct {
	ProjectID   string `json:"project_id" validate:"required"`
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Color       string `json:"color" validate:"required,hexcolor"`
	Description string `json:"description"`
}

type CodePatch struct {
	Name        *string `json:"name"`
	Color       *string `json:"color"`
	Description *string `json:"description"`
}

func (p *CodePatch) Apply(c CodeDefinition) CodeDefinition {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	return c
}
