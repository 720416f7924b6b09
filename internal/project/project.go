package project

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("project: not found")
	ErrInvalidInput = errors.New("project: invalid input")
)

// Project is a portfolio project owned by a single user.
type Project struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store describes project persistence.
type Store interface {
	Create(ctx context.Context, p *Project) error
	Find(ctx context.Context, id string) (*Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, ownerID, id string) error
}
