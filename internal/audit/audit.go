package audit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("audit: not found")
	ErrInvalidInput = errors.New("audit: invalid input")
)

// Record is one append-only project audit row. Action is always
// "METHOD:path" so entries stay greppable and aggregable by action type.
// Records are created exactly once per qualifying mutating request and never
// updated.
type Record struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"project_id"`
	UserID    string         `json:"user_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store describes persistence for audit records.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	ListByProject(ctx context.Context, projectID string, limit, offset int) ([]Record, error)
}
