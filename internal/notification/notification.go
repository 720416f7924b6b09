package notification

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("notification: not found")
	ErrInvalidInput = errors.New("notification: invalid input")
)

// Record types. The type column is free-form text; these are the values the
// service itself writes.
const (
	TypeSystem = "system"
	TypeDirect = "direct"
)

// Record is one append-only notification row. IDs are monotonic ULIDs, so
// string ordering on ID agrees with CreatedAt ordering; the live-session
// delta cursor compares IDs, never timestamps.
type Record struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"notification_type"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url,omitempty"`
	IsRead    bool           `json:"is_read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	Meta      map[string]any `json:"meta_data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// QueryParams narrows a notification query. SinceID, when set, restricts the
// result to records with ID strictly greater (i.e. created later). IsRead is
// a tri-state filter. Results are always newest-first.
type QueryParams struct {
	UserID  string
	SinceID string
	IsRead  *bool
	Limit   int
	Offset  int
}

// Store describes persistence operations for notifications. Sessions only
// ever call Query; read-state mutation happens through the REST surface.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Query(ctx context.Context, p QueryParams) ([]Record, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) (*Record, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	DeleteRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, id string) error
}
