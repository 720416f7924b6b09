package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"folionest.org/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests and local development.
type MemStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Insert(_ context.Context, rec *Record) error {
	if strings.TrimSpace(rec.ProjectID) == "" || strings.TrimSpace(rec.Action) == "" {
		return ErrInvalidInput
	}
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *MemStore) ListByProject(_ context.Context, projectID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Record
	for _, rec := range s.records {
		if rec.ProjectID == projectID {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
